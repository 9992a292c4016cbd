package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/edirooss/rtsp2hls/internal/domain/overlay"
	"github.com/edirooss/rtsp2hls/internal/repo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidPatch wraps errors returned by a patch function passed to Modify.
var ErrInvalidPatch = errors.New("invalid patch")

// OverlayService is the CRUD layer over an OverlayStore.
//
// Mutations of the same overlay are serialized per ID so a read-modify-write
// PATCH never loses a concurrent update. Reads are lock-free.
type OverlayService struct {
	log   *zap.Logger
	store repo.OverlayStore

	muxes sync.Map // map[string]*gate

	now   func() time.Time
	newID func() string
}

// gate is a 1-token semaphore.
type gate struct{ ch chan struct{} }

func newGate() *gate {
	g := &gate{ch: make(chan struct{}, 1)}
	g.ch <- struct{}{} // token present => unlocked
	return g
}
func (g *gate) Lock()   { <-g.ch }
func (g *gate) Unlock() { g.ch <- struct{}{} }

func NewOverlayService(log *zap.Logger, store repo.OverlayStore) *OverlayService {
	if log == nil {
		log = zap.NewNop()
	}
	return &OverlayService{
		log:   log.Named("overlay_service"),
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// lock acquires the per-ID gate. Always returns a valid unlock func.
func (s *OverlayService) lock(id string) func() {
	v, _ := s.muxes.LoadOrStore(id, newGate())
	g := v.(*gate)
	g.Lock()
	return g.Unlock
}

// New returns an unsaved overlay with a fresh ID and all defaults applied.
func (s *OverlayService) New() *overlay.Overlay {
	return overlay.New(s.newID(), s.now())
}

// Create validates and persists o.
func (s *OverlayService) Create(ctx context.Context, o *overlay.Overlay) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if err := s.store.Create(ctx, o); err != nil {
		return fmt.Errorf("create overlay: %w", err)
	}
	s.log.Info("overlay created", zap.String("id", o.ID), zap.String("type", string(o.Type)))
	return nil
}

func (s *OverlayService) Get(ctx context.Context, id string) (*overlay.Overlay, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get overlay: %w", err)
	}
	return o, nil
}

// List returns every overlay, newest first.
func (s *OverlayService) List(ctx context.Context) ([]*overlay.Overlay, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list overlays: %w", err)
	}
	return list, nil
}

// Modify loads the overlay, applies patch, validates and persists the result.
// ID and CreatedAt are preserved whatever patch does.
func (s *OverlayService) Modify(ctx context.Context, id string, patch func(*overlay.Overlay) error) (*overlay.Overlay, error) {
	unlock := s.lock(id)
	defer unlock()

	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get overlay: %w", err)
	}
	createdAt := o.CreatedAt

	if err := patch(o); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}
	o.ID, o.CreatedAt = id, createdAt
	o.Touch(s.now())

	if err := o.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("update overlay: %w", err)
	}
	s.log.Info("overlay updated", zap.String("id", id))
	return o, nil
}

func (s *OverlayService) Delete(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete overlay: %w", err)
	}
	s.muxes.Delete(id)
	s.log.Info("overlay deleted", zap.String("id", id))
	return nil
}
