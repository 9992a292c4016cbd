package repo

import (
	"context"
	"slices"

	"github.com/edirooss/rtsp2hls/internal/domain/overlay"
	"github.com/edirooss/rtsp2hls/internal/infrastructure/objectstore"
	"go.uber.org/zap"
)

// MemoryOverlayStore keeps overlays in process memory. Used when no Redis
// address is configured and in tests. Stored values are copies.
type MemoryOverlayStore struct {
	st *objectstore.ObjectStore[overlay.Overlay]
}

var _ OverlayStore = (*MemoryOverlayStore)(nil)

func NewMemoryOverlayStore(log *zap.Logger) *MemoryOverlayStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &MemoryOverlayStore{st: objectstore.New[overlay.Overlay](log.Named("overlays"))}
}

func (m *MemoryOverlayStore) Create(_ context.Context, o *overlay.Overlay) error {
	m.st.Insert(o.ID, cloneOverlay(o))
	return nil
}

func (m *MemoryOverlayStore) Get(_ context.Context, id string) (*overlay.Overlay, error) {
	o, ok := m.st.Get(id)
	if !ok {
		return nil, ErrOverlayNotFound
	}
	return ptrClone(o), nil
}

// List returns newest first; insertion order is creation order.
func (m *MemoryOverlayStore) List(_ context.Context) ([]*overlay.Overlay, error) {
	vals := m.st.List()
	out := make([]*overlay.Overlay, len(vals))
	for i, v := range vals {
		out[i] = ptrClone(v)
	}
	slices.Reverse(out)
	return out, nil
}

func (m *MemoryOverlayStore) Update(_ context.Context, o *overlay.Overlay) error {
	if !m.st.Replace(o.ID, cloneOverlay(o)) {
		return ErrOverlayNotFound
	}
	return nil
}

func (m *MemoryOverlayStore) Delete(_ context.Context, id string) error {
	if !m.st.Delete(id) {
		return ErrOverlayNotFound
	}
	return nil
}

// cloneOverlay copies o including its mutable Meta map and UpdatedAt.
func cloneOverlay(o *overlay.Overlay) overlay.Overlay {
	c := *o
	if o.Meta != nil {
		c.Meta = make(map[string]any, len(o.Meta))
		for k, v := range o.Meta {
			c.Meta[k] = v
		}
	}
	if o.UpdatedAt != nil {
		t := *o.UpdatedAt
		c.UpdatedAt = &t
	}
	return c
}

func ptrClone(o overlay.Overlay) *overlay.Overlay {
	c := cloneOverlay(&o)
	return &c
}
