package service

import (
	"context"
	"sync"
	"time"

	"github.com/edirooss/rtsp2hls/internal/infrastructure/processmgr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SupervisorView is the read side of the process supervisor.
type SupervisorView interface {
	Snapshot() processmgr.Snapshot
	Diagnostics(n int) []string
	DiagnosticCapacity() int
}

// PublishProbe reports whether the output directory currently holds a playlist.
type PublishProbe interface {
	IsPublishing() bool
}

// StreamStatus is the externally visible health of the stream.
type StreamStatus struct {
	State               processmgr.State `json:"state"`
	ConsecutiveFailures int              `json:"consecutive_failures"`
	NextBackoffSeconds  float64          `json:"next_backoff_seconds"`
	LastExitCode        *int             `json:"last_exit_code"`
	LastError           string           `json:"last_error,omitempty"`
	IsPublishing        bool             `json:"is_publishing"`
	UptimeSeconds       float64          `json:"uptime_seconds"`
	PID                 int              `json:"pid,omitempty"`
	Spawns              int              `json:"spawns"`
	Error               string           `json:"error,omitempty"`
	GeneratedAt         time.Time        `json:"generated_at"`
}

type StatusOptions struct {
	// TTL controls how long a publishing probe result is reused; default 500ms.
	TTL time.Duration
}

func (o *StatusOptions) setDefaults() {
	if o.TTL <= 0 {
		o.TTL = 500 * time.Millisecond
	}
}

// StatusService combines the supervisor snapshot (lock-free) with a cached
// publishing flag. Concurrent probes are coalesced.
type StatusService struct {
	log   *zap.Logger
	sup   SupervisorView
	probe PublishProbe

	mu        sync.RWMutex
	published bool
	expires   time.Time

	opts StatusOptions
	now  func() time.Time

	sg singleflight.Group
}

// NewStatusService wires the supervisor and directory probe.
// Reuse a single instance per process.
func NewStatusService(log *zap.Logger, sup SupervisorView, probe PublishProbe, opts StatusOptions) *StatusService {
	if log == nil {
		log = zap.NewNop()
	}
	opts.setDefaults()
	return &StatusService{
		log:   log.Named("status_service"),
		sup:   sup,
		probe: probe,
		opts:  opts,
		now:   time.Now,
	}
}

// Snapshot returns the current stream status.
func (s *StatusService) Snapshot(ctx context.Context) StreamStatus {
	snap := s.sup.Snapshot()
	now := s.now()

	st := StreamStatus{
		State:               snap.State,
		ConsecutiveFailures: snap.ConsecutiveFailures,
		NextBackoffSeconds:  snap.NextBackoff.Seconds(),
		IsPublishing:        s.Available(ctx),
		UptimeSeconds:       snap.Uptime(now).Seconds(),
		Spawns:              snap.Spawns,
		Error:               snap.Err,
		GeneratedAt:         now,
	}
	if snap.Current != nil {
		st.PID = snap.Current.PID
	}
	if snap.LastExit != nil {
		code := snap.LastExit.ExitCode
		st.LastExitCode = &code
		st.LastError = snap.LastExit.LastError
	}
	return st
}

// Available reports whether the playlist is being published. The probe
// result is cached for TTL; on ctx expiry the last known value is returned.
func (s *StatusService) Available(ctx context.Context) bool {
	// Fast path: fresh cache
	s.mu.RLock()
	if s.now().Before(s.expires) {
		v := s.published
		s.mu.RUnlock()
		return v
	}
	stale := s.published
	s.mu.RUnlock()

	ch := s.sg.DoChan("publishing", func() (any, error) {
		v := s.probe.IsPublishing()
		s.store(v)
		return v, nil
	})
	select {
	case res := <-ch:
		return res.Val.(bool)
	case <-ctx.Done():
		return stale
	}
}

// Observe records a publishing transition seen by the directory watcher.
func (s *StatusService) Observe(published bool) {
	s.store(published)
	s.log.Debug("publishing observed", zap.Bool("published", published))
}

// Invalidate drops the cached probe result.
func (s *StatusService) Invalidate() {
	s.mu.Lock()
	s.expires = time.Time{}
	s.mu.Unlock()
}

// Logs returns up to n diagnostic lines of the latest run, newest first.
// n <= 0 or above capacity returns everything retained.
func (s *StatusService) Logs(n int) []string {
	if c := s.sup.DiagnosticCapacity(); n <= 0 || n > c {
		n = c
	}
	return s.sup.Diagnostics(n)
}

func (s *StatusService) store(published bool) {
	s.mu.Lock()
	s.published = published
	s.expires = s.now().Add(s.opts.TTL)
	s.mu.Unlock()
}
