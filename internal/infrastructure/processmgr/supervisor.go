package processmgr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edirooss/rtsp2hls/pkg/ffmpegcmd"
	"go.uber.org/zap"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("supervisor already started")

// DefaultStopGrace is the time between SIGTERM and SIGKILL on shutdown.
const DefaultStopGrace = 3 * time.Second

// Directory is the output directory as seen by the supervisor.
type Directory interface {
	// EnsureReady creates the directory if needed and verifies it is writable.
	EnsureReady() error
	// Purge removes leftovers of a previous run.
	Purge() error
}

// Observer is notified of lifecycle events. Calls happen on the loop
// goroutine and must not block.
type Observer interface {
	StateChanged(from, to State)
	ProcessExited(exitCode int, lifetime time.Duration)
}

// Options configure a Supervisor. Command, Dir and Launcher are required.
type Options struct {
	Command         ffmpegcmd.CommandSpec
	Dir             Directory
	Launcher        Launcher
	Policy          RetryPolicy
	StopGrace       time.Duration
	DiagnosticLines int
	Observer        Observer
}

// ProcessInfo describes one child run.
type ProcessInfo struct {
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at"`
	ExitedAt  time.Time `json:"exited_at,omitempty"`
	ExitCode  int       `json:"exit_code"`
	// Lifetime is zero for runs that failed to spawn.
	Lifetime  time.Duration `json:"lifetime"`
	LastError string        `json:"last_error,omitempty"`
}

// Snapshot is an immutable view of the supervisor. Obtained without locks.
type Snapshot struct {
	State State `json:"state"`
	RetryState
	// Current is set while a child is alive (Running, Stopping).
	Current *ProcessInfo `json:"current,omitempty"`
	// LastExit is the most recently ended run.
	LastExit *ProcessInfo `json:"last_exit,omitempty"`
	Spawns   int          `json:"spawns"`
	// Err is the fatal error that moved the supervisor to Stopped, if any.
	Err       string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Uptime of the current child, or zero.
func (s Snapshot) Uptime(now time.Time) time.Duration {
	if s.Current == nil || s.State != StateRunning {
		return 0
	}
	return now.Sub(s.Current.StartedAt)
}

// Supervisor keeps exactly one transcoder child alive, restarting it with
// exponential backoff, until Shutdown.
//
// A single loop goroutine owns the child; everyone else reads snapshots.
//
//	s → Start(ctx) → … → Shutdown(ctx) → <-Done()
type Supervisor struct {
	log      *zap.Logger
	cmd      ffmpegcmd.CommandSpec
	dir      Directory
	launcher Launcher
	policy   RetryPolicy
	grace    time.Duration
	diagN    int
	observer Observer

	snap  atomic.Pointer[Snapshot]
	diag  atomic.Pointer[logBuffer] // stderr of the latest run
	pubMu sync.Mutex                // serializes snapshot writers

	lc      sync.Mutex // guards started, cancel
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	now func() time.Time
}

// NewSupervisor validates opts and returns an Idle supervisor.
func NewSupervisor(log *zap.Logger, opts Options) (*Supervisor, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(opts.Command.Argv) == 0 {
		return nil, errors.New("processmgr: empty command")
	}
	if opts.Dir == nil {
		return nil, errors.New("processmgr: nil directory")
	}
	if opts.Launcher == nil {
		return nil, errors.New("processmgr: nil launcher")
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = DefaultStopGrace
	}
	if opts.DiagnosticLines <= 0 {
		opts.DiagnosticLines = DefaultDiagnosticLines
	}

	s := &Supervisor{
		log:      log.Named("supervisor"),
		cmd:      opts.Command,
		dir:      opts.Dir,
		launcher: opts.Launcher,
		policy:   opts.Policy.withDefaults(),
		grace:    opts.StopGrace,
		diagN:    opts.DiagnosticLines,
		observer: opts.Observer,
		done:     make(chan struct{}),
		now:      time.Now,
	}
	s.snap.Store(&Snapshot{State: StateIdle, UpdatedAt: s.now()})
	s.diag.Store(newLogBuffer(s.diagN))
	return s, nil
}

// Start prepares the output directory and launches the supervision loop.
//
// The directory check is synchronous: its error (wrapping the directory's
// sentinel) is returned and the supervisor ends in Stopped. Otherwise Start
// returns nil immediately and the loop keeps running until ctx is cancelled
// or Shutdown is called.
func (s *Supervisor) Start(ctx context.Context) error {
	s.lc.Lock()
	defer s.lc.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	s.publish(func(sn *Snapshot) { sn.State = StateStarting })

	if err := s.dir.EnsureReady(); err != nil {
		s.log.Error("output directory unavailable", zap.Error(err))
		s.publish(func(sn *Snapshot) {
			sn.State = StateStopped
			sn.Err = err.Error()
		})
		close(s.done)
		return fmt.Errorf("prepare output directory: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.log.Info("supervisor started",
		zap.String("command", s.cmd.String()),
		zap.Duration("backoff_base", s.policy.Base),
		zap.Duration("backoff_max", s.policy.Max))

	go s.loop(loopCtx)
	return nil
}

// Shutdown stops the loop and the child (SIGTERM, grace, SIGKILL) and waits
// for Stopped or ctx expiry. Safe to call more than once and before Start.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.lc.Lock()
	if !s.started {
		s.started = true
		s.publish(func(sn *Snapshot) { sn.State = StateStopped })
		close(s.done)
		s.lc.Unlock()
		return nil
	}
	cancel := s.cancel
	s.lc.Unlock()

	if cancel != nil {
		cancel()
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the supervisor reached Stopped.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

// Snapshot returns the latest published state. Lock-free.
func (s *Supervisor) Snapshot() Snapshot { return *s.snap.Load() }

// Diagnostics returns up to n stderr lines of the latest run, newest first.
func (s *Supervisor) Diagnostics(n int) []string { return s.diag.Load().Read(n) }

// DiagnosticCapacity is the per-run line bound.
func (s *Supervisor) DiagnosticCapacity() int { return s.diagN }

func (s *Supervisor) loop(ctx context.Context) {
	defer close(s.done)
	defer s.publish(func(sn *Snapshot) {
		sn.State = StateStopped
		sn.Current = nil
	})

	for {
		if ctx.Err() != nil {
			s.publish(func(sn *Snapshot) { sn.State = StateStopping })
			return
		}

		if !s.runOnce(ctx) {
			return
		}

		delay := s.Snapshot().NextBackoff
		s.publish(func(sn *Snapshot) { sn.State = StateBackoff })
		s.log.Info("restarting after backoff",
			zap.Duration("delay", delay),
			zap.Int("consecutive_failures", s.Snapshot().ConsecutiveFailures))

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			s.publish(func(sn *Snapshot) { sn.State = StateStopping })
			return
		case <-t.C:
		}

		s.publish(func(sn *Snapshot) { sn.State = StateStarting })
	}
}

// runOnce performs one spawn → wait → exit cycle. It returns false when the
// cycle ended because of shutdown.
func (s *Supervisor) runOnce(ctx context.Context) bool {
	s.purge("before spawn")

	buf := newLogBuffer(s.diagN)
	s.diag.Store(buf)

	startedAt := s.now()
	h, err := s.launcher.Launch(s.cmd.Argv, buf)
	if err != nil {
		if !errors.Is(err, ErrSpawnFailure) {
			err = fmt.Errorf("%w: %w", ErrSpawnFailure, err)
		}
		buf.Append(err.Error())
		s.log.Warn("spawn failed", zap.Error(err))
		s.exited(ProcessInfo{
			StartedAt: startedAt,
			ExitedAt:  s.now(),
			ExitCode:  SpawnFailureExitCode,
			LastError: err.Error(),
		})
		return true
	}

	pid := h.PID()
	s.publish(func(sn *Snapshot) {
		sn.State = StateRunning
		sn.Spawns++
		sn.Current = &ProcessInfo{PID: pid, StartedAt: startedAt}
	})
	s.log.Info("transcoder running", zap.Int("pid", pid))

	stopping := false
	select {
	case <-h.Done():
	case <-ctx.Done():
		stopping = true
		s.publish(func(sn *Snapshot) { sn.State = StateStopping })
		s.stopChild(h)
	}

	// The dead run's playlist must not be served during the restart gap.
	s.purge("after exit")

	buf.Flush()
	exitedAt := s.now()
	info := ProcessInfo{
		PID:       pid,
		StartedAt: startedAt,
		ExitedAt:  exitedAt,
		ExitCode:  h.ExitCode(),
		Lifetime:  exitedAt.Sub(startedAt),
		LastError: buf.Last(),
	}

	if stopping {
		s.log.Info("transcoder stopped", zap.Int("pid", pid), zap.Int("exit_code", info.ExitCode))
		s.publish(func(sn *Snapshot) {
			sn.LastExit = &info
			sn.Current = nil
		})
		return false
	}

	s.log.Warn("transcoder exited",
		zap.Int("pid", pid),
		zap.Int("exit_code", info.ExitCode),
		zap.Duration("lifetime", info.Lifetime),
		zap.String("last_error", info.LastError))
	s.exited(info)
	return true
}

// purge clears the output directory; failures are logged and the next
// purge retries.
func (s *Supervisor) purge(when string) {
	if err := s.dir.Purge(); err != nil {
		s.log.Warn("purge output directory failed", zap.String("when", when), zap.Error(err))
	}
}

// exited records a finished run and computes the next backoff.
func (s *Supervisor) exited(info ProcessInfo) {
	s.publish(func(sn *Snapshot) {
		sn.State = StateExited
		sn.Current = nil
		sn.LastExit = &info
		sn.RetryState = sn.RetryState.afterExit(s.policy, info.Lifetime)
	})
	if s.observer != nil {
		s.observer.ProcessExited(info.ExitCode, info.Lifetime)
	}
}

// stopChild signals the process group, waits the grace period, escalates
// to SIGKILL and waits until the child is reaped.
func (s *Supervisor) stopChild(h Handle) {
	pid := h.PID()
	if err := h.Terminate(); err != nil {
		s.log.Warn("SIGTERM failed", zap.Int("pid", pid), zap.Error(err))
	} else {
		s.log.Info("SIGTERM sent to process group", zap.Int("pgid", pid))
	}

	t := time.NewTimer(s.grace)
	defer t.Stop()

	select {
	case <-h.Done():
		return
	case <-t.C:
	}

	s.log.Warn("grace period elapsed; sending SIGKILL", zap.Int("pgid", pid), zap.Duration("grace", s.grace))
	if err := h.Kill(); err != nil {
		s.log.Warn("SIGKILL failed", zap.Int("pid", pid), zap.Error(err))
	}
	<-h.Done()
}

// publish applies fn to a copy of the current snapshot and stores it.
func (s *Supervisor) publish(fn func(*Snapshot)) {
	s.pubMu.Lock()
	prev := s.snap.Load()
	next := *prev
	fn(&next)
	next.UpdatedAt = s.now()
	s.snap.Store(&next)
	s.pubMu.Unlock()

	if prev.State != next.State {
		s.log.Debug("state changed", zap.Stringer("from", prev.State), zap.Stringer("to", next.State))
		if s.observer != nil {
			s.observer.StateChanged(prev.State, next.State)
		}
	}
}
