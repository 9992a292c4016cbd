package processmgr

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrSpawnFailure reports that the child could not be started at all
// (missing binary, permissions, resource exhaustion).
var ErrSpawnFailure = errors.New("spawn failure")

// SpawnFailureExitCode is recorded for runs that never started.
const SpawnFailureExitCode = -1

// Launcher starts one child process.
type Launcher interface {
	Launch(argv []string, stderr io.Writer) (Handle, error)
}

// Handle is a running child.
//
// Done is closed once the child has been reaped; ExitCode is valid only
// after that and is -1 for a child ended by a signal.
type Handle interface {
	PID() int
	Done() <-chan struct{}
	ExitCode() int
	Terminate() error
	Kill() error
}

// ExecLauncher starts real processes. On Linux each child gets its own
// process group and dies with the parent.
type ExecLauncher struct {
	log *zap.Logger
	env []string
}

// NewExecLauncher returns a launcher passing env to every child; a nil env
// inherits the parent's environment.
func NewExecLauncher(log *zap.Logger, env []string) *ExecLauncher {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecLauncher{log: log.Named("exec"), env: env}
}

func (l *ExecLauncher) Launch(argv []string, stderr io.Writer) (Handle, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty argv", ErrSpawnFailure)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = l.env
	cmd.Stderr = stderr
	cmd.SysProcAttr = sysProcAttr()
	// stderr copier must not outlive the child by much if a grandchild holds the pipe
	cmd.WaitDelay = 2 * time.Second

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawnFailure, err)
	}

	h := &execHandle{cmd: cmd, done: make(chan struct{})}
	h.exitCode.Store(SpawnFailureExitCode)
	go h.wait(l.log)
	return h, nil
}

type execHandle struct {
	cmd      *exec.Cmd
	done     chan struct{}
	exitCode atomic.Int64
}

func (h *execHandle) wait(log *zap.Logger) {
	defer close(h.done)
	err := h.cmd.Wait()
	if ps := h.cmd.ProcessState; ps != nil {
		h.exitCode.Store(int64(ps.ExitCode()))
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		log.Debug("wait returned", zap.Int("pid", h.PID()), zap.Error(err))
	}
}

func (h *execHandle) PID() int              { return h.cmd.Process.Pid }
func (h *execHandle) Done() <-chan struct{} { return h.done }
func (h *execHandle) ExitCode() int         { return int(h.exitCode.Load()) }

func (h *execHandle) Terminate() error { return terminate(h.cmd.Process) }
func (h *execHandle) Kill() error      { return kill(h.cmd.Process) }
