package processes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// ProcessState represents the lifecycle state of the served process.
type ProcessState int

const (
	// StateStarting means the process has been spawned but not yet confirmed listening.
	StateStarting ProcessState = iota
	// StateRunning means the process is running.
	StateRunning
	// StateStopped means the process exited.
	StateStopped
	// StateKilled means the process was killed by a signal.
	StateKilled
)

// String returns a string representation of the ProcessState.
func (ps ProcessState) String() string {
	switch ps {
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	case StateKilled:
		return "Killed"
	default:
		return "InvalidState"
	}
}

// Sentinel errors for the processes package.
var (
	// ErrStreamTaken is returned when a stream has already been handed to a relay.
	ErrStreamTaken = errors.New("stream already taken")

	// ErrNotStarted is returned when a handle has no running process.
	ErrNotStarted = errors.New("process not started")
)

// SpawnError reports that the served process could not be started at all.
type SpawnError struct {
	Binary string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("could not start %q: %v", e.Binary, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ServerCommand is a concrete command line for the served process.
type ServerCommand struct {
	Binary string
	Args   []string
	Env    []string // Appended to the launcher's environment
}

// String renders the command line for logs.
func (sc ServerCommand) String() string {
	return strings.TrimSpace(sc.Binary + " " + strings.Join(sc.Args, " "))
}

// ExitOutcome describes how the served process terminated.
type ExitOutcome struct {
	ExitCode    int           // -1 when the code is unknown (signal, wait error)
	Signaled    bool          // Terminated by a signal
	Signal      os.Signal     // The terminating signal when Signaled
	Interrupted bool          // The launcher asked the process to stop
	Err         error         // Wait error that is not a plain non-zero exit
	Runtime     time.Duration // Time between spawn and exit
}

// Success reports whether the process exited with status 0.
func (eo ExitOutcome) Success() bool {
	return eo.Err == nil && eo.ExitCode == 0 && !eo.Signaled
}

// Label is a short outcome name used for journal rows and metrics labels.
func (eo ExitOutcome) Label() string {
	switch {
	case eo.Success():
		return "success"
	case eo.Interrupted:
		return "interrupted"
	case eo.Err != nil:
		return "wait_error"
	case eo.Signaled:
		return "signaled"
	default:
		return "failure"
	}
}

// ServerHandle wraps exactly one running served process.
//
// The stdout and stderr readers are handed over once to relay tasks via TakeStdout and
// TakeStderr. The handle keeps the ability to wait for and kill the process.
type ServerHandle struct {
	Command ServerCommand
	Cmd     *exec.Cmd
	PID     int
	Started time.Time

	ctx context.Context

	mu      sync.Mutex // Protects the stream readers
	stdout  io.ReadCloser
	stderr  io.ReadCloser
	stdoutW *io.PipeWriter
	stderrW *io.PipeWriter

	state    atomic.Int32
	waitOnce sync.Once
	outcome  ExitOutcome
	done     chan struct{}
}

func newServerHandle(ctx context.Context, command ServerCommand, cmd *exec.Cmd) *ServerHandle {
	h := &ServerHandle{
		Command: command,
		Cmd:     cmd,
		ctx:     ctx,
		done:    make(chan struct{}),
	}
	h.state.Store(int32(StateStarting))
	return h
}

// State returns the current process state.
func (h *ServerHandle) State() ProcessState {
	return ProcessState(h.state.Load())
}

// MarkRunning records that the process was seen listening.
func (h *ServerHandle) MarkRunning() {
	h.state.CompareAndSwap(int32(StateStarting), int32(StateRunning))
}

// Done returns a channel that is closed once Wait has observed the exit.
func (h *ServerHandle) Done() <-chan struct{} {
	return h.done
}

// TakeStdout transfers ownership of the stdout reader to the caller.
func (h *ServerHandle) TakeStdout() (io.ReadCloser, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stdout == nil {
		return nil, fmt.Errorf("stdout: %w", ErrStreamTaken)
	}
	r := h.stdout
	h.stdout = nil
	return r, nil
}

// TakeStderr transfers ownership of the stderr reader to the caller.
func (h *ServerHandle) TakeStderr() (io.ReadCloser, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stderr == nil {
		return nil, fmt.Errorf("stderr: %w", ErrStreamTaken)
	}
	r := h.stderr
	h.stderr = nil
	return r, nil
}

// Wait blocks until the served process terminates. It has no timeout; the only way to end
// it early is to stop the process from outside (an interrupt forwarded through the spawn
// context, or Kill). Calling Wait again returns the same outcome.
func (h *ServerHandle) Wait() ExitOutcome {
	h.waitOnce.Do(func() {
		err := h.Cmd.Wait()

		// Every byte the child wrote has been copied into the pipes; let readers see EOF.
		h.stdoutW.Close()
		h.stderrW.Close()

		h.outcome = h.classify(err)
		if h.outcome.Signaled {
			h.state.Store(int32(StateKilled))
		} else {
			h.state.Store(int32(StateStopped))
		}
		close(h.done)
	})
	return h.outcome
}

func (h *ServerHandle) classify(err error) ExitOutcome {
	outcome := ExitOutcome{
		ExitCode:    0,
		Interrupted: h.ctx.Err() != nil,
		Runtime:     time.Since(h.Started),
	}
	if err == nil {
		return outcome
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		outcome.ExitCode = exitErr.ExitCode()
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			outcome.Signaled = true
			outcome.Signal = status.Signal()
		}
		return outcome
	}

	outcome.ExitCode = -1
	if h.Cmd.ProcessState != nil {
		outcome.ExitCode = h.Cmd.ProcessState.ExitCode()
	}
	// A cancelled context surfaces from Wait even when the child exited cleanly.
	if outcome.Interrupted && errors.Is(err, h.ctx.Err()) {
		return outcome
	}
	outcome.Err = err
	return outcome
}

// Kill terminates the process immediately if it is still running.
func (h *ServerHandle) Kill() error {
	if h.Cmd.Process == nil {
		return ErrNotStarted
	}
	select {
	case <-h.done:
		return nil
	default:
	}
	if err := killProcess(h.Cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Interrupt asks the process to stop, falling back to Kill where interrupts are unsupported.
func (h *ServerHandle) Interrupt() error {
	if h.Cmd.Process == nil {
		return ErrNotStarted
	}
	return interruptProcess(h.Cmd.Process)
}
