package processes

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

const defaultGracePeriod = 5 * time.Second

// SupervisorConfig holds configuration options for the Supervisor.
type SupervisorConfig struct {
	Logger      *slog.Logger  // Optional, defaults to slog.Default()
	GracePeriod time.Duration // Optional, time between interrupt and kill, defaults to 5s
}

// Supervisor spawns the served process and hands back a ServerHandle that owns it.
type Supervisor struct {
	logger      *slog.Logger
	gracePeriod time.Duration
}

// NewSupervisor creates a new Supervisor instance.
func NewSupervisor(config SupervisorConfig) *Supervisor {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	grace := config.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}
	return &Supervisor{
		logger:      logger.With("component", "Supervisor"),
		gracePeriod: grace,
	}
}

// Spawn starts command in workDir with stdout and stderr captured for relaying.
//
// Cancelling ctx forwards an interrupt to the process; if it has not exited after the
// grace period it is killed. A binary that cannot be found or executed yields *SpawnError.
func (s *Supervisor) Spawn(ctx context.Context, command ServerCommand, workDir string) (*ServerHandle, error) {
	cmd := exec.CommandContext(ctx, command.Binary, command.Args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), command.Env...)
	cmd.Cancel = func() error {
		return interruptProcess(cmd.Process)
	}
	cmd.WaitDelay = s.gracePeriod
	setProcessGroup(cmd)

	// os/exec copies the child's output into these writers and Wait does not return until
	// the copies finish, so nothing written before exit is lost.
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	handle := newServerHandle(ctx, command, cmd)
	handle.stdout = stdoutR
	handle.stderr = stderrR
	handle.stdoutW = stdoutW
	handle.stderrW = stderrW

	s.logger.Debug("Starting served process", "command", command.String(), "dir", workDir)
	if err := cmd.Start(); err != nil {
		stdoutW.Close()
		stderrW.Close()
		stdoutR.Close()
		stderrR.Close()
		s.logger.Error("Failed to start served process", "binary", command.Binary, "error", err)
		return nil, &SpawnError{Binary: command.Binary, Err: err}
	}

	handle.PID = cmd.Process.Pid
	handle.Started = time.Now()
	s.logger.Info("Served process started", "pid", handle.PID, "command", command.String())
	return handle, nil
}
