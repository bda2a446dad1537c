//go:build !windows

package processes

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup starts the served process in its own process group so that worker
// processes it forks are signalled together with it.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// interruptProcess sends SIGINT to the process group led by p.
func interruptProcess(p *os.Process) error {
	return signalGroup(p, unix.SIGINT)
}

// killProcess sends SIGKILL to the process group led by p.
func killProcess(p *os.Process) error {
	return signalGroup(p, unix.SIGKILL)
}

func signalGroup(p *os.Process, sig unix.Signal) error {
	err := unix.Kill(-p.Pid, sig)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ESRCH):
		return os.ErrProcessDone
	}
	// The group is gone or not ours; fall back to the leader alone.
	return p.Signal(sig)
}
