//go:build windows

package processes

import (
	"errors"
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

// interruptProcess tries os.Interrupt, which Windows does not deliver to other processes,
// and falls back to killing p.
func interruptProcess(p *os.Process) error {
	err := p.Signal(os.Interrupt)
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return p.Kill()
}

func killProcess(p *os.Process) error {
	return p.Kill()
}
