package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/xcaliburmoon/xcm-dev/devhost/launcher"
	"github.com/xcaliburmoon/xcm-dev/devhost/processes"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

// exitCode maps a command error to the process exit status. The served process's own exit
// status never reaches here.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, launcher.ErrInterrupted):
		return exitInterrupted
	default:
		return exitFailure
	}
}

func printError(w io.Writer, err error) {
	var spawnErr *processes.SpawnError
	switch {
	case errors.Is(err, launcher.ErrInterrupted):
		fmt.Fprintln(w, "  Interrupted.")
	case errors.As(err, &spawnErr):
		fmt.Fprintf(w, "  ERROR: Could not start server: %v\n", spawnErr.Err)
		fmt.Fprintf(w, "  Make sure '%s' is on your PATH.\n", spawnErr.Binary)
	default:
		fmt.Fprintf(w, "  ERROR: %v\n", err)
	}
}
