package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
)

// SetupResult describes what the setup step did.
type SetupResult struct {
	Ran bool  // The script existed and was started
	Err error // Spawn failure or non-zero exit; never fatal to the launch
}

// RunSetup runs the project setup script with root as working directory. A missing script
// is a silent no-op. Failures are returned in the result for logging only.
func RunSetup(ctx context.Context, setup *SetupCommand, root string, stdout, stderr io.Writer, logger *slog.Logger) SetupResult {
	if setup == nil {
		return SetupResult{}
	}
	if _, err := os.Stat(setup.Script); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Debug("Setup script not accessible, skipping", "script", setup.Script, "error", err)
		}
		return SetupResult{}
	}

	fmt.Fprintln(stdout, "  Running setup...")

	name, args := setup.Script, []string(nil)
	if len(setup.Interpreter) > 0 {
		name = setup.Interpreter[0]
		args = append(append(args, setup.Interpreter[1:]...), setup.Script)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = root
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	switch {
	case err == nil:
		fmt.Fprintln(stdout, "  Setup complete.")
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Warn("Setup exited with non-zero status", "script", setup.Script, "status", exitErr.ExitCode())
		} else {
			logger.Warn("Setup could not be run", "script", setup.Script, "error", err)
		}
	}
	fmt.Fprintln(stdout)
	return SetupResult{Ran: true, Err: err}
}
