package launcher

import (
	"path/filepath"
	"runtime"
)

// Platform holds the host-specific pieces of a launch, resolved once per run.
type Platform struct {
	Name             string
	SetupScript      string   // File name looked up under the project root
	SetupInterpreter []string // Prepended to the script path
}

var (
	windowsPlatform = Platform{
		Name:             "windows",
		SetupScript:      "setup.bat",
		SetupInterpreter: []string{"cmd", "/C"},
	}
	unixPlatform = Platform{
		Name:             "unix",
		SetupScript:      "setup.sh",
		SetupInterpreter: []string{"bash"},
	}
)

// PlatformFor resolves the platform entry for a GOOS value.
func PlatformFor(goos string) Platform {
	if goos == "windows" {
		return windowsPlatform
	}
	p := unixPlatform
	p.Name = goos
	return p
}

// CurrentPlatform resolves the platform the launcher is running on.
func CurrentPlatform() Platform {
	return PlatformFor(runtime.GOOS)
}

// SetupCommand returns the setup invocation for a project root.
func (p Platform) SetupCommand(root string) *SetupCommand {
	return &SetupCommand{
		Interpreter: append([]string(nil), p.SetupInterpreter...),
		Script:      filepath.Join(root, p.SetupScript),
	}
}
