package launcher

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xcaliburmoon/xcm-dev/devhost/processes"
)

const (
	DefaultHost                  = "127.0.0.1"
	DefaultPortStart             = 8080
	DefaultPortEnd               = 8200
	DefaultRouter                = "router.php"
	DefaultBinary                = "php"
	DefaultReadinessTimeout      = 10 * time.Second
	DefaultReadinessPollInterval = 100 * time.Millisecond
	DefaultBrowserOpenDelay      = 300 * time.Millisecond
	DefaultOutputPrefix          = "  [php] "
)

// DefaultArgs is the argument template for the PHP built-in server.
var DefaultArgs = []string{"-S", "{addr}", "{router}"}

// DefaultOpenTargets are the paths opened when none are configured.
var DefaultOpenTargets = []string{"/dashboard", "/project-mgr", "/", "/?demo=1"}

// SetupCommand is a project setup script and the interpreter that runs it.
type SetupCommand struct {
	Interpreter []string // e.g. ["bash"] or ["cmd", "/C"]
	Script      string   // Absolute path to the script
}

// LaunchConfig is the resolved configuration for one launch. It is not modified once
// Launch has been called.
type LaunchConfig struct {
	RootDir   string
	Host      string
	PortStart int
	PortEnd   int

	Binary string
	Args   []string // Template; see ExpandArgs
	Router string   // Entry file, relative to RootDir unless absolute

	Setup *SetupCommand // nil skips the setup step

	OpenTargets []string
	OpenBrowser bool

	ReadinessTimeout      time.Duration
	ReadinessPollInterval time.Duration
	BrowserOpenDelay      time.Duration

	OutputPrefix string
}

// DefaultLaunchConfig returns the launcher defaults for root.
func DefaultLaunchConfig(root string) LaunchConfig {
	return LaunchConfig{
		RootDir:               root,
		Host:                  DefaultHost,
		PortStart:             DefaultPortStart,
		PortEnd:               DefaultPortEnd,
		Binary:                DefaultBinary,
		Args:                  append([]string(nil), DefaultArgs...),
		Router:                DefaultRouter,
		Setup:                 CurrentPlatform().SetupCommand(root),
		OpenBrowser:           true,
		ReadinessTimeout:      DefaultReadinessTimeout,
		ReadinessPollInterval: DefaultReadinessPollInterval,
		BrowserOpenDelay:      DefaultBrowserOpenDelay,
		OutputPrefix:          DefaultOutputPrefix,
	}
}

// Validate checks the invariants the launcher relies on.
func (c LaunchConfig) Validate() error {
	if !filepath.IsAbs(c.RootDir) {
		return fmt.Errorf("root directory must be absolute, got %q", c.RootDir)
	}
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.PortStart <= 0 || c.PortEnd > 65535 || c.PortStart > c.PortEnd {
		return fmt.Errorf("%w: %d-%d", processes.ErrInvalidPortRange, c.PortStart, c.PortEnd)
	}
	if c.Binary == "" {
		return fmt.Errorf("server binary is required")
	}
	if c.ReadinessTimeout <= 0 || c.ReadinessPollInterval <= 0 {
		return fmt.Errorf("readiness timeout and poll interval must be positive")
	}
	if c.BrowserOpenDelay < 0 {
		return fmt.Errorf("browser open delay must not be negative")
	}
	return nil
}

// RouterPath returns the absolute path of the entry file.
func (c LaunchConfig) RouterPath() string {
	if filepath.IsAbs(c.Router) {
		return c.Router
	}
	return filepath.Join(c.RootDir, c.Router)
}

// Targets returns the configured open targets, or the defaults when none are set.
func (c LaunchConfig) Targets() []string {
	if len(c.OpenTargets) == 0 {
		return DefaultOpenTargets
	}
	return c.OpenTargets
}

// ServerCommand substitutes the bound port into the argument template.
func (c LaunchConfig) ServerCommand(port int) processes.ServerCommand {
	return processes.ServerCommand{
		Binary: c.Binary,
		Args:   ExpandArgs(c.Args, c.templateVars(port)),
	}
}

func (c LaunchConfig) templateVars(port int) map[string]string {
	return map[string]string{
		"host":   c.Host,
		"port":   strconv.Itoa(port),
		"addr":   processes.JoinHostPort(c.Host, port),
		"router": c.RouterPath(),
		"root":   c.RootDir,
	}
}

// ExpandArgs replaces {name} placeholders in each template argument.
func ExpandArgs(template []string, vars map[string]string) []string {
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	replacer := strings.NewReplacer(pairs...)

	args := make([]string, len(template))
	for i, arg := range template {
		args[i] = replacer.Replace(arg)
	}
	return args
}

// BaseURL is the http origin the served process answers on.
func BaseURL(host string, port int) string {
	u := url.URL{Scheme: "http", Host: processes.JoinHostPort(host, port)}
	return u.String()
}

// BuildURLs joins each target path onto the base URL, in order.
func BuildURLs(base string, targets []string) []string {
	urls := make([]string, 0, len(targets))
	for _, target := range targets {
		if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
			urls = append(urls, target)
			continue
		}
		if !strings.HasPrefix(target, "/") {
			target = "/" + target
		}
		urls = append(urls, base+target)
	}
	return urls
}
