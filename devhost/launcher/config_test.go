package launcher

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcaliburmoon/xcm-dev/devhost/processes"
)

func TestDefaultLaunchConfig(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultLaunchConfig(root)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8080, cfg.PortStart)
	assert.Equal(t, 8200, cfg.PortEnd)
	assert.Equal(t, "php", cfg.Binary)
	assert.True(t, cfg.OpenBrowser)
	assert.Equal(t, 10*time.Second, cfg.ReadinessTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.ReadinessPollInterval)
	assert.Equal(t, 300*time.Millisecond, cfg.BrowserOpenDelay)
	assert.Equal(t, "  [php] ", cfg.OutputPrefix)
	require.NotNil(t, cfg.Setup)
	assert.Equal(t, filepath.Join(root, CurrentPlatform().SetupScript), cfg.Setup.Script)
}

func TestLaunchConfig_Validate(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		name   string
		modify func(*LaunchConfig)
	}{
		{"relative root", func(c *LaunchConfig) { c.RootDir = "project" }},
		{"empty host", func(c *LaunchConfig) { c.Host = "" }},
		{"start after end", func(c *LaunchConfig) { c.PortStart, c.PortEnd = 8200, 8080 }},
		{"zero port", func(c *LaunchConfig) { c.PortStart = 0 }},
		{"port too large", func(c *LaunchConfig) { c.PortEnd = 70000 }},
		{"empty binary", func(c *LaunchConfig) { c.Binary = "" }},
		{"zero timeout", func(c *LaunchConfig) { c.ReadinessTimeout = 0 }},
		{"zero poll", func(c *LaunchConfig) { c.ReadinessPollInterval = 0 }},
		{"negative delay", func(c *LaunchConfig) { c.BrowserOpenDelay = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultLaunchConfig(root)
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultLaunchConfig(root)
	cfg.PortStart, cfg.PortEnd = 9000, 8000
	assert.ErrorIs(t, cfg.Validate(), processes.ErrInvalidPortRange)
}

func TestLaunchConfig_ServerCommand(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultLaunchConfig(root)

	cmd := cfg.ServerCommand(8081)
	assert.Equal(t, "php", cmd.Binary)
	assert.Equal(t, []string{"-S", "127.0.0.1:8081", filepath.Join(root, "router.php")}, cmd.Args)

	// The template is not modified.
	assert.Equal(t, []string{"-S", "{addr}", "{router}"}, cfg.Args)
}

func TestLaunchConfig_RouterPath(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultLaunchConfig(root)
	cfg.Router = "public/index.php"
	assert.Equal(t, filepath.Join(root, "public", "index.php"), cfg.RouterPath())

	abs := filepath.Join(t.TempDir(), "router.php")
	cfg.Router = abs
	assert.Equal(t, abs, cfg.RouterPath())
}

func TestExpandArgs(t *testing.T) {
	vars := map[string]string{"host": "0.0.0.0", "port": "9000", "root": "/srv"}
	got := ExpandArgs([]string{"--listen={host}:{port}", "-t", "{root}/public", "{unknown}"}, vars)
	assert.Equal(t, []string{"--listen=0.0.0.0:9000", "-t", "/srv/public", "{unknown}"}, got)
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:8080", BaseURL("127.0.0.1", 8080))
	assert.Equal(t, "http://[::1]:8080", BaseURL("::1", 8080))
}

func TestBuildURLs(t *testing.T) {
	base := "http://127.0.0.1:8081"

	got := BuildURLs(base, DefaultOpenTargets)
	assert.Equal(t, []string{
		"http://127.0.0.1:8081/dashboard",
		"http://127.0.0.1:8081/project-mgr",
		"http://127.0.0.1:8081/",
		"http://127.0.0.1:8081/?demo=1",
	}, got)

	got = BuildURLs(base, []string{"admin", "https://example.com/docs"})
	assert.Equal(t, []string{"http://127.0.0.1:8081/admin", "https://example.com/docs"}, got)

	assert.Empty(t, BuildURLs(base, nil))
}

func TestLaunchConfig_Targets(t *testing.T) {
	cfg := DefaultLaunchConfig(t.TempDir())
	assert.Equal(t, DefaultOpenTargets, cfg.Targets())

	cfg.OpenTargets = []string{"/only"}
	assert.Equal(t, []string{"/only"}, cfg.Targets())
}
