// Package config resolves launcher settings from defaults, an optional .xcm-dev.yaml in the
// project root and XCM_DEV_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xcaliburmoon/xcm-dev/devhost/launcher"
)

const (
	// FileName is the settings file looked up in the project root, without extension.
	FileName  = ".xcm-dev"
	EnvPrefix = "XCM_DEV"

	appDir = "xcm-dev"
)

// Settings is the merged configuration for one invocation.
type Settings struct {
	Host                  string        `mapstructure:"host"`
	PortStart             int           `mapstructure:"port_start"`
	PortEnd               int           `mapstructure:"port_end"`
	Router                string        `mapstructure:"router"`
	PHP                   string        `mapstructure:"php"`
	Args                  []string      `mapstructure:"args"`
	Open                  []string      `mapstructure:"open"`
	Setup                 bool          `mapstructure:"setup"`
	OpenBrowser           bool          `mapstructure:"open_browser"`
	ReadinessTimeout      time.Duration `mapstructure:"readiness_timeout"`
	ReadinessPollInterval time.Duration `mapstructure:"readiness_poll_interval"`
	BrowserOpenDelay      time.Duration `mapstructure:"browser_open_delay"`
	OutputPrefix          string        `mapstructure:"output_prefix"`
	GracePeriod           time.Duration `mapstructure:"grace_period"`
	Journal               string        `mapstructure:"journal"`
	SessionKey            string        `mapstructure:"session_key"`
	MetricsAddr           string        `mapstructure:"metrics_addr"`

	// ConfigFile is the settings file that was read, empty when none was found.
	ConfigFile string `mapstructure:"-"`
}

// Load reads the settings for a project root.
func Load(root string) (*Settings, error) {
	v := viper.New()

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(root)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	s.ConfigFile = v.ConfigFileUsed()
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", launcher.DefaultHost)
	v.SetDefault("port_start", launcher.DefaultPortStart)
	v.SetDefault("port_end", launcher.DefaultPortEnd)
	v.SetDefault("router", launcher.DefaultRouter)
	v.SetDefault("php", launcher.DefaultBinary)
	v.SetDefault("args", launcher.DefaultArgs)
	v.SetDefault("open", []string{})
	v.SetDefault("setup", true)
	v.SetDefault("open_browser", true)
	v.SetDefault("readiness_timeout", launcher.DefaultReadinessTimeout)
	v.SetDefault("readiness_poll_interval", launcher.DefaultReadinessPollInterval)
	v.SetDefault("browser_open_delay", launcher.DefaultBrowserOpenDelay)
	v.SetDefault("output_prefix", launcher.DefaultOutputPrefix)
	v.SetDefault("grace_period", 5*time.Second)
	v.SetDefault("journal", DefaultJournalPath())
	v.SetDefault("session_key", DefaultSessionKeyPath())
	v.SetDefault("metrics_addr", "")
}

// DefaultJournalPath is <user cache dir>/xcm-dev/launches.db, or empty when the platform has
// no cache directory.
func DefaultJournalPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appDir, "launches.db")
}

// DefaultSessionKeyPath is <user config dir>/xcm-dev/session.key, or empty when the platform
// has no config directory.
func DefaultSessionKeyPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appDir, "session.key")
}

// LaunchConfig converts the settings into the launcher's input for root.
func (s *Settings) LaunchConfig(root string) launcher.LaunchConfig {
	cfg := launcher.DefaultLaunchConfig(root)
	cfg.Host = s.Host
	cfg.PortStart = s.PortStart
	cfg.PortEnd = s.PortEnd
	cfg.Router = s.Router
	cfg.Binary = s.PHP
	if len(s.Args) > 0 {
		cfg.Args = append([]string(nil), s.Args...)
	}
	cfg.OpenTargets = append([]string(nil), s.Open...)
	cfg.OpenBrowser = s.OpenBrowser
	if !s.Setup {
		cfg.Setup = nil
	}
	cfg.ReadinessTimeout = s.ReadinessTimeout
	cfg.ReadinessPollInterval = s.ReadinessPollInterval
	cfg.BrowserOpenDelay = s.BrowserOpenDelay
	cfg.OutputPrefix = s.OutputPrefix
	return cfg
}
