package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/xcaliburmoon/xcm-dev/devhost/journal"
	"github.com/xcaliburmoon/xcm-dev/devhost/launcher"
	"github.com/xcaliburmoon/xcm-dev/devhost/metrics"
	"github.com/xcaliburmoon/xcm-dev/devhost/processes"
	"github.com/xcaliburmoon/xcm-dev/devhost/sessions"
)

func runLaunch(ctx context.Context, flags *pflag.FlagSet, opts *rootOptions) error {
	// 1. Setup logger
	logger := newLogger(opts.stderr, opts.verbose)
	slog.SetDefault(logger)

	// 2. Resolve project root and settings
	root, err := opts.projectRoot()
	if err != nil {
		return err
	}
	settings, err := opts.loadSettings(flags, root)
	if err != nil {
		return err
	}
	if settings.ConfigFile != "" {
		logger.Debug("Loaded settings file", "path", settings.ConfigFile)
	}
	cfg := settings.LaunchConfig(root)

	printBanner(opts.stdout, cfg)

	// 3. Optional metrics listener
	if settings.MetricsAddr != "" {
		srv := metrics.StartServer(settings.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		logger.Info("Serving metrics", "addr", settings.MetricsAddr)
	}

	// 4. Launch journal and session tokens; both are optional
	launcherConfig := launcher.Config{
		Logger: logger,
		Stdout: opts.stdout,
		Stderr: opts.stderr,
		Supervisor: processes.NewSupervisor(processes.SupervisorConfig{
			Logger:      logger,
			GracePeriod: settings.GracePeriod,
		}),
	}
	if settings.Journal != "" {
		j, err := journal.Open(settings.Journal)
		if err != nil {
			logger.Warn("Launch journal disabled", "path", settings.Journal, "error", err)
		} else {
			defer j.Close()
			launcherConfig.Recorder = j
		}
	}
	if settings.SessionKey != "" {
		m, err := sessions.NewManager(settings.SessionKey, sessions.DefaultTTL)
		if err != nil {
			logger.Warn("Launch tokens disabled", "key", settings.SessionKey, "error", err)
		} else {
			launcherConfig.Sessions = m
		}
	}

	// 5. Run until the served process exits
	result, err := launcher.New(launcherConfig).Launch(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Debug("Launch finished", "session", result.Session.ID, "port", result.Port, "ready", result.Ready, "outcome", result.Outcome.Label())
	return nil
}

func printBanner(w io.Writer, cfg launcher.LaunchConfig) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  xcm-dev v%s\n", Version)
	fmt.Fprintf(w, "  Project root: %s\n", cfg.RootDir)
	fmt.Fprintf(w, "  Port range:   %d-%d\n", cfg.PortStart, cfg.PortEnd)
	fmt.Fprintf(w, "  Router:       %s\n", cfg.Router)
	fmt.Fprintln(w)
}

