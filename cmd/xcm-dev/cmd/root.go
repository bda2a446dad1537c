package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/xcaliburmoon/xcm-dev/devhost/config"
)

// Version is overridden at build time with -ldflags "-X .../cmd.Version=...".
var Version = "0.1.0"

type rootOptions struct {
	root         string
	host         string
	portStart    int
	portEnd      int
	router       string
	php          string
	open         []string
	noSetup      bool
	noOpen       bool
	readyTimeout time.Duration
	readyPoll    time.Duration
	openDelay    time.Duration
	journal      string
	noJournal    bool
	metricsAddr  string
	verbose      bool

	stdout io.Writer
	stderr io.Writer
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd(os.Stdout, os.Stderr)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printError(os.Stderr, err)
	}
	return exitCode(err)
}

// NewRootCmd builds the xcm-dev command tree writing to stdout and stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	return newRootCmd(&rootOptions{stdout: stdout, stderr: stderr})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xcm-dev",
		Short: "Cross-platform PHP development launcher",
		Long: `xcm-dev starts a development server for a PHP project.

It finds the first free port in a range, runs setup.sh (setup.bat on Windows) if present,
starts the PHP built-in server with the project's router, waits until the server is
listening and opens the project pages in the default browser. Server output is relayed
until the server exits or Ctrl+C is pressed.`,
		Version:       Version,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		FParseErrWhitelist: cobra.FParseErrWhitelist{
			UnknownFlags: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(cmd.Context(), cmd.Flags(), opts)
		},
	}
	rootCmd.SetOut(opts.stdout)
	rootCmd.SetErr(opts.stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.root, "root", "", "Project root directory (default: auto-detect)")
	pf.StringVar(&opts.journal, "journal", "", "Launch journal database (default: user cache dir)")
	pf.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")

	f := rootCmd.Flags()
	f.StringVar(&opts.host, "host", "", "Bind host (default: 127.0.0.1)")
	f.IntVar(&opts.portStart, "port-start", 0, "First port to try (default: 8080)")
	f.IntVar(&opts.portEnd, "port-end", 0, "Last port to try (default: 8200)")
	f.StringVar(&opts.router, "router", "", "PHP router filename (default: router.php)")
	f.StringArrayVar(&opts.open, "open", nil, "URL path to open, repeatable (default: /dashboard /project-mgr / /?demo=1)")
	f.StringVar(&opts.php, "php", "", "PHP binary name or path (default: php)")
	f.BoolVar(&opts.noSetup, "no-setup", false, "Skip setup.sh / setup.bat")
	f.BoolVar(&opts.noOpen, "no-open", false, "Do not open the browser")
	f.DurationVar(&opts.readyTimeout, "ready-timeout", 0, "How long to wait for the server to listen (default: 10s)")
	f.DurationVar(&opts.readyPoll, "ready-poll", 0, "Interval between readiness checks (default: 100ms)")
	f.DurationVar(&opts.openDelay, "open-delay", 0, "Pause between browser opens (default: 300ms)")
	f.BoolVar(&opts.noJournal, "no-journal", false, "Do not record this launch")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newVerifyTokenCmd(opts))
	return rootCmd
}

// projectRoot returns the absolute root from --root, or the detected one.
func (o *rootOptions) projectRoot() (string, error) {
	root := o.root
	if root == "" {
		root = config.DetectProjectRoot()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve project root %q: %w", root, err)
	}
	return abs, nil
}

// loadSettings merges file and environment settings with the flags set on the command line.
func (o *rootOptions) loadSettings(flags *pflag.FlagSet, root string) (*config.Settings, error) {
	settings, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	o.apply(flags, settings)
	return settings, nil
}

// apply overrides settings with flags that were given explicitly.
func (o *rootOptions) apply(flags *pflag.FlagSet, s *config.Settings) {
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}
	if changed("host") {
		s.Host = o.host
	}
	if changed("port-start") {
		s.PortStart = o.portStart
	}
	if changed("port-end") {
		s.PortEnd = o.portEnd
	}
	if changed("router") {
		s.Router = o.router
	}
	if changed("php") {
		s.PHP = o.php
	}
	if changed("open") {
		s.Open = append([]string(nil), o.open...)
	}
	if changed("no-setup") && o.noSetup {
		s.Setup = false
	}
	if changed("no-open") && o.noOpen {
		s.OpenBrowser = false
	}
	if changed("ready-timeout") {
		s.ReadinessTimeout = o.readyTimeout
	}
	if changed("ready-poll") {
		s.ReadinessPollInterval = o.readyPoll
	}
	if changed("open-delay") {
		s.BrowserOpenDelay = o.openDelay
	}
	if changed("journal") {
		s.Journal = o.journal
	}
	if changed("no-journal") && o.noJournal {
		s.Journal = ""
	}
	if changed("metrics-addr") {
		s.MetricsAddr = o.metricsAddr
	}
}
