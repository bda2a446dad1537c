package launcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/xcaliburmoon/xcm-dev/devhost/journal"
	"github.com/xcaliburmoon/xcm-dev/devhost/metrics"
	"github.com/xcaliburmoon/xcm-dev/devhost/processes"
	"github.com/xcaliburmoon/xcm-dev/devhost/sessions"
)

// relayDrainTimeout bounds how long Launch lets the relays flush lines the served process
// wrote just before exiting.
const relayDrainTimeout = 250 * time.Millisecond

// Recorder persists the lifecycle of each launch. *journal.Journal implements it.
type Recorder interface {
	RecordStart(l journal.Launch) error
	RecordReady(id string, ready bool) error
	RecordExit(id string, exitCode int, outcome string, exitErr error) error
}

// Config holds the collaborators of a Launcher. Every field is optional.
type Config struct {
	Logger     *slog.Logger
	Stdout     io.Writer // Launcher output and relayed stdout, defaults to os.Stdout
	Stderr     io.Writer // Relayed stderr, defaults to os.Stderr
	Supervisor *processes.Supervisor
	Checker    processes.ReadinessChecker
	Opener     BrowserOpener
	Recorder   Recorder          // nil disables the launch journal
	Sessions   *sessions.Manager // nil launches without a signed token
}

// Launcher runs the setup, port, spawn, relay, readiness, browser and wait sequence.
type Launcher struct {
	logger     *slog.Logger
	stdout     io.Writer
	stderr     io.Writer
	supervisor *processes.Supervisor
	checker    processes.ReadinessChecker
	opener     BrowserOpener
	recorder   Recorder
	sessions   *sessions.Manager
}

// Result describes a finished launch.
type Result struct {
	Port    int
	BaseURL string
	URLs    []string
	Session sessions.Session
	Ready   bool
	Setup   SetupResult
	Outcome processes.ExitOutcome
}

// New creates a Launcher, filling in defaults for unset collaborators.
func New(config Config) *Launcher {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	l := &Launcher{
		logger:     logger.With("component", "Launcher"),
		stdout:     config.Stdout,
		stderr:     config.Stderr,
		supervisor: config.Supervisor,
		checker:    config.Checker,
		opener:     config.Opener,
		recorder:   config.Recorder,
		sessions:   config.Sessions,
	}
	if l.stdout == nil {
		l.stdout = os.Stdout
	}
	if l.stderr == nil {
		l.stderr = os.Stderr
	}
	if l.supervisor == nil {
		l.supervisor = processes.NewSupervisor(processes.SupervisorConfig{Logger: logger})
	}
	if l.checker == nil {
		l.checker = processes.BindChecker{}
	}
	if l.opener == nil {
		l.opener = NewSystemBrowser(l.stdout, l.stderr)
	}
	return l
}

// Launch provisions and supervises one served process. It returns once the process has
// exited. The only errors are failures that stop the launch before the process runs:
// ErrPortExhausted, *processes.SpawnError, ErrInterrupted and configuration errors. How the
// served process itself exited is reported in Result.Outcome.
//
// Cancelling ctx before spawn aborts the launch; afterwards it forwards an interrupt to the
// served process and Launch returns when that process is gone.
func (l *Launcher) Launch(ctx context.Context, cfg LaunchConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		metrics.LaunchesTotal.WithLabelValues("config_error").Inc()
		return nil, fmt.Errorf("invalid launch config: %w", err)
	}
	result := &Result{}

	// Step 1: optional, best-effort setup
	result.Setup = RunSetup(ctx, cfg.Setup, cfg.RootDir, l.stdout, l.stderr, l.logger)
	if ctx.Err() != nil {
		metrics.LaunchesTotal.WithLabelValues("interrupted").Inc()
		return result, ErrInterrupted
	}

	// Step 2: first free port in range
	scanner, err := processes.NewPortScanner(cfg.Host, cfg.PortStart, cfg.PortEnd)
	if err != nil {
		metrics.LaunchesTotal.WithLabelValues("config_error").Inc()
		return result, err
	}
	port, ok := scanner.FindFreePort()
	metrics.PortProbesTotal.Add(float64(scanner.Attempts()))
	if !ok {
		metrics.LaunchesTotal.WithLabelValues("port_exhausted").Inc()
		return result, fmt.Errorf("%w in range %d-%d", ErrPortExhausted, cfg.PortStart, cfg.PortEnd)
	}
	l.logger.Debug("Selected port", "port", port, "probed", scanner.Attempts())

	// Step 3: bind address and concrete command line
	result.Port = port
	result.BaseURL = BaseURL(cfg.Host, port)
	result.URLs = BuildURLs(result.BaseURL, cfg.Targets())
	result.Session = sessions.NewSession(cfg.RootDir, cfg.Host, port, result.BaseURL)
	command := cfg.ServerCommand(port)
	command.Env = l.sessionEnv(result.Session)

	l.printEndpoints(port, result.URLs)

	// Step 4: spawn
	handle, err := l.supervisor.Spawn(ctx, command, cfg.RootDir)
	if err != nil {
		metrics.LaunchesTotal.WithLabelValues("spawn_failure").Inc()
		return result, err
	}
	// Never leave the served process behind if this function unwinds early.
	defer handle.Kill()
	metrics.LaunchesTotal.WithLabelValues("started").Inc()
	l.recordStart(result.Session, handle, command)

	// Step 5: two relays, concurrent with everything below
	state := processes.NewRelayState()
	relays, err := l.startRelays(handle, cfg.OutputPrefix, state)
	if err != nil {
		return result, err
	}

	// Step 6: advisory readiness probe
	probe := processes.NewReadinessProbe(cfg.ReadinessTimeout, cfg.ReadinessPollInterval)
	probe.Checker = l.checker
	probeStart := time.Now()
	result.Ready = probe.WaitUntilReady(ctx, cfg.Host, port)
	metrics.ReadinessDuration.WithLabelValues(probe.State().String()).Observe(time.Since(probeStart).Seconds())
	if result.Ready {
		handle.MarkRunning()
	} else if ctx.Err() == nil {
		l.logger.Warn("Server did not respond in time", "addr", processes.JoinHostPort(cfg.Host, port), "timeout", cfg.ReadinessTimeout)
	}
	l.recordReady(result.Session.ID, result.Ready)

	// Step 7: browser
	if cfg.OpenBrowser && ctx.Err() == nil {
		l.openURLs(ctx, result.URLs, cfg.BrowserOpenDelay)
	}

	// Step 8: block until the served process exits
	result.Outcome = handle.Wait()

	// Step 9: stop the relays and report
	l.stopRelays(relays, state)
	l.reportExit(handle, result.Outcome)
	l.recordExit(result.Session.ID, result.Outcome)
	return result, nil
}

func (l *Launcher) sessionEnv(s sessions.Session) []string {
	if l.sessions == nil {
		return s.Env()
	}
	env, err := l.sessions.Env(s)
	if err != nil {
		l.logger.Warn("Failed to issue launch token", "session", s.ID, "error", err)
		return s.Env()
	}
	return env
}

func (l *Launcher) printEndpoints(port int, urls []string) {
	fmt.Fprintln(l.stdout)
	fmt.Fprintf(l.stdout, "  Port:            %d\n", port)
	for _, u := range urls {
		fmt.Fprintf(l.stdout, "  Open:            %s\n", u)
	}
	fmt.Fprintln(l.stdout)
	fmt.Fprintln(l.stdout, "  Starting PHP server... (Ctrl+C to stop)")
	fmt.Fprintln(l.stdout)
}

func (l *Launcher) startRelays(handle *processes.ServerHandle, prefix string, state *processes.RelayState) ([]*processes.Relay, error) {
	stdout, err := handle.TakeStdout()
	if err != nil {
		return nil, err
	}
	stderr, err := handle.TakeStderr()
	if err != nil {
		stdout.Close()
		return nil, err
	}
	onLine := func(name string) {
		metrics.RelayLinesTotal.WithLabelValues(name).Inc()
	}
	return []*processes.Relay{
		processes.StartRelay(processes.RelayConfig{
			Name: "stdout", Stream: stdout, Sink: l.stdout, Prefix: prefix, State: state, OnLine: onLine,
		}),
		processes.StartRelay(processes.RelayConfig{
			Name: "stderr", Stream: stderr, Sink: l.stderr, Prefix: prefix, State: state, OnLine: onLine,
		}),
	}, nil
}

// stopRelays gives the relays a short window to flush what was written before exit, then
// clears the shared flag and waits for both tasks.
func (l *Launcher) stopRelays(relays []*processes.Relay, state *processes.RelayState) {
	deadline := time.NewTimer(relayDrainTimeout)
	defer deadline.Stop()
	for _, r := range relays {
		select {
		case <-r.Done():
		case <-deadline.C:
		}
	}
	state.Stop()
	for _, r := range relays {
		r.Stop()
	}
}

func (l *Launcher) openURLs(ctx context.Context, urls []string, delay time.Duration) {
	for _, u := range urls {
		if err := l.opener.Open(u); err != nil {
			metrics.BrowserOpensTotal.WithLabelValues("error").Inc()
			l.logger.Warn("Could not open browser", "url", u, "error", err)
		} else {
			metrics.BrowserOpensTotal.WithLabelValues("ok").Inc()
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (l *Launcher) reportExit(handle *processes.ServerHandle, outcome processes.ExitOutcome) {
	metrics.ServedExitsTotal.WithLabelValues(outcome.Label()).Inc()
	switch {
	case outcome.Success(), outcome.Interrupted && outcome.Err == nil:
		l.logger.Info("Served process exited", "pid", handle.PID, "outcome", outcome.Label(), "runtime", outcome.Runtime)
	case outcome.Err != nil:
		l.logger.Error("Served process wait failed", "pid", handle.PID, "error", outcome.Err)
		fmt.Fprintf(l.stderr, "  PHP server error: %v\n", outcome.Err)
	case outcome.Signaled:
		l.logger.Warn("Served process terminated by signal", "pid", handle.PID, "signal", outcome.Signal)
		fmt.Fprintf(l.stderr, "  PHP server terminated by signal: %v\n", outcome.Signal)
	default:
		l.logger.Warn("Served process exited with non-zero status", "pid", handle.PID, "status", outcome.ExitCode)
		fmt.Fprintf(l.stderr, "  PHP server exited with status: %d\n", outcome.ExitCode)
	}
}

func (l *Launcher) recordStart(s sessions.Session, handle *processes.ServerHandle, command processes.ServerCommand) {
	if l.recorder == nil {
		return
	}
	err := l.recorder.RecordStart(journal.Launch{
		ID:        s.ID,
		Root:      s.Root,
		Host:      s.Host,
		Port:      s.Port,
		PID:       handle.PID,
		Command:   command.String(),
		StartedAt: handle.Started.UTC().Unix(),
	})
	if err != nil {
		l.logger.Warn("Failed to record launch", "session", s.ID, "error", err)
	}
}

func (l *Launcher) recordReady(id string, ready bool) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.RecordReady(id, ready); err != nil {
		l.logger.Warn("Failed to record readiness", "session", id, "error", err)
	}
}

func (l *Launcher) recordExit(id string, outcome processes.ExitOutcome) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.RecordExit(id, outcome.ExitCode, outcome.Label(), outcome.Err); err != nil {
		l.logger.Warn("Failed to record exit", "session", id, "error", err)
	}
}
