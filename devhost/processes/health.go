package processes

import (
	"context"
	"time"
)

// ReadinessState is the outcome of a readiness probe.
type ReadinessState int

const (
	// StatePolling means the probe is still waiting for the port to be claimed.
	StatePolling ReadinessState = iota
	// StateReady means something is listening on the probed address.
	StateReady
	// StateTimedOut means the timeout elapsed before anything started listening.
	StateTimedOut
)

// String returns a string representation of the ReadinessState.
func (rs ReadinessState) String() string {
	switch rs {
	case StatePolling:
		return "Polling"
	case StateReady:
		return "Ready"
	case StateTimedOut:
		return "TimedOut"
	default:
		return "InvalidState"
	}
}

// ReadinessChecker reports whether something is accepting connections on host:port.
type ReadinessChecker interface {
	Listening(host string, port int) bool
}

// BindChecker detects a listener by trying to bind the address itself. A failed bind means
// the port has been claimed. It needs no cooperation from the served process, but it cannot
// tell the served process apart from any other process that grabbed the port.
type BindChecker struct{}

// Listening returns true when host:port cannot be bound.
func (BindChecker) Listening(host string, port int) bool {
	return !canBind(host, port)
}

// ReadinessProbe polls a ReadinessChecker until it reports a listener or the timeout elapses.
type ReadinessProbe struct {
	Checker      ReadinessChecker // Optional, defaults to BindChecker
	Timeout      time.Duration
	PollInterval time.Duration

	state ReadinessState
}

// NewReadinessProbe creates a bind-based probe.
func NewReadinessProbe(timeout, pollInterval time.Duration) *ReadinessProbe {
	return &ReadinessProbe{
		Checker:      BindChecker{},
		Timeout:      timeout,
		PollInterval: pollInterval,
	}
}

// State returns the state reached by the last WaitUntilReady call.
func (rp *ReadinessProbe) State() ReadinessState {
	return rp.state
}

// WaitUntilReady polls host:port until it is claimed (true) or the timeout elapses (false).
// A cancelled context ends the wait early as a timeout.
func (rp *ReadinessProbe) WaitUntilReady(ctx context.Context, host string, port int) bool {
	checker := rp.Checker
	if checker == nil {
		checker = BindChecker{}
	}

	rp.state = StatePolling
	start := time.Now()
	for {
		if checker.Listening(host, port) {
			rp.state = StateReady
			return true
		}
		if time.Since(start) >= rp.Timeout {
			rp.state = StateTimedOut
			return false
		}

		timer := time.NewTimer(rp.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			rp.state = StateTimedOut
			return false
		case <-timer.C:
		}
	}
}

// WaitUntilReady runs a bind-based probe against host:port.
func WaitUntilReady(ctx context.Context, host string, port int, timeout, pollInterval time.Duration) bool {
	return NewReadinessProbe(timeout, pollInterval).WaitUntilReady(ctx, host, port)
}
