package processes

import (
	"bufio"
	"io"
	"strings"
	"sync/atomic"
)

// RelayState is the cooperative stop signal shared by the relay tasks of one served process.
// It starts running and can only move to stopped, once.
type RelayState struct {
	running atomic.Bool
}

// NewRelayState returns a state in the running position.
func NewRelayState() *RelayState {
	rs := &RelayState{}
	rs.running.Store(true)
	return rs
}

// Running reports whether relays may keep forwarding output.
func (rs *RelayState) Running() bool {
	return rs.running.Load()
}

// Stop clears the running flag. Relays observe it before writing their next line.
func (rs *RelayState) Stop() {
	rs.running.Store(false)
}

// RelayConfig describes one relay task.
type RelayConfig struct {
	Name   string        // "stdout" or "stderr", used for metrics and logs
	Stream io.ReadCloser // Ownership passes to the relay
	Sink   io.Writer
	Prefix string
	State  *RelayState
	OnLine func(name string) // Optional, called after each forwarded line
}

// Relay forwards one output stream of the served process line by line.
type Relay struct {
	config RelayConfig
	lines  atomic.Int64
	done   chan struct{}
}

// StartRelay launches the relay task and returns immediately.
func StartRelay(config RelayConfig) *Relay {
	if config.State == nil {
		config.State = NewRelayState()
	}
	r := &Relay{
		config: config,
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Relay) run() {
	defer close(r.done)
	defer r.config.Stream.Close()

	reader := bufio.NewReader(r.config.Stream)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			if !r.config.State.Running() {
				break
			}
			line = strings.TrimRight(line, "\r\n")
			if _, werr := io.WriteString(r.config.Sink, r.config.Prefix+line+"\n"); werr != nil {
				break
			}
			r.lines.Add(1)
			if r.config.OnLine != nil {
				r.config.OnLine(r.config.Name)
			}
		}
		if err != nil {
			// EOF or a closed pipe both mean the stream is finished.
			return
		}
	}

	// Keep the writer side from blocking on a reader that stopped early.
	io.Copy(io.Discard, reader)
}

// Done returns a channel that is closed when the relay task has exited.
func (r *Relay) Done() <-chan struct{} {
	return r.done
}

// Lines returns the number of lines forwarded so far.
func (r *Relay) Lines() int64 {
	return r.lines.Load()
}

// Stop clears the shared running flag, closes the stream and waits for the task to exit.
func (r *Relay) Stop() {
	r.config.State.Stop()
	r.config.Stream.Close()
	<-r.done
}
