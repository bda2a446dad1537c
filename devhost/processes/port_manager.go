package processes

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ErrInvalidPortRange is returned by NewPortScanner when the range cannot be scanned.
var ErrInvalidPortRange = errors.New("invalid port range")

// PortScanner finds the first bindable TCP port in an inclusive range.
//
// The scan binds each candidate and releases it immediately, so another process may
// claim the port between the scan and the served process's own bind. No lock is held
// across that gap.
type PortScanner struct {
	host     string
	minPort  int
	maxPort  int
	attempts int // Number of binds performed by the last scan
}

// NewPortScanner creates a PortScanner for host over [minPort, maxPort].
func NewPortScanner(host string, minPort, maxPort int) (*PortScanner, error) {
	if !validPortRange(minPort, maxPort) {
		return nil, fmt.Errorf("%w: min %d, max %d", ErrInvalidPortRange, minPort, maxPort)
	}
	return &PortScanner{
		host:    host,
		minPort: minPort,
		maxPort: maxPort,
	}, nil
}

// FindFreePort returns the lowest port in the range that can be bound on the scanner's host.
// The boolean is false when every port in the range is taken.
func (ps *PortScanner) FindFreePort() (int, bool) {
	ps.attempts = 0
	for port := ps.minPort; port <= ps.maxPort; port++ {
		ps.attempts++
		if canBind(ps.host, port) {
			return port, true
		}
	}
	return 0, false
}

// Attempts reports how many ports the last FindFreePort call tried to bind.
func (ps *PortScanner) Attempts() int {
	return ps.attempts
}

// Range returns the inclusive port range scanned.
func (ps *PortScanner) Range() (int, int) {
	return ps.minPort, ps.maxPort
}

// FindFreePort is a convenience wrapper that scans [start, end] on host.
// An invalid range yields (0, false).
func FindFreePort(host string, start, end int) (int, bool) {
	ps, err := NewPortScanner(host, start, end)
	if err != nil {
		return 0, false
	}
	return ps.FindFreePort()
}

// JoinHostPort builds the bind address handed to the served process.
func JoinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func canBind(host string, port int) bool {
	l, err := net.Listen("tcp", JoinHostPort(host, port))
	if err != nil {
		return false
	}
	l.Close() // Release immediately; the served process binds it next
	return true
}

func validPortRange(minPort, maxPort int) bool {
	return minPort > 0 && maxPort <= 65535 && minPort <= maxPort
}
