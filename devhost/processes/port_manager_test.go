package processes

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHost = "127.0.0.1"

// occupy binds an ephemeral port and keeps it until the test ends.
func occupy(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", testHost+":0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().(*net.TCPAddr).Port
}

// freePort returns a port that was bindable a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", testHost+":0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestFindFreePort_SingleOccupiedPort(t *testing.T) {
	port := occupy(t)

	got, ok := FindFreePort(testHost, port, port)
	assert.False(t, ok)
	assert.Zero(t, got)
}

func TestFindFreePort_SkipsOccupied(t *testing.T) {
	busy := occupy(t)
	if busy+2 > 65535 {
		t.Skip("no room above ephemeral port")
	}
	if !canBind(testHost, busy+1) {
		t.Skipf("port %d unexpectedly in use", busy+1)
	}

	got, ok := FindFreePort(testHost, busy, busy+2)
	require.True(t, ok)
	assert.Equal(t, busy+1, got)
}

func TestFindFreePort_ReturnsLowest(t *testing.T) {
	port := freePort(t)

	got, ok := FindFreePort(testHost, port, port)
	require.True(t, ok)
	assert.Equal(t, port, got)

	// The probe must not keep the port.
	ln, err := net.Listen("tcp", net.JoinHostPort(testHost, strconv.Itoa(got)))
	require.NoError(t, err)
	ln.Close()
}

func TestFindFreePort_InvalidRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
	}{
		{"start after end", 9000, 8999},
		{"zero start", 0, 10},
		{"end too large", 65530, 65536},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := FindFreePort(testHost, tt.start, tt.end)
			assert.False(t, ok)
		})
	}
}

func TestPortScanner(t *testing.T) {
	busy := occupy(t)

	ps, err := NewPortScanner(testHost, busy, busy)
	require.NoError(t, err)

	_, ok := ps.FindFreePort()
	assert.False(t, ok)
	assert.Equal(t, 1, ps.Attempts())

	lo, hi := ps.Range()
	assert.Equal(t, busy, lo)
	assert.Equal(t, busy, hi)
}

func TestNewPortScanner_InvalidRange(t *testing.T) {
	_, err := NewPortScanner(testHost, 8200, 8080)
	assert.ErrorIs(t, err, ErrInvalidPortRange)
}

func TestJoinHostPort(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", JoinHostPort("127.0.0.1", 8080))
	assert.Equal(t, "[::1]:8080", JoinHostPort("::1", 8080))
}
