package sessions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "state", "session.key"), ttl)
	require.NoError(t, err)
	return m
}

func envMap(env []string) map[string]string {
	m := make(map[string]string, len(env))
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		m[k] = v
	}
	return m
}

func TestNewSession(t *testing.T) {
	s := NewSession("/srv/app", "127.0.0.1", 8081, "http://127.0.0.1:8081")

	_, err := uuid.Parse(s.ID)
	require.NoError(t, err)
	assert.Equal(t, 8081, s.Port)
	assert.False(t, s.Started.IsZero())

	other := NewSession("/srv/app", "127.0.0.1", 8081, "http://127.0.0.1:8081")
	assert.NotEqual(t, s.ID, other.ID)
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.key")

	key, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Len(t, key, keySize)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	again, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestLoadOrCreateKey_TooShort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.key")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))

	_, err := LoadOrCreateKey(path)
	assert.Error(t, err)
}

func TestIssueAndVerify(t *testing.T) {
	m := newTestManager(t, 0)
	s := NewSession("/srv/app", "127.0.0.1", 8082, "http://127.0.0.1:8082")

	token, err := m.Issue(s)
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, s.ID, claims.SessionID)
	assert.Equal(t, s.ID, claims.Subject)
	assert.Equal(t, "/srv/app", claims.Root)
	assert.Equal(t, 8082, claims.Port)
	assert.WithinDuration(t, s.Started.Add(DefaultTTL), claims.ExpiresAt.Time, time.Second)
}

func TestVerify_WrongKey(t *testing.T) {
	s := NewSession("/srv/app", "127.0.0.1", 8080, "http://127.0.0.1:8080")
	token, err := newTestManager(t, 0).Issue(s)
	require.NoError(t, err)

	_, err = newTestManager(t, 0).Verify(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestVerify_Expired(t *testing.T) {
	m := newTestManager(t, time.Minute)
	s := NewSession("/srv/app", "127.0.0.1", 8080, "http://127.0.0.1:8080")
	s.Started = time.Now().Add(-time.Hour)

	token, err := m.Issue(s)
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	m := newTestManager(t, 0)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, LaunchClaims{SessionID: "x"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(signed)
	assert.Error(t, err)
}

func TestManagerEnv(t *testing.T) {
	m := newTestManager(t, 0)
	s := NewSession("/srv/app", "127.0.0.1", 8083, "http://127.0.0.1:8083")

	env, err := m.Env(s)
	require.NoError(t, err)

	vars := envMap(env)
	assert.Equal(t, s.ID, vars[EnvSessionID])
	assert.Equal(t, "http://127.0.0.1:8083", vars[EnvBaseURL])
	assert.Equal(t, "8083", vars[EnvPort])
	assert.Equal(t, m.KeyPath(), vars[EnvKeyFile])

	claims, err := m.Verify(vars[EnvToken])
	require.NoError(t, err)
	assert.Equal(t, s.ID, claims.SessionID)
}

func TestSessionEnv_NoToken(t *testing.T) {
	s := NewSession("/srv/app", "127.0.0.1", 8080, "http://127.0.0.1:8080")
	vars := envMap(s.Env())
	assert.NotContains(t, vars, EnvToken)
	assert.Equal(t, s.ID, vars[EnvSessionID])
}
