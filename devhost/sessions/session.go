package sessions

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Environment variables handed to the served process.
const (
	EnvSessionID = "XCM_DEV_SESSION_ID"
	EnvBaseURL   = "XCM_DEV_BASE_URL"
	EnvPort      = "XCM_DEV_PORT"
	EnvToken     = "XCM_DEV_TOKEN"
	EnvKeyFile   = "XCM_DEV_KEY_FILE"
)

const (
	keySize    = 32
	issuer     = "xcm-dev"
	DefaultTTL = 24 * time.Hour
)

// Session identifies a single launch.
type Session struct {
	ID      string
	Root    string
	Host    string
	Port    int
	BaseURL string
	Started time.Time
}

// NewSession creates a session with a fresh id.
func NewSession(root, host string, port int, baseURL string) Session {
	return Session{
		ID:      uuid.New().String(),
		Root:    root,
		Host:    host,
		Port:    port,
		BaseURL: baseURL,
		Started: time.Now(),
	}
}

// Env returns the variables describing the session, without a token.
func (s Session) Env() []string {
	return []string{
		EnvSessionID + "=" + s.ID,
		EnvBaseURL + "=" + s.BaseURL,
		EnvPort + "=" + strconv.Itoa(s.Port),
	}
}

// LaunchClaims are the claims carried by a launch token.
type LaunchClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	Root      string `json:"root"`
	Port      int    `json:"port"`
}

// LoadOrCreateKey reads the signing key at path, generating and saving a new random key
// if the file does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) < keySize {
			return nil, fmt.Errorf("signing key %s is too short (%d bytes)", path, len(key))
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	key = make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write signing key: %w", err)
	}
	return key, nil
}

// Manager issues and verifies launch tokens.
type Manager struct {
	key     []byte
	keyPath string
	ttl     time.Duration
}

// NewManager loads (or creates) the key at keyPath. A zero ttl uses DefaultTTL.
func NewManager(keyPath string, ttl time.Duration) (*Manager, error) {
	key, err := LoadOrCreateKey(keyPath)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{key: key, keyPath: keyPath, ttl: ttl}, nil
}

// KeyPath returns the location of the signing key.
func (m *Manager) KeyPath() string {
	return m.keyPath
}

// Issue signs a token for the session.
func (m *Manager) Issue(s Session) (string, error) {
	issued := s.Started
	if issued.IsZero() {
		issued = time.Now()
	}
	claims := LaunchClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   s.ID,
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(m.ttl)),
		},
		SessionID: s.ID,
		Root:      s.Root,
		Port:      s.Port,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.key)
}

// Verify parses a token and checks its signature, issuer and expiry.
func (m *Manager) Verify(tokenString string) (*LaunchClaims, error) {
	claims := &LaunchClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return m.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("invalid launch token: %w", err)
	}
	return claims, nil
}

// Env returns the session variables plus a signed token and the key location.
func (m *Manager) Env(s Session) ([]string, error) {
	token, err := m.Issue(s)
	if err != nil {
		return nil, err
	}
	return append(s.Env(), EnvToken+"="+token, EnvKeyFile+"="+m.keyPath), nil
}
