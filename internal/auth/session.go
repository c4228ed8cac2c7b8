package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/fivetwenty-io/fmdata/internal/constants"
	fmhttp "github.com/fivetwenty-io/fmdata/internal/http"
	"github.com/fivetwenty-io/fmdata/internal/metrics"
	"github.com/fivetwenty-io/fmdata/pkg/fmdata"
)

// Doer sends a Data API request.
type Doer interface {
	Do(ctx context.Context, req *fmhttp.Request) (*fmhttp.Response, error)
}

// SessionConfig configures a SessionManager.
type SessionConfig struct {
	Connection string
	Username   string
	Password   string
	// Cache shares the token through Store under the connection's key.
	Cache   bool
	Store   fmdata.SessionStore
	TTL     time.Duration
	Logger  fmdata.Logger
	Metrics *metrics.Collection
}

// SessionManager owns the session token of one connection. Tokens are
// fetched lazily and reused until the server rejects them or Logout is called.
type SessionManager struct {
	mu     sync.Mutex
	doer   Doer
	config SessionConfig
	key    string
	token  string
}

// NewSessionManager creates a manager that logs in through doer.
func NewSessionManager(doer Doer, config SessionConfig) *SessionManager {
	if config.Store == nil {
		config.Store = fmdata.DefaultSessionStore()
	}

	if config.TTL <= 0 {
		config.TTL = constants.DefaultSessionTTL
	}

	if config.Logger == nil {
		config.Logger = fmdata.NopLogger{}
	}

	return &SessionManager{
		doer:   doer,
		config: config,
		key:    fmdata.SessionKey(config.Connection),
	}
}

// Key returns the session store key.
func (m *SessionManager) Key() string {
	return m.key
}

// Cached reports whether tokens are shared through the store.
func (m *SessionManager) Cached() bool {
	return m.config.Cache
}

// GetToken returns the current token, logging in when there is none.
func (m *SessionManager) GetToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.Cache {
		token, err := m.config.Store.Get(ctx, m.key)
		if err == nil {
			m.token = token

			return token, nil
		}

		if !errors.Is(err, fmdata.ErrSessionNotFound) {
			m.config.Logger.Warn("FileMaker session store lookup failed", map[string]interface{}{
				"connection": m.config.Connection,
				"error":      err.Error(),
			})
		}
	} else if m.token != "" {
		return m.token, nil
	}

	return m.login(ctx)
}

// RefreshToken forgets the current token and logs in again.
func (m *SessionManager) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.forget(ctx)

	_, err := m.login(ctx)

	return err
}

// SetToken installs a token obtained elsewhere.
func (m *SessionManager) SetToken(token string, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = token

	if !m.config.Cache {
		return
	}

	ttl := m.config.TTL
	if !expiresAt.IsZero() {
		ttl = time.Until(expiresAt) - constants.SessionExpirationBuffer
		if ttl <= 0 {
			return
		}
	}

	err := m.config.Store.Set(context.Background(), m.key, token, ttl)
	if err != nil {
		m.config.Logger.Warn("failed to cache FileMaker session", map[string]interface{}{
			"connection": m.config.Connection,
			"error":      err.Error(),
		})
	}
}

// HasSession reports whether a token is held, locally or in the store.
func (m *SessionManager) HasSession(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.currentToken(ctx) != ""
}

// Logout ends the session on the server and discards the token. It does
// nothing when no token is held.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := m.currentToken(ctx)
	if token == "" {
		return nil
	}

	logoutCtx, cancel := context.WithTimeout(ctx, constants.ShortHTTPTimeout)
	defer cancel()

	_, err := m.doer.Do(logoutCtx, &fmhttp.Request{
		Method:  http.MethodDelete,
		Path:    "/sessions/" + url.PathEscape(token),
		LogPath: "/sessions/" + constants.MaskedSecret,
		Command: "logout",
		NoAuth:  true,
	})

	m.forget(ctx)

	if err != nil && !fmdata.IsInvalidSession(err) {
		return fmt.Errorf("failed to end session: %w", err)
	}

	m.config.Logger.Info("FileMaker session ended", map[string]interface{}{
		"connection": m.config.Connection,
	})

	return nil
}

func (m *SessionManager) currentToken(ctx context.Context) string {
	if m.token != "" || !m.config.Cache {
		return m.token
	}

	token, err := m.config.Store.Get(ctx, m.key)
	if err != nil {
		return ""
	}

	return token
}

func (m *SessionManager) forget(ctx context.Context) {
	m.token = ""

	if !m.config.Cache {
		return
	}

	err := m.config.Store.Delete(ctx, m.key)
	if err != nil {
		m.config.Logger.Warn("failed to clear cached FileMaker session", map[string]interface{}{
			"connection": m.config.Connection,
			"error":      err.Error(),
		})
	}
}

func (m *SessionManager) login(ctx context.Context) (string, error) {
	resp, err := m.doer.Do(ctx, &fmhttp.Request{
		Method:  http.MethodPost,
		Path:    "/sessions",
		Body:    map[string]interface{}{},
		Command: "login",
		NoAuth:  true,
		BasicAuth: &fmhttp.BasicAuth{
			Username: m.config.Username,
			Password: m.config.Password,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to log in: %w", err)
	}

	var session fmdata.SessionResponse

	err = resp.Decode(&session)
	if err != nil {
		return "", err
	}

	if session.Token == "" {
		return "", fmdata.ErrMissingToken
	}

	m.token = session.Token
	m.config.Metrics.IncLogin(m.config.Connection)
	m.config.Logger.Info("FileMaker session started", map[string]interface{}{
		"connection": m.config.Connection,
		"cached":     m.config.Cache,
	})

	if m.config.Cache {
		err = m.config.Store.Set(ctx, m.key, session.Token, m.config.TTL)
		if err != nil {
			m.config.Logger.Warn("failed to cache FileMaker session", map[string]interface{}{
				"connection": m.config.Connection,
				"error":      err.Error(),
			})
		}
	}

	return session.Token, nil
}
