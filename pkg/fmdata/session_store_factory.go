package fmdata

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SessionStoreType represents the type of session store backend.
type SessionStoreType string

const (
	// SessionStoreMemory keeps tokens in process memory.
	SessionStoreMemory SessionStoreType = "memory"

	// SessionStoreNATS keeps tokens in a NATS JetStream key-value bucket.
	SessionStoreNATS SessionStoreType = "nats"

	// SessionStoreSQLite keeps tokens in a SQLite file.
	SessionStoreSQLite SessionStoreType = "sqlite"

	// SessionStoreNone disables token caching.
	SessionStoreNone SessionStoreType = "none"
)

// SessionStoreConfig selects and configures a session store backend.
type SessionStoreConfig struct {
	Type SessionStoreType

	NATS   *NATSSessionConfig
	SQLite *SQLiteSessionConfig

	// Shared uses the process-wide memory store instead of a private one.
	Shared bool
}

// DefaultSessionStoreConfig returns the process-wide memory store configuration.
func DefaultSessionStoreConfig() *SessionStoreConfig {
	return &SessionStoreConfig{Type: SessionStoreMemory, Shared: true}
}

// NewSessionStoreFromConfig creates a session store from configuration.
func NewSessionStoreFromConfig(config *SessionStoreConfig) (SessionStore, error) {
	if config == nil {
		config = DefaultSessionStoreConfig()
	}

	switch config.Type {
	case SessionStoreMemory, "":
		if config.Shared {
			return DefaultSessionStore(), nil
		}

		return NewMemorySessionStore(), nil

	case SessionStoreNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		return NewNATSSessionStore(config.NATS)

	case SessionStoreSQLite:
		if config.SQLite == nil {
			return nil, ErrSQLiteConfigRequired
		}

		return NewSQLiteSessionStore(config.SQLite)

	case SessionStoreNone:
		return NewNoOpSessionStore(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStoreType, config.Type)
	}
}

// SessionStoreBuilder helps build session store configurations.
type SessionStoreBuilder struct {
	config *SessionStoreConfig
}

// NewSessionStoreBuilder creates a new builder defaulting to a private memory store.
func NewSessionStoreBuilder() *SessionStoreBuilder {
	return &SessionStoreBuilder{config: &SessionStoreConfig{Type: SessionStoreMemory}}
}

// WithType sets the backend type.
func (b *SessionStoreBuilder) WithType(storeType SessionStoreType) *SessionStoreBuilder {
	b.config.Type = storeType

	return b
}

// WithShared selects the process-wide memory store.
func (b *SessionStoreBuilder) WithShared(shared bool) *SessionStoreBuilder {
	b.config.Shared = shared

	return b
}

// WithNATS sets the NATS configuration and selects the NATS backend.
func (b *SessionStoreBuilder) WithNATS(config *NATSSessionConfig) *SessionStoreBuilder {
	b.config.Type = SessionStoreNATS
	b.config.NATS = config

	return b
}

// WithSQLite sets the SQLite configuration and selects the SQLite backend.
func (b *SessionStoreBuilder) WithSQLite(path string) *SessionStoreBuilder {
	b.config.Type = SessionStoreSQLite
	b.config.SQLite = &SQLiteSessionConfig{Path: path}

	return b
}

// Build creates the store.
func (b *SessionStoreBuilder) Build() (SessionStore, error) {
	return NewSessionStoreFromConfig(b.config)
}

// SessionStoreChain reads through a list of stores (L1, L2, ...) and writes to all of them.
type SessionStoreChain struct {
	stores []SessionStore
}

// NewSessionStoreChain creates a chain. Earlier stores are consulted first.
func NewSessionStoreChain(stores ...SessionStore) *SessionStoreChain {
	return &SessionStoreChain{stores: stores}
}

// Get returns the first hit and back-fills the stores that missed.
func (c *SessionStoreChain) Get(ctx context.Context, key string) (string, error) {
	for i, store := range c.stores {
		token, err := store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				continue
			}

			return "", err
		}

		// Earlier layers are back-filled without expiry; a 952 clears them.
		for j := range i {
			_ = c.stores[j].Set(ctx, key, token, 0)
		}

		return token, nil
	}

	return "", ErrSessionNotFound
}

// Set writes to every store.
func (c *SessionStoreChain) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	for _, store := range c.stores {
		err := store.Set(ctx, key, token, ttl)
		if err != nil {
			return err
		}
	}

	return nil
}

// Delete removes key from every store.
func (c *SessionStoreChain) Delete(ctx context.Context, key string) error {
	var errs []error

	for _, store := range c.stores {
		err := store.Delete(ctx, key)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
