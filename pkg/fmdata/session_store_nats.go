package fmdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSessionConfig configures a JetStream key-value session store.
type NATSSessionConfig struct {
	// URL of the NATS server, nats.DefaultURL when empty.
	URL string
	// Bucket name, created on first use.
	Bucket string
	// MaxAge bounds how long the bucket keeps any entry.
	MaxAge time.Duration
	// Options are passed to nats.Connect.
	Options []nats.Option
}

// DefaultNATSBucket is used when NATSSessionConfig.Bucket is empty.
const DefaultNATSBucket = "fmdata-sessions"

// NATSSessionStore shares session tokens across processes through a
// JetStream key-value bucket.
type NATSSessionStore struct {
	conn *nats.Conn
	kv   nats.KeyValue
	now  func() time.Time
}

type natsSessionEntry struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// NewNATSSessionStore connects to NATS and opens (or creates) the bucket.
func NewNATSSessionStore(config *NATSSessionConfig) (*NATSSessionStore, error) {
	if config == nil {
		return nil, ErrNATSConfigRequired
	}

	url := config.URL
	if url == "" {
		url = nats.DefaultURL
	}

	bucket := config.Bucket
	if bucket == "" {
		bucket = DefaultNATSBucket
	}

	conn, err := nats.Connect(url, config.Options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("failed to open JetStream context: %w", err)
	}

	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucket,
			Description: "FileMaker Data API session tokens",
			TTL:         config.MaxAge,
		})
	}

	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("failed to open key-value bucket %q: %w", bucket, err)
	}

	store := NewNATSSessionStoreWithKV(kv)
	store.conn = conn

	return store, nil
}

// NewNATSSessionStoreWithKV wraps an existing bucket.
func NewNATSSessionStoreWithKV(kv nats.KeyValue) *NATSSessionStore {
	return &NATSSessionStore{kv: kv, now: time.Now}
}

// Get implements SessionStore.
func (s *NATSSessionStore) Get(ctx context.Context, key string) (string, error) {
	kve, err := s.kv.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return "", ErrSessionNotFound
		}

		return "", fmt.Errorf("failed to read session %q: %w", key, err)
	}

	var entry natsSessionEntry

	err = json.Unmarshal(kve.Value(), &entry)
	if err != nil {
		return "", fmt.Errorf("failed to decode session %q: %w", key, err)
	}

	if !entry.ExpiresAt.IsZero() && !s.now().Before(entry.ExpiresAt) {
		return "", ErrSessionNotFound
	}

	return entry.Token, nil
}

// Set implements SessionStore.
func (s *NATSSessionStore) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	entry := natsSessionEntry{Token: token}
	if ttl > 0 {
		entry.ExpiresAt = s.now().Add(ttl)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = s.kv.Put(key, data)
	if err != nil {
		return fmt.Errorf("failed to store session %q: %w", key, err)
	}

	return nil
}

// Delete implements SessionStore.
func (s *NATSSessionStore) Delete(ctx context.Context, key string) error {
	err := s.kv.Delete(key)
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete session %q: %w", key, err)
	}

	return nil
}

// Close drains the connection opened by NewNATSSessionStore.
func (s *NATSSessionStore) Close() error {
	if s.conn == nil {
		return nil
	}

	return s.conn.Drain()
}
