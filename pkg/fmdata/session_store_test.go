package fmdata_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fivetwenty-io/fmdata/pkg/fmdata"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKeyValue is an in-memory stand-in for a JetStream bucket. Only the
// methods the session store uses are implemented.
type fakeKeyValue struct {
	nats.KeyValue

	mu      sync.Mutex
	entries map[string][]byte
}

type fakeEntry struct {
	nats.KeyValueEntry

	value []byte
}

func (e fakeEntry) Value() []byte { return e.value }

func newFakeKeyValue() *fakeKeyValue {
	return &fakeKeyValue{entries: make(map[string][]byte)}
}

func (f *fakeKeyValue) Get(key string) (nats.KeyValueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	value, ok := f.entries[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}

	return fakeEntry{value: value}, nil
}

func (f *fakeKeyValue) Put(key string, value []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries[key] = value

	return uint64(len(f.entries)), nil
}

func (f *fakeKeyValue) Delete(key string, _ ...nats.DeleteOpt) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.entries[key]; !ok {
		return nats.ErrKeyNotFound
	}

	delete(f.entries, key)

	return nil
}

// storeContract exercises the behaviour every SessionStore backend shares.
func storeContract(t *testing.T, store fmdata.SessionStore) {
	t.Helper()

	ctx := context.Background()
	key := fmdata.SessionKey("crm")

	_, err := store.Get(ctx, key)
	require.ErrorIs(t, err, fmdata.ErrSessionNotFound)

	require.NoError(t, store.Set(ctx, key, "tok-1", time.Minute))

	token, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	require.NoError(t, store.Set(ctx, key, "tok-2", 0))

	token, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)

	require.NoError(t, store.Set(ctx, "short", "tok-3", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err = store.Get(ctx, "short")
	require.ErrorIs(t, err, fmdata.ErrSessionNotFound)

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key))

	_, err = store.Get(ctx, key)
	require.ErrorIs(t, err, fmdata.ErrSessionNotFound)
}

func TestSessionKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "filemaker-session-crm", fmdata.SessionKey("crm"))
}

func TestMemorySessionStore(t *testing.T) {
	t.Parallel()

	storeContract(t, fmdata.NewMemorySessionStore())
}

func TestSQLiteSessionStore(t *testing.T) {
	t.Parallel()

	store, err := fmdata.NewSQLiteSessionStore(&fmdata.SQLiteSessionConfig{
		Path: filepath.Join(t.TempDir(), "sessions.db"),
	})
	require.NoError(t, err)

	defer func() { _ = store.Close() }()

	storeContract(t, store)
}

func TestSQLiteSessionStorePersists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	first, err := fmdata.NewSQLiteSessionStore(&fmdata.SQLiteSessionConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "k", "tok", time.Minute))
	require.NoError(t, first.Close())

	second, err := fmdata.NewSQLiteSessionStore(&fmdata.SQLiteSessionConfig{Path: path})
	require.NoError(t, err)

	defer func() { _ = second.Close() }()

	token, err := second.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestSQLiteSessionStoreRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := fmdata.NewSQLiteSessionStore(&fmdata.SQLiteSessionConfig{})
	require.ErrorIs(t, err, fmdata.ErrSQLiteConfigRequired)
}

func TestNATSSessionStore(t *testing.T) {
	t.Parallel()

	store := fmdata.NewNATSSessionStoreWithKV(newFakeKeyValue())

	storeContract(t, store)
	require.NoError(t, store.Close())
}

func TestNoOpSessionStore(t *testing.T) {
	t.Parallel()

	store := fmdata.NewNoOpSessionStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "tok", time.Minute))

	_, err := store.Get(ctx, "k")
	require.ErrorIs(t, err, fmdata.ErrSessionNotFound)
	require.NoError(t, store.Delete(ctx, "k"))
}

func TestDefaultSessionStoreIsShared(t *testing.T) {
	t.Parallel()

	assert.Same(t, fmdata.DefaultSessionStore(), fmdata.DefaultSessionStore())

	store, err := fmdata.NewSessionStoreFromConfig(nil)
	require.NoError(t, err)
	assert.Same(t, fmdata.DefaultSessionStore(), store)
}

//nolint:funlen
func TestNewSessionStoreFromConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *fmdata.SessionStoreConfig
		wantErr error
	}{
		{name: "private memory", config: &fmdata.SessionStoreConfig{Type: fmdata.SessionStoreMemory}},
		{name: "none", config: &fmdata.SessionStoreConfig{Type: fmdata.SessionStoreNone}},
		{name: "nats without config", config: &fmdata.SessionStoreConfig{Type: fmdata.SessionStoreNATS}, wantErr: fmdata.ErrNATSConfigRequired},
		{name: "sqlite without config", config: &fmdata.SessionStoreConfig{Type: fmdata.SessionStoreSQLite}, wantErr: fmdata.ErrSQLiteConfigRequired},
		{name: "unknown", config: &fmdata.SessionStoreConfig{Type: "redis"}, wantErr: fmdata.ErrUnsupportedStoreType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, err := fmdata.NewSessionStoreFromConfig(tt.config)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, store)
		})
	}

	t.Run("private memory stores are not shared", func(t *testing.T) {
		t.Parallel()

		store, err := fmdata.NewSessionStoreFromConfig(&fmdata.SessionStoreConfig{Type: fmdata.SessionStoreMemory})
		require.NoError(t, err)
		assert.NotSame(t, fmdata.DefaultSessionStore(), store)
	})
}

func TestSessionStoreBuilder(t *testing.T) {
	t.Parallel()

	store, err := fmdata.NewSessionStoreBuilder().
		WithSQLite(filepath.Join(t.TempDir(), "sessions.db")).
		Build()
	require.NoError(t, err)

	sqliteStore, ok := store.(*fmdata.SQLiteSessionStore)
	require.True(t, ok)
	require.NoError(t, sqliteStore.Close())

	store, err = fmdata.NewSessionStoreBuilder().WithType(fmdata.SessionStoreMemory).WithShared(true).Build()
	require.NoError(t, err)
	assert.Same(t, fmdata.DefaultSessionStore(), store)
}

func TestSessionStoreChain(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l1 := fmdata.NewMemorySessionStore()
	l2 := fmdata.NewMemorySessionStore()
	chain := fmdata.NewSessionStoreChain(l1, l2)

	storeContract(t, chain)

	require.NoError(t, l2.Set(ctx, "k", "from-l2", time.Minute))

	token, err := chain.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "from-l2", token)

	token, err = l1.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "from-l2", token)

	require.NoError(t, chain.Delete(ctx, "k"))
	assert.Equal(t, 0, l1.Len())
}
