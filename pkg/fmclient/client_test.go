package fmclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fivetwenty-io/fmdata/pkg/fmclient"
	"github.com/fivetwenty-io/fmdata/pkg/fmdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("creates client with config", func(t *testing.T) {
		t.Parallel()

		client, err := fmclient.New(context.Background(), &fmdata.Config{
			Name:     "new-basic",
			Host:     "fms.example.com",
			Database: "CRM",
		})
		require.NoError(t, err)
		assert.Equal(t, "new-basic", client.Name())
		assert.True(t, client.SessionCached())
	})

	t.Run("requires config", func(t *testing.T) {
		t.Parallel()

		_, err := fmclient.New(context.Background(), nil)
		require.ErrorIs(t, err, fmdata.ErrConfigRequired)
	})

	t.Run("requires host", func(t *testing.T) {
		t.Parallel()

		_, err := fmclient.New(context.Background(), &fmdata.Config{Database: "CRM"})
		require.ErrorIs(t, err, fmdata.ErrHostRequired)
	})

	t.Run("requires database", func(t *testing.T) {
		t.Parallel()

		_, err := fmclient.New(context.Background(), &fmdata.Config{Host: "fms.example.com"})
		require.ErrorIs(t, err, fmdata.ErrDatabaseRequired)
	})

	t.Run("honours disabled session caching", func(t *testing.T) {
		t.Parallel()

		disabled := false

		client, err := fmclient.New(context.Background(), &fmdata.Config{
			Host:              "fms.example.com",
			Database:          "CRM",
			CacheSessionToken: &disabled,
		})
		require.NoError(t, err)
		assert.False(t, client.SessionCached())
	})
}

func TestNewRejectsSkipTLSOutsideDevMode(t *testing.T) {
	t.Setenv(fmclient.DevModeEnv, "")

	_, err := fmclient.New(context.Background(), &fmdata.Config{
		Host:          "fms.example.com",
		Database:      "CRM",
		SkipTLSVerify: true,
	})
	require.ErrorIs(t, err, fmdata.ErrSkipTLSOnlyInDev)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		host         string
		protocol     string
		wantHost     string
		wantProtocol string
	}{
		{name: "bare host", host: "fms.example.com", wantHost: "fms.example.com"},
		{name: "https scheme", host: "https://fms.example.com/", wantHost: "fms.example.com", wantProtocol: "https"},
		{name: "http scheme overrides protocol", host: "http://fms.local//", protocol: "https", wantHost: "fms.local", wantProtocol: "http"},
		{name: "protocol kept without scheme", host: "fms.local:8080/", protocol: "http", wantHost: "fms.local:8080", wantProtocol: "http"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			config := &fmdata.Config{Host: tt.host, Protocol: tt.protocol}
			fmclient.Normalize(config)

			assert.Equal(t, tt.wantHost, config.Host)
			assert.Equal(t, tt.wantProtocol, config.Protocol)
			require.NotNil(t, config.CacheSessionToken)
			assert.True(t, *config.CacheSessionToken)
		})
	}
}

func TestClientIntegration(t *testing.T) {
	t.Parallel()

	var logins atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")

		switch {
		case request.Method == http.MethodPost && strings.HasSuffix(request.URL.Path, "/sessions"):
			logins.Add(1)

			_, _ = writer.Write([]byte(`{"response":{"token":"tok-1"},"messages":[{"code":"0","message":"OK"}]}`))
		case request.Method == http.MethodGet && strings.HasSuffix(request.URL.Path, "/layouts/Contacts/records"):
			assert.Equal(t, "Bearer tok-1", request.Header.Get("Authorization"))

			_, _ = writer.Write([]byte(`{"response":{"dataInfo":{"foundCount":1,"returnedCount":1},` +
				`"data":[{"recordId":"7","modId":"2","fieldData":{"name":"Ada"}}]},"messages":[{"code":"0","message":"OK"}]}`))
		default:
			writer.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := fmclient.New(context.Background(), &fmdata.Config{
		Name:         "integration-" + t.Name(),
		Host:         server.URL,
		Database:     "CRM",
		Username:     "api",
		Password:     "secret",
		SessionStore: fmdata.NewMemorySessionStore(),
	})
	require.NoError(t, err)

	records, err := client.Layout("Contacts").Get(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Ada", records[0].FieldData["name"])
	assert.Equal(t, int32(1), logins.Load())
}
