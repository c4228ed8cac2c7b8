package fmclient

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fivetwenty-io/fmdata/internal/client"
	"github.com/fivetwenty-io/fmdata/pkg/fmdata"
)

// DevModeEnv enables development-only settings such as SkipTLSVerify.
const DevModeEnv = "FMDATA_DEV_MODE"

// New creates a client for one named connection. The config is normalized in
// place: a scheme on Host overrides Protocol and trailing slashes are removed.
func New(ctx context.Context, config *fmdata.Config) (fmdata.Client, error) {
	if config == nil {
		return nil, fmdata.ErrConfigRequired
	}

	if config.Host == "" {
		return nil, fmdata.ErrHostRequired
	}

	Normalize(config)

	if config.SkipTLSVerify && !isDevelopmentEnvironment() {
		return nil, fmt.Errorf("%w (set %s=true)", fmdata.ErrSkipTLSOnlyInDev, DevModeEnv)
	}

	client, err := client.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return client, nil
}

// Normalize applies host and session defaults to config.
func Normalize(config *fmdata.Config) {
	host := strings.TrimSpace(config.Host)

	for _, scheme := range []string{"https", "http"} {
		if rest, ok := strings.CutPrefix(host, scheme+"://"); ok {
			config.Protocol = scheme
			host = rest

			break
		}
	}

	config.Host = strings.TrimRight(host, "/")

	if config.CacheSessionToken == nil {
		enabled := true
		config.CacheSessionToken = &enabled
	}
}

// NewWithPassword creates a client for host and database using username/password authentication.
func NewWithPassword(ctx context.Context, host, database, username, password string) (fmdata.Client, error) {
	return New(ctx, &fmdata.Config{
		Host:     host,
		Database: database,
		Username: username,
		Password: password,
	})
}

// isDevelopmentEnvironment checks if we're in a development environment.
func isDevelopmentEnvironment() bool {
	devMode := os.Getenv(DevModeEnv)

	return devMode == "true" || devMode == "1"
}
