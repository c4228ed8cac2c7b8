package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fivetwenty-io/fmdata/internal/auth"
	"github.com/fivetwenty-io/fmdata/internal/constants"
	fmhttp "github.com/fivetwenty-io/fmdata/internal/http"
	"github.com/fivetwenty-io/fmdata/internal/metrics"
	"github.com/fivetwenty-io/fmdata/pkg/fmdata"
)

// Client implements the fmdata.Client interface for one named connection.
type Client struct {
	name         string
	layoutPrefix string
	httpClient   *fmhttp.Client
	sessions     *auth.SessionManager
}

var _ fmdata.Client = (*Client)(nil)

// DatabaseURL builds {protocol}://{host}/fmi/data/{version}/databases/{database}.
func DatabaseURL(config *fmdata.Config) string {
	protocol := config.Protocol
	if protocol == "" {
		protocol = constants.DefaultProtocol
	}

	version := config.Version
	if version == "" {
		version = constants.DefaultVersion
	}

	host := strings.TrimRight(config.Host, "/")

	return fmt.Sprintf("%s://%s/fmi/data/%s/databases/%s", protocol, host, version, url.PathEscape(config.Database))
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(name string, config *fmdata.Config, collection *metrics.Collection) []fmhttp.Option {
	httpOpts := []fmhttp.Option{
		fmhttp.WithConnectionName(name),
		fmhttp.WithMetrics(collection),
		fmhttp.WithInterceptors(config.Interceptors),
	}

	if config.Logger != nil {
		httpOpts = append(httpOpts, fmhttp.WithLogger(config.Logger))
	}

	if config.Debug {
		httpOpts = append(httpOpts, fmhttp.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, fmhttp.WithUserAgent(config.UserAgent))
	}

	if config.SkipTLSVerify {
		httpOpts = append(httpOpts, fmhttp.WithHTTPClient(&http.Client{
			Timeout: constants.DefaultHTTPTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- gated by fmclient on FMDATA_DEV_MODE
			},
		}))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, fmhttp.WithTimeout(config.HTTPTimeout))
	}

	if config.RetryMax != nil || config.RetryWaitMin > 0 || config.RetryWaitMax > 0 {
		retryMax := constants.DefaultRetryMax
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryMax != nil && *config.RetryMax >= 0 {
			retryMax = *config.RetryMax
		}

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, fmhttp.WithRetryConfig(retryMax, retryWaitMin, retryWaitMax))
	}

	return httpOpts
}

// New creates a connection. No request is sent until the first call.
func New(ctx context.Context, config *fmdata.Config) (*Client, error) {
	if config == nil {
		return nil, fmdata.ErrConfigRequired
	}

	if config.Host == "" {
		return nil, fmdata.ErrHostRequired
	}

	if config.Database == "" {
		return nil, fmdata.ErrDatabaseRequired
	}

	name := config.Name
	if name == "" {
		name = constants.DefaultConnectionName
	}

	collection := metrics.New(config.MetricsRegisterer)
	httpClient := fmhttp.NewClient(DatabaseURL(config), nil, createHTTPClientOptions(name, config, collection)...)

	logger := config.Logger
	if logger == nil {
		logger = fmdata.NopLogger{}
	}

	sessions := auth.NewSessionManager(httpClient, auth.SessionConfig{
		Connection: name,
		Username:   config.Username,
		Password:   config.Password,
		Cache:      config.SessionCachingEnabled(),
		Store:      config.SessionStore,
		TTL:        config.SessionTTL,
		Logger:     logger,
		Metrics:    collection,
	})
	httpClient.SetTokenManager(sessions)

	return &Client{
		name:         name,
		layoutPrefix: config.LayoutPrefix,
		httpClient:   httpClient,
		sessions:     sessions,
	}, nil
}

// Name implements fmdata.Client.
func (c *Client) Name() string {
	return c.name
}

// Layout implements fmdata.Client.
func (c *Client) Layout(layout string) *fmdata.Query {
	return fmdata.NewQuery(c, layout)
}

// Login implements fmdata.SessionClient.
func (c *Client) Login(ctx context.Context) (string, error) {
	return c.sessions.GetToken(ctx)
}

// Disconnect implements fmdata.SessionClient.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.sessions.Logout(ctx)
}

// SessionCached implements fmdata.SessionClient.
func (c *Client) SessionCached() bool {
	return c.sessions.Cached()
}

// HasSession reports whether a session token is currently held.
func (c *Client) HasSession(ctx context.Context) bool {
	return c.sessions.HasSession(ctx)
}

// UseToken installs a session token obtained elsewhere.
func (c *Client) UseToken(token string, expiresAt time.Time) {
	c.sessions.SetToken(token, expiresAt)
}

// SetGlobalFields implements fmdata.Client.
func (c *Client) SetGlobalFields(ctx context.Context, fields map[string]any) error {
	_, err := c.httpClient.Do(ctx, &fmhttp.Request{
		Method:  http.MethodPatch,
		Path:    "/globals/",
		Body:    fmdata.GlobalFieldsBody(fields),
		Command: "globals",
	})
	if err != nil {
		return fmt.Errorf("setting global fields: %w", err)
	}

	return nil
}

func (c *Client) layoutName(q *fmdata.Query) string {
	return c.layoutPrefix + q.LayoutName()
}

func (c *Client) layoutPath(q *fmdata.Query) string {
	return "/layouts/" + url.PathEscape(c.layoutName(q))
}

func (c *Client) recordPath(q *fmdata.Query) string {
	return c.layoutPath(q) + "/records/" + url.PathEscape(q.RecordID())
}
