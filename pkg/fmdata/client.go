package fmdata

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Executor performs compiled queries against a Data API connection.
type Executor interface {
	PerformFind(ctx context.Context, q *Query) (*RecordsResponse, error)
	GetRecord(ctx context.Context, q *Query) (*RecordsResponse, error)
	CreateRecord(ctx context.Context, q *Query) (*WriteResponse, error)
	EditRecord(ctx context.Context, q *Query) (*WriteResponse, error)
	DeleteRecord(ctx context.Context, q *Query) error
	DuplicateRecord(ctx context.Context, q *Query) (*WriteResponse, error)
	UploadContainer(ctx context.Context, q *Query, upload *ContainerUpload) (*WriteResponse, error)
	ExecuteScript(ctx context.Context, q *Query) (*ScriptResponse, error)
}

// SessionClient manages the Data API session of a connection.
type SessionClient interface {
	// Login returns a valid session token, reusing a cached one when possible.
	Login(ctx context.Context) (string, error)
	// Disconnect ends the session. It is a no-op when no session is held.
	Disconnect(ctx context.Context) error
	// SessionCached reports whether tokens outlive a single request.
	SessionCached() bool
}

// Client is a named Data API connection.
type Client interface {
	Executor
	SessionClient

	// Name returns the connection name.
	Name() string
	// Layout starts a query against layout.
	Layout(layout string) *Query
	// SetGlobalFields sets global field values for the session.
	SetGlobalFields(ctx context.Context, fields map[string]any) error
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config describes one named Data API connection.
//
// # Session caching
//
// When CacheSessionToken is true (the default applied by fmclient.New) the
// session token is kept in SessionStore under "filemaker-session-<Name>" for
// SessionTTL and shared by every client of the same connection. When false
// the token lives only as long as the client and is discarded by Disconnect.
type Config struct {
	Name     string `json:"name"     yaml:"name"`
	Host     string `json:"host"     yaml:"host"`
	Database string `json:"database" yaml:"database"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"-"        yaml:"-"`

	// Protocol defaults to https. A scheme in Host takes precedence.
	Protocol string `json:"protocol,omitempty" yaml:"protocol,omitempty"`

	// Version is the Data API version path segment, vLatest by default.
	Version      string `json:"version,omitempty"       yaml:"version,omitempty"`
	LayoutPrefix string `json:"layout_prefix,omitempty" yaml:"layout_prefix,omitempty"`

	// HTTP behaviour. RetryMax nil means one retry; 0 disables retries.
	HTTPTimeout  time.Duration `json:"-" yaml:"-"`
	RetryMax     *int          `json:"-" yaml:"-"`
	RetryWaitMin time.Duration `json:"-" yaml:"-"`
	RetryWaitMax time.Duration `json:"-" yaml:"-"`
	UserAgent    string        `json:"-" yaml:"-"`
	Debug        bool          `json:"-" yaml:"-"`

	// SkipTLSVerify is honoured only when FMDATA_DEV_MODE is set.
	SkipTLSVerify bool `json:"skip_tls_verify,omitempty" yaml:"skip_tls_verify,omitempty"`

	// Session handling
	CacheSessionToken *bool         `json:"cache_session_token,omitempty" yaml:"cache_session_token,omitempty"`
	SessionTTL        time.Duration `json:"-"                             yaml:"-"`
	SessionStore      SessionStore  `json:"-"                             yaml:"-"`

	// Observability
	Logger            Logger                `json:"-" yaml:"-"`
	MetricsRegisterer prometheus.Registerer `json:"-" yaml:"-"`
	Interceptors      *InterceptorChain     `json:"-" yaml:"-"`
}

// SessionCachingEnabled reports whether the token is shared through the session store.
func (c *Config) SessionCachingEnabled() bool {
	return c.CacheSessionToken == nil || *c.CacheSessionToken
}
