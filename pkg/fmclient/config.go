package fmclient

import (
	"fmt"
	"strings"
	"time"

	"github.com/fivetwenty-io/fmdata/internal/constants"
	"github.com/fivetwenty-io/fmdata/pkg/fmdata"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. FMDATA_CONNECTIONS_MAIN_HOST.
const EnvPrefix = "FMDATA"

// Connection keys below connections.<name>.
const (
	keyHost              = "host"
	keyDatabase          = "database"
	keyUsername          = "username"
	keyPassword          = "password"
	keyProtocol          = "protocol"
	keyVersion           = "version"
	keyLayoutPrefix      = "layout_prefix"
	keyCacheSessionToken = "cache_session_token"
	keySessionTTL        = "session_ttl"
	keyRetryMax          = "retry_max"
	keyHTTPTimeout       = "http_timeout"
	keyDebug             = "debug"
	keySkipTLSVerify     = "skip_tls_verify"
	keySessionStore      = "session_store"
	keySessionStorePath  = "session_store_path"
	keyNATSURL           = "nats_url"
	keyNATSBucket        = "nats_bucket"
)

// ConnectionKeys lists the settings a connection accepts.
var ConnectionKeys = []string{
	keyHost, keyDatabase, keyUsername, keyPassword, keyProtocol, keyVersion,
	keyLayoutPrefix, keyCacheSessionToken, keySessionTTL, keyRetryMax,
	keyHTTPTimeout, keyDebug, keySkipTLSVerify, keySessionStore,
	keySessionStorePath, keyNATSURL, keyNATSBucket,
}

// BindEnv makes v read FMDATA_* environment variables for nested keys.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// ConnectionName resolves name, falling back to default_connection and then
// to the built-in default.
func ConnectionName(v *viper.Viper, name string) string {
	if name != "" {
		return name
	}

	if name = v.GetString("default_connection"); name != "" {
		return name
	}

	return constants.DefaultConnectionName
}

// LoadConfig reads the connection called name from connections.<name>.*.
// The session store named by session_store is opened here; callers owning
// a SQLite or NATS store should close it when done.
func LoadConfig(v *viper.Viper, name string) (*fmdata.Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	BindEnv(v)

	name = ConnectionName(v, name)
	prefix := "connections." + name + "."

	host := v.GetString(prefix + keyHost)
	if host == "" {
		if !v.IsSet("connections") {
			return nil, constants.ErrNoConnectionsConfigured
		}

		return nil, fmt.Errorf("%w: %s", constants.ErrConnectionNotFound, name)
	}

	config := &fmdata.Config{
		Name:          name,
		Host:          host,
		Database:      v.GetString(prefix + keyDatabase),
		Username:      v.GetString(prefix + keyUsername),
		Password:      v.GetString(prefix + keyPassword),
		Protocol:      v.GetString(prefix + keyProtocol),
		Version:       v.GetString(prefix + keyVersion),
		LayoutPrefix:  v.GetString(prefix + keyLayoutPrefix),
		HTTPTimeout:   v.GetDuration(prefix + keyHTTPTimeout),
		Debug:         v.GetBool(prefix + keyDebug),
		SkipTLSVerify: v.GetBool(prefix + keySkipTLSVerify),
	}

	if config.Database == "" {
		return nil, fmt.Errorf("connection %s: %w", name, fmdata.ErrDatabaseRequired)
	}

	cache := true
	if v.IsSet(prefix + keyCacheSessionToken) {
		cache = v.GetBool(prefix + keyCacheSessionToken)
	}

	config.CacheSessionToken = &cache

	if v.IsSet(prefix + keyRetryMax) {
		retryMax := v.GetInt(prefix + keyRetryMax)
		config.RetryMax = &retryMax
	}

	if ttl := v.GetDuration(prefix + keySessionTTL); ttl > 0 {
		config.SessionTTL = ttl
	}

	storeConfig, err := sessionStoreConfig(v, prefix)
	if err != nil {
		return nil, fmt.Errorf("connection %s: %w", name, err)
	}

	store, err := fmdata.NewSessionStoreFromConfig(storeConfig)
	if err != nil {
		return nil, fmt.Errorf("connection %s: opening session store: %w", name, err)
	}

	config.SessionStore = store

	return config, nil
}

func sessionStoreConfig(v *viper.Viper, prefix string) (*fmdata.SessionStoreConfig, error) {
	storeType := fmdata.SessionStoreType(strings.ToLower(v.GetString(prefix + keySessionStore)))

	switch storeType {
	case "", fmdata.SessionStoreMemory:
		return fmdata.DefaultSessionStoreConfig(), nil
	case fmdata.SessionStoreNone:
		return &fmdata.SessionStoreConfig{Type: fmdata.SessionStoreNone}, nil
	case fmdata.SessionStoreSQLite:
		path := v.GetString(prefix + keySessionStorePath)
		if path == "" {
			return nil, fmdata.ErrSQLiteConfigRequired
		}

		return &fmdata.SessionStoreConfig{
			Type:   fmdata.SessionStoreSQLite,
			SQLite: &fmdata.SQLiteSessionConfig{Path: path},
		}, nil
	case fmdata.SessionStoreNATS:
		return &fmdata.SessionStoreConfig{
			Type: fmdata.SessionStoreNATS,
			NATS: &fmdata.NATSSessionConfig{
				URL:    v.GetString(prefix + keyNATSURL),
				Bucket: v.GetString(prefix + keyNATSBucket),
				MaxAge: constants.DefaultSessionTTL + time.Minute,
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", fmdata.ErrUnsupportedStoreType, storeType)
	}
}
