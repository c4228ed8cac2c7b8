package constants

import "errors"

// Configuration errors.
var (
	ErrNoConnectionsConfigured = errors.New("no connections configured, use 'fmdata config set' to add one")
	ErrConnectionNotFound      = errors.New("connection not found in configuration")
	ErrUnknownConfigKey        = errors.New("unknown configuration key")
)

// Validation errors.
var (
	ErrInvalidKeyValue   = errors.New("expected KEY=VALUE")
	ErrInvalidSortOrder  = errors.New("sort order must be ascend or descend")
	ErrLayoutRequired    = errors.New("--layout flag is required")
	ErrNotRegularFile    = errors.New("path is not a regular file")
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrPasswordRequired  = errors.New("password is required")
)
