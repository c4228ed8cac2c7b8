package fmdata

import (
	"errors"
	"fmt"

	"github.com/fivetwenty-io/fmdata/internal/constants"
)

// APIError represents a non-zero message returned by the Data API.
type APIError struct {
	Code    int    `json:"code"    yaml:"code"`
	Message string `json:"message" yaml:"message"`
	// Layout is the resolved layout name the failing call targeted, if any.
	Layout string `json:"layout,omitempty" yaml:"layout,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Layout != "" {
		return fmt.Sprintf("%s (code: %d, layout: %s)", e.Message, e.Code, e.Layout)
	}

	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// StatusError is returned when the server answered with an HTTP error status
// and a body that is not a Data API envelope.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d: %s", e.StatusCode, e.Body)
}

// Data API message codes surfaced to callers.
const (
	ErrorCodeRecordMissing  = constants.CodeRecordMissing
	ErrorCodeLayoutMissing  = constants.CodeLayoutMissing
	ErrorCodeNoRecordsMatch = constants.CodeNoRecordsMatch
	ErrorCodeInvalidSession = constants.CodeInvalidSession
)

// Static errors for err113 compliance.
var (
	ErrConfigRequired         = errors.New("config is required")
	ErrHostRequired           = errors.New("host is required")
	ErrDatabaseRequired       = errors.New("database is required")
	ErrNoExecutor             = errors.New("query is not bound to a connection")
	ErrLayoutRequired         = errors.New("layout is required")
	ErrRecordIDRequired       = errors.New("record ID is required")
	ErrScriptRequired         = errors.New("script name is required")
	ErrIllegalOperator        = errors.New("illegal operator")
	ErrIllegalOperatorValue   = errors.New("illegal operator and value combination")
	ErrNoRecords              = errors.New("no records found")
	ErrSessionNotFound        = errors.New("session not found")
	ErrContainerNotSerialized = errors.New("container values are uploaded separately and cannot be serialized as field data")
	ErrMissingToken           = errors.New("login response did not contain a token")
	ErrUnsupportedStoreType   = errors.New("unsupported session store type")
	ErrNATSConfigRequired     = errors.New("NATS configuration required for NATS session store")
	ErrSQLiteConfigRequired   = errors.New("SQLite configuration required for SQLite session store")
	ErrInvalidSortOrder       = errors.New("sort order must be ascend or descend")
	ErrSkipTLSOnlyInDev       = errors.New("skipping TLS verification is only allowed in development mode")
)

// Code returns the Data API code carried by err, or 0 when err is not an APIError.
func Code(err error) int {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	return constants.CodeOK
}

// IsRecordMissing reports whether the target record does not exist (101).
func IsRecordMissing(err error) bool {
	return Code(err) == ErrorCodeRecordMissing
}

// IsLayoutMissing reports whether the layout does not exist (105).
func IsLayoutMissing(err error) bool {
	return Code(err) == ErrorCodeLayoutMissing
}

// IsNoRecordsMatch reports whether a find matched no records (401).
func IsNoRecordsMatch(err error) bool {
	return Code(err) == ErrorCodeNoRecordsMatch
}

// IsInvalidSession reports whether the session token was rejected (952).
func IsInvalidSession(err error) bool {
	return Code(err) == ErrorCodeInvalidSession
}

// FirstError returns the first non-zero message of an envelope as an APIError, or nil.
func FirstError(messages []Message, layout string) *APIError {
	for _, message := range messages {
		if message.Code != constants.CodeOK {
			return &APIError{Code: message.Code, Message: message.Message, Layout: layout}
		}
	}

	return nil
}
