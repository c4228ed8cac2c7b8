package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// CLI file locations below the user's home directory.
const (
	ConfigDirName    = ".fmdata"
	ConfigFileName   = "config.yml"
	SessionsFileName = "sessions.db"
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations such as logout.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits.
const (
	// DefaultRetryMax is the default number of retries for transient transport failures.
	DefaultRetryMax = 1

	// DefaultRetryWaitMin is the minimum wait between retries.
	DefaultRetryWaitMin = 250 * time.Millisecond

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 5 * time.Second
)

// Data API connection defaults.
const (
	// DefaultProtocol is used when the connection does not name one.
	DefaultProtocol = "https"

	// DefaultVersion is the Data API version segment.
	DefaultVersion = "vLatest"

	// DefaultConnectionName names the connection when none is given.
	DefaultConnectionName = "filemaker"

	// SessionCacheKeyPrefix prefixes the per-connection session cache key.
	SessionCacheKeyPrefix = "filemaker-session-"
)

// Session lifetime.
const (
	// DefaultSessionTTL caches a token for 14.75 minutes. Data API sessions
	// expire after 15 minutes of inactivity.
	DefaultSessionTTL = 885 * time.Second

	// SessionExpirationBuffer is subtracted from a cached token's lifetime before it is considered stale.
	SessionExpirationBuffer = 5 * time.Second
)

// Query sentinels.
const (
	// NoLimit is the record cap used to mimic "no limit". The Data API rejects
	// anything larger.
	NoLimit = 1000000000000000000

	// ImpossibleOffset is far beyond any realistic found set and forces an empty result.
	ImpossibleOffset = 1000000000000000000
)

// Data API message codes.
const (
	// CodeOK means success.
	CodeOK = 0

	// CodeRecordMissing is returned when the target record does not exist.
	CodeRecordMissing = 101

	// CodeLayoutMissing is returned when the layout does not exist.
	CodeLayoutMissing = 105

	// CodeNoRecordsMatch is returned by a find that matched nothing.
	CodeNoRecordsMatch = 401

	// CodeInvalidSession is returned when the session token is invalid or expired.
	CodeInvalidSession = 952

	// CodeOffsetPastFoundSet is what the records route answers when _offset
	// starts beyond the last record.
	CodeOffsetPastFoundSet = CodeRecordMissing
)

// Wire format constants.
const (
	// FileMakerTimestampFormat is the timestamp layout the Data API expects.
	FileMakerTimestampFormat = "1/2/2006 3:04:05 PM"

	// ContainerUploadField is the multipart form field name for container uploads.
	ContainerUploadField = "upload"

	// OmitTrue is the literal the Data API expects for omit requests.
	OmitTrue = "true"
)

// Pagination and display limits.
const (
	// DefaultPerPage is the default page size for Paginate.
	DefaultPerPage = 15

	// StringTruncationLength is the default length for truncating strings.
	StringTruncationLength = 80

	// MaxLoggedPayload caps how much of a request payload is logged.
	MaxLoggedPayload = 2048
)

// Metrics.
const (
	// MetricsNamespace prefixes every collector.
	MetricsNamespace = "fmdata"
)

// UI and display constants.
const (
	// CheckMarkSymbol is used to indicate current/active items.
	CheckMarkSymbol = "✓"

	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"
)

// Format constants.
const (
	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"

	// FormatTable for table output format.
	FormatTable = "table"
)

// Validation and limits.
const (
	// MinimumArgumentCount is the minimum number of command line arguments.
	MinimumArgumentCount = 2

	// KeyValueSplitParts is the number of parts when splitting key=value strings.
	KeyValueSplitParts = 2
)
