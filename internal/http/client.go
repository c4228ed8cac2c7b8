package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fivetwenty-io/fmdata/internal/constants"
	"github.com/fivetwenty-io/fmdata/internal/metrics"
	"github.com/fivetwenty-io/fmdata/pkg/fmdata"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// TokenManager supplies session tokens to authenticated requests.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
	// RefreshToken discards the current token and fetches a new one.
	RefreshToken(ctx context.Context) error
	SetToken(token string, expiresAt time.Time)
}

// BasicAuth carries login credentials.
type BasicAuth struct {
	Username string
	Password string
}

// MultipartFile is a single file sent as multipart/form-data.
type MultipartFile struct {
	Field    string
	Filename string
	Content  []byte
}

// Request describes one Data API call relative to the database URL.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Headers map[string]string

	// Command labels the call in traces and metrics.
	Command string
	// Layout annotates API errors.
	Layout string
	// NoAuth skips the bearer token.
	NoAuth    bool
	BasicAuth *BasicAuth
	Multipart *MultipartFile
	// LogPath replaces Path in traces when the path carries a secret.
	LogPath string
}

// Response is a completed call. Data is the envelope's "response" member.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Data       json.RawMessage
	Messages   []fmdata.Message
}

// Decode unmarshals the envelope's response member into v.
func (r *Response) Decode(v interface{}) error {
	if len(r.Data) == 0 {
		return nil
	}

	err := json.Unmarshal(r.Data, v)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// Client sends requests to one database of a Data API host.
type Client struct {
	baseURL      string
	connection   string
	httpClient   *retryablehttp.Client
	tokenManager TokenManager
	logger       fmdata.Logger
	debug        bool
	userAgent    string
	metrics      *metrics.Collection
	interceptors *fmdata.InterceptorChain
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the trace logger.
func WithLogger(logger fmdata.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug includes redacted payloads in traces.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig sets the transient failure retry policy.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = retryMax
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client, for custom TLS settings.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient = client
	}
}

// WithConnectionName labels traces and metrics.
func WithConnectionName(name string) Option {
	return func(c *Client) {
		c.connection = name
	}
}

// WithMetrics records Prometheus metrics.
func WithMetrics(collection *metrics.Collection) Option {
	return func(c *Client) {
		c.metrics = collection
	}
}

// WithInterceptors runs the chain around every request.
func WithInterceptors(chain *fmdata.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// NewClient creates a client for baseURL, the database URL. tokenManager may
// be nil when every request is sent with NoAuth.
func NewClient(baseURL string, tokenManager TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	retryClient.CheckRetry = checkRetry
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil

	client := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   retryClient,
		tokenManager: tokenManager,
		logger:       fmdata.NopLogger{},
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.logger == nil {
		client.logger = fmdata.NopLogger{}
	}

	retryClient.Logger = &leveledLogger{logger: client.logger}

	return client
}

// SetTokenManager binds the token source. The session manager needs the
// client to log in, so it is bound after construction.
func (c *Client) SetTokenManager(tokenManager TokenManager) {
	c.tokenManager = tokenManager
}

// BaseURL returns the database URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// checkRetry retries transport failures and gateway or throttling statuses.
// Data API errors arrive as 4xx/500 with an envelope and are never retried.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	default:
		return false, nil
	}
}

// Do sends req. An invalid session (952) is recovered once: the token is
// refreshed and the identical request resent. A second 952 is returned.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.send(ctx, req)
	if err == nil || req.NoAuth || c.tokenManager == nil || !fmdata.IsInvalidSession(err) {
		return resp, err
	}

	c.metrics.IncReauth(c.connection)
	c.logger.Info("FileMaker session invalid, logging in again", map[string]interface{}{
		"connection": c.connection,
		"command":    req.Command,
	})

	refreshErr := c.tokenManager.RefreshToken(ctx)
	if refreshErr != nil {
		return resp, fmt.Errorf("failed to refresh session: %w", refreshErr)
	}

	return c.send(ctx, req)
}

func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	requestID := uuid.Must(uuid.NewV7()).String()
	start := time.Now()

	fullURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Accept", "application/json")

	if contentType != "" {
		headers.Set("Content-Type", contentType)
	}

	if c.userAgent != "" {
		headers.Set("User-Agent", c.userAgent)
	}

	for key, value := range req.Headers {
		headers.Set(key, value)
	}

	intercepted := &fmdata.Request{
		Method:  req.Method,
		URL:     c.baseURL + c.logPath(req),
		Headers: headers,
		Body:    body,
		Metadata: map[string]interface{}{
			"request_id": requestID,
			"command":    req.Command,
			"connection": c.connection,
		},
	}

	err = c.interceptors.ExecuteRequestInterceptors(ctx, intercepted)
	if err != nil {
		return nil, err
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, intercepted.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header = intercepted.Headers

	switch {
	case req.BasicAuth != nil:
		httpReq.SetBasicAuth(req.BasicAuth.Username, req.BasicAuth.Password)
	case !req.NoAuth && c.tokenManager != nil:
		token, tokenErr := c.tokenManager.GetToken(ctx)
		if tokenErr != nil {
			return nil, fmt.Errorf("failed to get session token: %w", tokenErr)
		}

		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.trace(intercepted, req, 0, 0, start, err)

		return nil, fmt.Errorf("%s request failed: %w", req.Command, err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}

	resultErr := c.interpret(resp, req.Layout)
	apiCode := fmdata.Code(resultErr)

	c.metrics.ObserveRequest(c.connection, req.Command, apiCode, time.Since(start))
	c.trace(intercepted, req, resp.StatusCode, apiCode, start, resultErr)

	interceptErr := c.interceptors.ExecuteResponseInterceptors(ctx, intercepted, &fmdata.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
		APICode:    apiCode,
		Error:      resultErr,
	})
	if interceptErr != nil && resultErr == nil {
		resultErr = interceptErr
	}

	return resp, resultErr
}

// interpret decodes the envelope and returns the first non-zero message as
// an *fmdata.APIError. Bodies that are not an envelope fall back to the HTTP status.
func (c *Client) interpret(resp *Response, layout string) error {
	var envelope fmdata.Envelope

	err := json.Unmarshal(resp.Body, &envelope)
	if err != nil || envelope.Messages == nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &fmdata.StatusError{StatusCode: resp.StatusCode, Body: truncate(string(resp.Body))}
		}

		return nil
	}

	resp.Data = envelope.Response
	resp.Messages = envelope.Messages

	apiErr := fmdata.FirstError(envelope.Messages, layout)
	if apiErr != nil {
		return apiErr
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &fmdata.StatusError{StatusCode: resp.StatusCode, Body: truncate(string(resp.Body))}
	}

	return nil
}

func (c *Client) logPath(req *Request) string {
	if req.LogPath != "" {
		return req.LogPath
	}

	return req.Path
}

func (c *Client) trace(traced *fmdata.Request, req *Request, status, apiCode int, start time.Time, err error) {
	fields := map[string]interface{}{
		"request_id": traced.Metadata["request_id"],
		"connection": c.connection,
		"command":    req.Command,
		"method":     req.Method,
		"url":        traced.URL,
		"status":     status,
		"api_code":   apiCode,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}

	if c.debug {
		fields["payload"] = redactPayload(req, traced.Body)
	}

	if err != nil && !expected(err) {
		fields["error"] = err.Error()
		c.logger.Error("FileMaker request", fields)

		return
	}

	c.logger.Debug("FileMaker request", fields)
}

// expected reports errors that callers routinely treat as results.
func expected(err error) bool {
	return fmdata.IsNoRecordsMatch(err) || fmdata.IsRecordMissing(err) || fmdata.IsInvalidSession(err)
}

func encodeBody(req *Request) ([]byte, string, error) {
	if req.Multipart != nil {
		var buf bytes.Buffer

		writer := multipart.NewWriter(&buf)

		part, err := writer.CreateFormFile(req.Multipart.Field, req.Multipart.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create multipart part: %w", err)
		}

		_, err = part.Write(req.Multipart.Content)
		if err != nil {
			return nil, "", fmt.Errorf("failed to write multipart content: %w", err)
		}

		err = writer.Close()
		if err != nil {
			return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
		}

		return buf.Bytes(), writer.FormDataContentType(), nil
	}

	if req.Body == nil {
		return nil, "", nil
	}

	if raw, ok := req.Body.([]byte); ok {
		return raw, "application/json", nil
	}

	encoded, err := fmdata.EncodeJSON(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode request body: %w", err)
	}

	return encoded, "application/json", nil
}

var sensitiveKeys = []string{"password", "token"}

// redactPayload masks credentials and container bytes.
func redactPayload(req *Request, body []byte) string {
	if req.Multipart != nil {
		return fmt.Sprintf("%s: %s (%d bytes)", req.Multipart.Field, req.Multipart.Filename, len(req.Multipart.Content))
	}

	if len(body) == 0 {
		return ""
	}

	var decoded interface{}

	err := json.Unmarshal(body, &decoded)
	if err != nil {
		return constants.MaskedSecret
	}

	encoded, err := fmdata.EncodeJSON(mask(decoded))
	if err != nil {
		return constants.MaskedSecret
	}

	return truncateAt(string(encoded), constants.MaxLoggedPayload)
}

func mask(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		for key, nested := range typed {
			if isSensitive(key) {
				typed[key] = constants.MaskedSecret

				continue
			}

			typed[key] = mask(nested)
		}

		return typed
	case []interface{}:
		for i, nested := range typed {
			typed[i] = mask(nested)
		}

		return typed
	default:
		return value
	}
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}

	return false
}

func truncate(s string) string {
	return truncateAt(s, constants.StringTruncationLength)
}

func truncateAt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[:limit] + "..."
}

// leveledLogger adapts fmdata.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger fmdata.Logger
}

func (l *leveledLogger) fields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/constants.KeyValueSplitParts)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}

	return fields
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, l.fields(keysAndValues))
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, l.fields(keysAndValues))
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, l.fields(keysAndValues))
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, l.fields(keysAndValues))
}
