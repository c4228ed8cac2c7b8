package client_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/fivetwenty-io/fmdata/internal/client"
	"github.com/fivetwenty-io/fmdata/pkg/fmdata"
	"github.com/stretchr/testify/require"
)

const databasePath = "/fmi/data/vLatest/databases/CRM"

// recordedRequest is a Data API call as seen by the fake server, with the
// path relative to the database URL.
type recordedRequest struct {
	Method      string
	Path        string
	Query       url.Values
	Body        string
	Auth        string
	ContentType string
}

// fakeServer answers logins itself and hands every other call to handler.
type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	logins   int
	requests []recordedRequest
	handler  func(writer http.ResponseWriter, req recordedRequest)
}

func newFakeServer(t *testing.T, handler func(writer http.ResponseWriter, req recordedRequest)) *fakeServer {
	t.Helper()

	server := &fakeServer{handler: handler}
	server.Server = httptest.NewServer(http.HandlerFunc(server.serve))
	t.Cleanup(server.Close)

	return server
}

func (s *fakeServer) serve(writer http.ResponseWriter, request *http.Request) {
	body, _ := io.ReadAll(request.Body)

	recorded := recordedRequest{
		Method:      request.Method,
		Path:        strings.TrimPrefix(request.URL.EscapedPath(), databasePath),
		Query:       request.URL.Query(),
		Body:        string(body),
		Auth:        request.Header.Get("Authorization"),
		ContentType: request.Header.Get("Content-Type"),
	}

	s.mu.Lock()

	if recorded.Method == http.MethodPost && recorded.Path == "/sessions" {
		s.logins++
		token := "tok-" + strconv.Itoa(s.logins)
		s.mu.Unlock()

		writeEnvelope(writer, http.StatusOK, "0", "OK", map[string]string{"token": token})

		return
	}

	s.requests = append(s.requests, recorded)
	s.mu.Unlock()

	if s.handler == nil {
		writeEnvelope(writer, http.StatusOK, "0", "OK", map[string]any{})

		return
	}

	s.handler(writer, recorded)
}

func (s *fakeServer) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.logins
}

func (s *fakeServer) Requests() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]recordedRequest(nil), s.requests...)
}

func (s *fakeServer) Last(t *testing.T) recordedRequest {
	t.Helper()

	requests := s.Requests()
	require.NotEmpty(t, requests)

	return requests[len(requests)-1]
}

func (s *fakeServer) config() *fmdata.Config {
	cache := true

	return &fmdata.Config{
		Name:              "crm",
		Host:              strings.TrimPrefix(s.URL, "http://"),
		Protocol:          "http",
		Database:          "CRM",
		Username:          "admin",
		Password:          "secret",
		CacheSessionToken: &cache,
		SessionStore:      fmdata.NewMemorySessionStore(),
	}
}

func newTestClient(t *testing.T, server *fakeServer, mutate ...func(*fmdata.Config)) *client.Client {
	t.Helper()

	config := server.config()
	for _, fn := range mutate {
		fn(config)
	}

	c, err := client.New(context.Background(), config)
	require.NoError(t, err)

	return c
}

func writeEnvelope(writer http.ResponseWriter, status int, code, message string, response any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)

	_ = json.NewEncoder(writer).Encode(map[string]any{
		"response": response,
		"messages": []map[string]string{{"code": code, "message": message}},
	})
}

func writeRecords(writer http.ResponseWriter, foundCount int, records ...map[string]any) {
	data := make([]map[string]any, 0, len(records))
	for i, fields := range records {
		data = append(data, map[string]any{
			"recordId":  strconv.Itoa(i + 1),
			"modId":     "0",
			"fieldData": fields,
		})
	}

	writeEnvelope(writer, http.StatusOK, "0", "OK", map[string]any{
		"dataInfo": map[string]any{
			"database":         "CRM",
			"layout":           "Contacts",
			"table":            "Contacts",
			"totalRecordCount": 100,
			"foundCount":       foundCount,
			"returnedCount":    len(records),
		},
		"data": data,
	})
}
