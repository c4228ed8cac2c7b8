package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const databasePath = "/fmi/data/vLatest/databases/CRM"

// dataAPI is a minimal Data API that logs calls below the database path.
type dataAPI struct {
	mu    sync.Mutex
	calls []string
	body  map[string]string
}

func (a *dataAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	path := strings.TrimPrefix(r.URL.EscapedPath(), databasePath)
	call := r.Method + " " + path

	a.mu.Lock()
	a.calls = append(a.calls, call)
	a.body[call] = string(body)
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	var response any

	switch {
	case path == "/sessions":
		response = map[string]string{"token": "tok-1"}
	case strings.HasSuffix(path, "/_find"):
		response = map[string]any{
			"dataInfo": map[string]any{"foundCount": 2, "returnedCount": 2},
			"data": []map[string]any{
				{"recordId": "1", "modId": "3", "fieldData": map[string]any{"city": "London", "name": "Ada"}},
				{"recordId": "2", "modId": "0", "fieldData": map[string]any{"city": "Paris", "name": "Marie"}},
			},
		}
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/records"):
		response = map[string]string{"recordId": "7", "modId": "0"}
	default:
		response = map[string]any{}
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"response": response,
		"messages": []map[string]string{{"code": "0", "message": "OK"}},
	})
}

func (a *dataAPI) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]string(nil), a.calls...)
}

func (a *dataAPI) Body(call string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.body[call]
}

// useDataAPI points the global configuration at a fake server. These tests
// share viper's global state and must not run in parallel.
func useDataAPI(t *testing.T, output string) *dataAPI {
	t.Helper()

	api := &dataAPI{body: map[string]string{}}
	server := httptest.NewServer(api)

	t.Cleanup(func() {
		server.Close()
		viper.Reset()
	})

	viper.Reset()
	viper.Set("output", output)
	viper.Set("default_connection", "crm")
	viper.Set("connections.crm.host", strings.TrimPrefix(server.URL, "http://"))
	viper.Set("connections.crm.protocol", "http")
	viper.Set("connections.crm.database", "CRM")
	viper.Set("connections.crm.username", "admin")
	viper.Set("connections.crm.password", "secret")
	viper.Set("connections.crm.session_store", "none")

	return api
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	require.NoError(t, cmd.Execute())

	return out.String()
}

func TestFindCommandRun(t *testing.T) {
	api := useDataAPI(t, "json")

	out := execute(t, NewFindCommand(), "-l", "Contacts", "-w", "city=London", "--or", "city=Paris", "-s", "name:desc")

	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0]["recordId"])

	call := "POST /layouts/Contacts/_find"
	assert.Equal(t, []string{"POST /sessions", call}, api.Calls())

	body := api.Body(call)
	assert.Contains(t, body, `{"city":"=London"}`)
	assert.Contains(t, body, `{"city":"=Paris"}`)
	assert.Contains(t, body, `"sortOrder":"descend"`)
}

func TestFindCommandTable(t *testing.T) {
	useDataAPI(t, "table")

	out := execute(t, NewFindCommand(), "-l", "Contacts", "-w", "city=London")
	assert.Contains(t, out, "Ada")
	assert.Contains(t, out, "Marie")
}

func TestFindCommandRequiresLayout(t *testing.T) {
	useDataAPI(t, "json")

	cmd := NewFindCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"-w", "city=London"})

	require.Error(t, cmd.Execute())
}

func TestCountCommandRun(t *testing.T) {
	api := useDataAPI(t, "json")

	out := execute(t, NewCountCommand(), "-l", "Contacts", "-w", "city=London")
	assert.JSONEq(t, `{"count":2}`, out)
	assert.Contains(t, api.Body("POST /layouts/Contacts/_find"), `"limit":1`)
}

func TestCreateAndDeleteCommandRun(t *testing.T) {
	api := useDataAPI(t, "json")

	out := execute(t, NewCreateCommand(), "-l", "Contacts", "name=Ada", "city=London")

	var write map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &write))
	assert.Equal(t, "7", write["recordId"])
	assert.JSONEq(t, `{"fieldData":{"city":"London","name":"Ada"}}`, api.Body("POST /layouts/Contacts/records"))

	out = execute(t, NewDeleteCommand(), "-l", "Contacts", "7")
	assert.Contains(t, out, "Deleted record 7")
	assert.Contains(t, api.Calls(), "DELETE /layouts/Contacts/records/7")
}

func TestConfigCommandRun(t *testing.T) {
	viper.Reset()

	path := filepath.Join(t.TempDir(), "config.yml")
	viper.Set("config", path)

	t.Cleanup(viper.Reset)

	execute(t, NewConfigCommand(), "set", "host", "fm.example.com")
	execute(t, NewConfigCommand(), "set", "password", "secret")
	execute(t, NewConfigCommand(), "use", "filemaker")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "host: fm.example.com")
	assert.Contains(t, string(data), "default_connection: filemaker")

	viper.Set("output", "yaml")

	out := execute(t, NewConfigCommand(), "show")
	assert.Contains(t, out, "***")
	assert.NotContains(t, out, "secret")

	cmd := NewConfigCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"use", "missing"})
	require.Error(t, cmd.Execute())
}
