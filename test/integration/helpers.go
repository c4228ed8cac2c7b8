//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/fivetwenty-io/fmdata/pkg/fmclient"
	"github.com/fivetwenty-io/fmdata/pkg/fmdata"
	"github.com/stretchr/testify/require"
)

// connectionName is the connection the CLI runs are pointed at.
const connectionName = "integration"

// TestConfig holds configuration for integration tests
type TestConfig struct {
	Host       string
	Database   string
	Username   string
	Password   string
	Layout     string
	TextField  string
	BinaryPath string
	Verbose    bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		Host:       os.Getenv("FMDATA_TEST_HOST"),
		Database:   os.Getenv("FMDATA_TEST_DATABASE"),
		Username:   os.Getenv("FMDATA_TEST_USERNAME"),
		Password:   os.Getenv("FMDATA_TEST_PASSWORD"),
		Layout:     envOr("FMDATA_TEST_LAYOUT", "Contacts"),
		TextField:  envOr("FMDATA_TEST_FIELD", "name"),
		BinaryPath: binaryPath(),
		Verbose:    os.Getenv("FMDATA_VERBOSE") == "true",
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

// binaryPath determines the path to the fmdata binary
func binaryPath() string {
	if path := os.Getenv("FMDATA_BINARY_PATH"); path != "" {
		return path
	}

	for _, candidate := range []string{"../../fmdata", "./fmdata", "../fmdata"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "fmdata"
}

// SkipIfMissingConfig skips test if required config is missing
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.Host == "" || config.Database == "" {
		t.Skip("FMDATA_TEST_HOST or FMDATA_TEST_DATABASE not set, skipping integration test")
	}
}

// SkipIfMissingBinary skips test if the CLI has not been built
func (config *TestConfig) SkipIfMissingBinary(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath(config.BinaryPath); err != nil {
		t.Skipf("fmdata binary not found at %s, skipping integration test", config.BinaryPath)
	}
}

// NewClient connects to the test database without caching the session.
func (config *TestConfig) NewClient(t *testing.T) fmdata.Client {
	t.Helper()

	cache := false

	client, err := fmclient.New(context.Background(), &fmdata.Config{
		Name:              connectionName,
		Host:              config.Host,
		Database:          config.Database,
		Username:          config.Username,
		Password:          config.Password,
		CacheSessionToken: &cache,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	return client
}

// CommandRunner provides utilities for running fmdata commands
type CommandRunner struct {
	config *TestConfig
	home   string
	t      *testing.T
}

// NewCommandRunner creates a new command runner with its own home directory,
// so config and session files do not leak between runs.
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	t.Helper()

	return &CommandRunner{
		config: config,
		home:   t.TempDir(),
		t:      t,
	}
}

// Run executes an fmdata command against the integration connection
func (runner *CommandRunner) Run(args ...string) (stdout, stderr string, err error) {
	args = append([]string{"--connection", connectionName}, args...)

	// #nosec G204
	cmd := exec.Command(runner.config.BinaryPath, args...)
	cmd.Env = append(os.Environ(),
		"HOME="+runner.home,
		envKey("host")+"="+runner.config.Host,
		envKey("database")+"="+runner.config.Database,
		envKey("username")+"="+runner.config.Username,
		envKey("password")+"="+runner.config.Password,
	)

	var stdoutBuf, stderrBuf bytes.Buffer

	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.BinaryPath, strings.Join(args, " "))
	}

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

func envKey(setting string) string {
	return strings.ToUpper(fmt.Sprintf("%s_connections_%s_%s", fmclient.EnvPrefix, connectionName, setting))
}

// GenerateTestName creates a unique value for test records
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// AssertJSONOutput checks that output is valid JSON and decodes it.
func AssertJSONOutput(t *testing.T, output string) any {
	t.Helper()

	var decoded any

	require.NoError(t, json.Unmarshal([]byte(output), &decoded), "output is not JSON: %s", output)

	return decoded
}
