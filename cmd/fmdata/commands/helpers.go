package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/fivetwenty-io/fmdata/internal/constants"
	"github.com/fivetwenty-io/fmdata/pkg/fmclient"
	"github.com/fivetwenty-io/fmdata/pkg/fmdata"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// sessionsPath is the SQLite file that keeps session tokens between invocations.
func sessionsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, constants.ConfigDirName)

	err = os.MkdirAll(dir, constants.ConfigDirPerm)
	if err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(dir, constants.SessionsFileName), nil
}

// loadConnectionConfig resolves the selected connection. Unless the
// connection names its own session store, tokens go to the CLI's SQLite file
// so a login survives the process.
func loadConnectionConfig(v *viper.Viper) (*fmdata.Config, error) {
	name := fmclient.ConnectionName(v, v.GetString("connection"))
	prefix := "connections." + name + "."

	if v.GetString(prefix+"host") != "" && !v.IsSet(prefix+"session_store") {
		path, err := sessionsPath()
		if err != nil {
			return nil, err
		}

		v.Set(prefix+"session_store", string(fmdata.SessionStoreSQLite))
		v.Set(prefix+"session_store_path", path)
	}

	config, err := fmclient.LoadConfig(v, name)
	if err != nil {
		return nil, err
	}

	if v.GetBool("verbose") || v.GetBool("debug") {
		config.Logger = fmdata.NewZerologLogger(zerolog.ConsoleWriter{Out: os.Stderr}, zerolog.DebugLevel)
	}

	if v.GetBool("debug") {
		config.Debug = true
	}

	config.UserAgent = "fmdata-cli"

	return config, nil
}

// openClient connects to the selected connection. The returned close
// function releases the session store.
func openClient(ctx context.Context) (fmdata.Client, func(), error) {
	config, err := loadConnectionConfig(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}

	client, err := fmclient.New(ctx, config)
	if err != nil {
		closeStore(config.SessionStore)

		return nil, nil, err
	}

	return client, func() { closeStore(config.SessionStore) }, nil
}

func closeStore(store fmdata.SessionStore) {
	if closer, ok := store.(io.Closer); ok {
		_ = closer.Close()
	}
}

// parseKeyValues turns KEY=VALUE arguments into field values.
func parseKeyValues(pairs []string) (map[string]any, error) {
	values := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", constants.KeyValueSplitParts)
		if len(parts) != constants.KeyValueSplitParts || parts[0] == "" {
			return nil, fmt.Errorf("%w: %q", constants.ErrInvalidKeyValue, pair)
		}

		values[parts[0]] = parts[1]
	}

	return values, nil
}

// parseSort turns FIELD or FIELD:ORDER arguments into sort rules.
func parseSort(specs []string) ([]fmdata.SortRule, error) {
	rules := make([]fmdata.SortRule, 0, len(specs))

	for _, spec := range specs {
		field, order, found := strings.Cut(spec, ":")
		rule := fmdata.SortRule{FieldName: field, SortOrder: fmdata.SortAscend}

		if found {
			switch strings.ToLower(order) {
			case "asc", string(fmdata.SortAscend):
			case "desc", string(fmdata.SortDescend):
				rule.SortOrder = fmdata.SortDescend
			default:
				return nil, fmt.Errorf("%w: %q", constants.ErrInvalidSortOrder, order)
			}
		}

		rules = append(rules, rule)
	}

	return rules, nil
}

// writeStructured encodes v as JSON or YAML. It reports false for table output.
func writeStructured(w io.Writer, v any) (bool, error) {
	switch viper.GetString("output") {
	case constants.FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		return true, encoder.Encode(v)
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(w)

		return true, encoder.Encode(v)
	case constants.FormatTable, "":
		return false, nil
	default:
		return true, fmt.Errorf("%w: %s", constants.ErrUnsupportedFormat, viper.GetString("output"))
	}
}

// renderRecords prints records with one column per field.
func renderRecords(w io.Writer, records []fmdata.Record) error {
	handled, err := writeStructured(w, records)
	if handled {
		return err
	}

	if len(records) == 0 {
		_, _ = fmt.Fprintln(w, "No records found.")

		return nil
	}

	fields := recordFields(records)

	header := []any{"Record ID", "Mod ID"}
	for _, field := range fields {
		header = append(header, field)
	}

	table := tablewriter.NewWriter(w)
	table.Header(header...)

	for _, record := range records {
		row := []string{record.RecordID, record.ModID}
		for _, field := range fields {
			row = append(row, formatValue(record.FieldData[field]))
		}

		_ = table.Append(row)
	}

	err = table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// renderProperties prints name/value pairs in order.
func renderProperties(w io.Writer, v any, rows [][]string) error {
	handled, err := writeStructured(w, v)
	if handled {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Property", "Value")

	for _, row := range rows {
		_ = table.Append(row)
	}

	err = table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func renderWrite(w io.Writer, resp *fmdata.WriteResponse) error {
	rows := [][]string{
		{"Record ID", resp.RecordID},
		{"Mod ID", resp.ModID},
	}

	if resp.ScriptResult != "" || resp.ScriptError != "" {
		rows = append(rows, []string{"Script Result", resp.ScriptResult}, []string{"Script Error", resp.ScriptError})
	}

	return renderProperties(w, resp, rows)
}

func recordFields(records []fmdata.Record) []string {
	seen := map[string]bool{}

	for _, record := range records {
		for field := range record.FieldData {
			seen[field] = true
		}
	}

	fields := make([]string, 0, len(seen))
	for field := range seen {
		fields = append(fields, field)
	}

	sort.Strings(fields)

	return fields
}

func formatValue(value any) string {
	var text string

	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		text = typed
	case float64:
		text = strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		text = fmt.Sprint(typed)
	}

	if len(text) > constants.StringTruncationLength {
		return text[:constants.StringTruncationLength] + "..."
	}

	return text
}

func printSuccess(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString(constants.CheckMarkSymbol), fmt.Sprintf(format, args...))
}
