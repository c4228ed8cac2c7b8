package commands_test

import (
	"testing"

	"github.com/fivetwenty-io/fmdata/cmd/fmdata/commands"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigCommand(t *testing.T) {
	t.Parallel()

	cmd := commands.NewConfigCommand()
	assert.Equal(t, "config", cmd.Use)

	for _, name := range []string{"show", "set", "unset", "use", "remove"} {
		assert.NotNil(t, findSubcommand(cmd, name), "missing subcommand %s", name)
	}

	set := findSubcommand(cmd, "set")
	require.NotNil(t, set)
	require.Error(t, set.Args(set, []string{"host"}))
	require.NoError(t, set.Args(set, []string{"host", "fm.example.com"}))
}

//nolint:funlen
func TestRecordCommands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{
			name:  "find",
			cmd:   commands.NewFindCommand(),
			use:   "find",
			flags: []string{"layout", "where", "or", "omit", "raw", "sort", "limit", "offset", "portal", "page", "per-page"},
		},
		{
			name:  "count",
			cmd:   commands.NewCountCommand(),
			use:   "count",
			flags: []string{"layout", "where", "or", "omit", "raw"},
		},
		{name: "get", cmd: commands.NewGetCommand(), use: "get RECORD_ID", flags: []string{"layout", "portal"}},
		{name: "create", cmd: commands.NewCreateCommand(), use: "create FIELD=VALUE...", flags: []string{"layout", "file"}},
		{name: "edit", cmd: commands.NewEditCommand(), use: "edit RECORD_ID FIELD=VALUE...", flags: []string{"layout", "mod-id", "file"}},
		{name: "delete", cmd: commands.NewDeleteCommand(), use: "delete RECORD_ID", flags: []string{"layout"}},
		{name: "duplicate", cmd: commands.NewDuplicateCommand(), use: "duplicate RECORD_ID", flags: []string{"layout"}},
		{name: "upload", cmd: commands.NewUploadCommand(), use: "upload RECORD_ID FIELD PATH", flags: []string{"layout"}},
		{name: "script", cmd: commands.NewScriptCommand(), use: "script NAME", flags: []string{"layout", "param"}},
		{name: "globals", cmd: commands.NewGlobalsCommand(), use: "globals FIELD=VALUE..."},
		{name: "login", cmd: commands.NewLoginCommand(), use: "login", flags: []string{"username", "password"}},
		{name: "logout", cmd: commands.NewLogoutCommand(), use: "logout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short)
			assert.NotNil(t, tt.cmd.RunE)

			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %s should exist", flag)
			}
		})
	}
}

func TestUploadCommandArgs(t *testing.T) {
	t.Parallel()

	cmd := commands.NewUploadCommand()
	require.Error(t, cmd.Args(cmd, []string{"7", "Photo"}))
	require.NoError(t, cmd.Args(cmd, []string{"7", "Photo", "ada.png"}))
}
