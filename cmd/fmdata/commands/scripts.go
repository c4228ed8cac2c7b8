package commands

import (
	"github.com/fivetwenty-io/fmdata/internal/constants"
	"github.com/fivetwenty-io/fmdata/pkg/fmdata"
	"github.com/spf13/cobra"
)

// NewScriptCommand creates the script command.
func NewScriptCommand() *cobra.Command {
	var (
		layout string
		param  string
	)

	cmd := &cobra.Command{
		Use:     "script NAME",
		Short:   "Run a FileMaker script",
		Long:    "Run a script in the context of a layout and print its result",
		Example: `  fmdata script "Send Invoice" -l Invoices --param 1042`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if layout == "" {
				return constants.ErrLayoutRequired
			}

			client, closeClient, err := openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeClient()

			resp, err := client.Layout(layout).ExecuteScript(cmd.Context(), args[0], param)
			if err != nil {
				return err
			}

			return renderScript(cmd, resp)
		},
	}

	cmd.Flags().StringVarP(&layout, "layout", "l", "", "layout to run the script on (required)")
	cmd.Flags().StringVar(&param, "param", "", "script parameter")

	return cmd
}

func renderScript(cmd *cobra.Command, resp *fmdata.ScriptResponse) error {
	return renderProperties(cmd.OutOrStdout(), resp, [][]string{
		{"Script Result", resp.ScriptResult},
		{"Script Error", resp.ScriptError},
	})
}

// NewGlobalsCommand creates the globals command.
func NewGlobalsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "globals FIELD=VALUE...",
		Short: "Set global fields",
		Long: `Set global field values for the session. Field names must be fully
qualified (Table::Field). Globals only live as long as the session does.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseKeyValues(args)
			if err != nil {
				return err
			}

			client, closeClient, err := openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeClient()

			err = client.SetGlobalFields(cmd.Context(), fields)
			if err != nil {
				return err
			}

			printSuccess(cmd, "Set %d global field(s)", len(fields))

			return nil
		},
	}
}
