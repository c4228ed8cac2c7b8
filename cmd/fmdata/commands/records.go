package commands

import (
	"fmt"
	"strconv"

	"github.com/fivetwenty-io/fmdata/internal/constants"
	"github.com/fivetwenty-io/fmdata/pkg/fmdata"
	"github.com/spf13/cobra"
)

// queryFlags are the criteria shared by find and count.
type queryFlags struct {
	layout  string
	where   []string
	orWhere []string
	omit    []string
	raw     []string
	sort    []string
	limit   int
	offset  int
	portals []string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.layout, "layout", "l", "", "layout to query (required)")
	cmd.Flags().StringArrayVarP(&f.where, "where", "w", nil, "FIELD=VALUE criterion added to the current request")
	cmd.Flags().StringArrayVar(&f.orWhere, "or", nil, "FIELD=VALUE criterion starting a new request")
	cmd.Flags().StringArrayVar(&f.omit, "omit", nil, "FIELD=VALUE criterion of a new omit request")
	cmd.Flags().StringArrayVar(&f.raw, "raw", nil, "FIELD=CRITERION passed through unchanged, e.g. age=>30")
	cmd.Flags().StringArrayVarP(&f.sort, "sort", "s", nil, "FIELD or FIELD:descend")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum number of records")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "number of records to skip")
	cmd.Flags().StringArrayVar(&f.portals, "portal", nil, "portal to include")
}

func (f *queryFlags) build(client fmdata.Client) (*fmdata.Query, error) {
	if f.layout == "" {
		return nil, constants.ErrLayoutRequired
	}

	q := client.Layout(f.layout)

	err := applyCriteria(f.where, func(field string, value any) { q.Where(field, value) })
	if err != nil {
		return nil, err
	}

	err = applyCriteria(f.raw, func(field string, value any) { q.WhereRaw(field, fmt.Sprint(value)) })
	if err != nil {
		return nil, err
	}

	err = applyCriteria(f.orWhere, func(field string, value any) { q.OrWhere(field, value) })
	if err != nil {
		return nil, err
	}

	err = applyCriteria(f.omit, func(field string, value any) { q.WhereNot(field, value) })
	if err != nil {
		return nil, err
	}

	rules, err := parseSort(f.sort)
	if err != nil {
		return nil, err
	}

	if len(rules) > 0 {
		q.Sort(rules...)
	}

	if f.limit > 0 {
		q.Limit(f.limit)
	}

	if f.offset > 0 {
		q.Offset(f.offset)
	}

	if len(f.portals) > 0 {
		q.Portal(f.portals...)
	}

	return q, q.Err()
}

func applyCriteria(pairs []string, apply func(field string, value any)) error {
	for _, pair := range pairs {
		values, err := parseKeyValues([]string{pair})
		if err != nil {
			return err
		}

		for field, value := range values {
			apply(field, value)
		}
	}

	return nil
}

// NewFindCommand creates the find command.
func NewFindCommand() *cobra.Command {
	var (
		flags   queryFlags
		page    int
		perPage int
	)

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find records",
		Long: `Find records on a layout. Criteria given with --where share one find
request; --or starts another request and --omit adds an exclusion request.
Without criteria every record of the layout is returned.`,
		Example: `  fmdata find -l Contacts -w city=London --or city=Paris --omit status=archived -s last:descend
  fmdata find -l Contacts --raw "age=>30" --page 2 --per-page 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeClient, err := openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeClient()

			q, err := flags.build(client)
			if err != nil {
				return err
			}

			if page > 0 {
				result, pageErr := q.Paginate(cmd.Context(), perPage, page)
				if pageErr != nil {
					return pageErr
				}

				handled, writeErr := writeStructured(cmd.OutOrStdout(), result)
				if handled {
					return writeErr
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Page %d of %d (%d records)\n", result.CurrentPage, result.LastPage, result.Total)

				return renderRecords(cmd.OutOrStdout(), result.Records)
			}

			records, err := q.Get(cmd.Context())
			if err != nil {
				return err
			}

			return renderRecords(cmd.OutOrStdout(), records)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&page, "page", 0, "page number, enables pagination")
	cmd.Flags().IntVar(&perPage, "per-page", constants.DefaultPerPage, "records per page")

	return cmd
}

// NewCountCommand creates the count command.
func NewCountCommand() *cobra.Command {
	var flags queryFlags

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count matching records",
		Long:  "Count the records matching the criteria. Accepts the same criteria flags as find.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeClient, err := openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeClient()

			q, err := flags.build(client)
			if err != nil {
				return err
			}

			count, err := q.Count(cmd.Context())
			if err != nil {
				return err
			}

			return renderProperties(cmd.OutOrStdout(), map[string]int{"count": count}, [][]string{
				{"Count", strconv.Itoa(count)},
			})
		},
	}

	flags.register(cmd)

	return cmd
}

// NewGetCommand creates the get command.
func NewGetCommand() *cobra.Command {
	var (
		layout  string
		portals []string
	)

	cmd := &cobra.Command{
		Use:   "get RECORD_ID",
		Short: "Get a record by ID",
		Long:  "Read a single record by its internal record ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if layout == "" {
				return constants.ErrLayoutRequired
			}

			client, closeClient, err := openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeClient()

			q := client.Layout(layout)
			if len(portals) > 0 {
				q.Portal(portals...)
			}

			record, err := q.FindByRecordID(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return renderRecords(cmd.OutOrStdout(), []fmdata.Record{*record})
		},
	}

	cmd.Flags().StringVarP(&layout, "layout", "l", "", "layout of the record (required)")
	cmd.Flags().StringArrayVar(&portals, "portal", nil, "portal to include")

	return cmd
}

// NewCreateCommand creates the create command.
func NewCreateCommand() *cobra.Command {
	var (
		layout string
		files  []string
	)

	cmd := &cobra.Command{
		Use:     "create FIELD=VALUE...",
		Short:   "Create a record",
		Long:    "Create a record from field values. Container fields can be filled from files with --file FIELD=PATH.",
		Example: `  fmdata create -l Contacts first=Ada last=Lovelace --file photo=./ada.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if layout == "" {
				return constants.ErrLayoutRequired
			}

			q, closeClient, err := writeQuery(cmd, layout, args, files)
			if err != nil {
				return err
			}
			defer closeClient()

			resp, err := q.Create(cmd.Context())
			if err != nil {
				return err
			}

			return renderWrite(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVarP(&layout, "layout", "l", "", "layout to write through (required)")
	cmd.Flags().StringArrayVar(&files, "file", nil, "FIELD=PATH container upload")

	return cmd
}

// NewEditCommand creates the edit command.
func NewEditCommand() *cobra.Command {
	var (
		layout string
		modID  string
		files  []string
	)

	cmd := &cobra.Command{
		Use:   "edit RECORD_ID FIELD=VALUE...",
		Short: "Edit a record",
		Long:  "Change field values of a record. With --mod-id the edit fails if the record changed since it was read.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if layout == "" {
				return constants.ErrLayoutRequired
			}

			q, closeClient, err := writeQuery(cmd, layout, args[1:], files)
			if err != nil {
				return err
			}
			defer closeClient()

			q.ForRecord(args[0])

			if modID != "" {
				q.IfModID(modID)
			}

			resp, err := q.Edit(cmd.Context())
			if err != nil {
				return err
			}

			return renderWrite(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVarP(&layout, "layout", "l", "", "layout to write through (required)")
	cmd.Flags().StringVar(&modID, "mod-id", "", "expected modification ID")
	cmd.Flags().StringArrayVar(&files, "file", nil, "FIELD=PATH container upload")

	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand() *cobra.Command {
	var layout string

	cmd := &cobra.Command{
		Use:   "delete RECORD_ID",
		Short: "Delete a record",
		Long:  "Delete a record. Deleting a record that does not exist is not an error.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if layout == "" {
				return constants.ErrLayoutRequired
			}

			client, closeClient, err := openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeClient()

			deleted, err := client.Layout(layout).ForRecord(args[0]).Delete(cmd.Context())
			if err != nil {
				return err
			}

			if deleted == 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Record %s does not exist\n", args[0])

				return nil
			}

			printSuccess(cmd, "Deleted record %s", args[0])

			return nil
		},
	}

	cmd.Flags().StringVarP(&layout, "layout", "l", "", "layout of the record (required)")

	return cmd
}

// NewDuplicateCommand creates the duplicate command.
func NewDuplicateCommand() *cobra.Command {
	var layout string

	cmd := &cobra.Command{
		Use:   "duplicate RECORD_ID",
		Short: "Duplicate a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if layout == "" {
				return constants.ErrLayoutRequired
			}

			client, closeClient, err := openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeClient()

			resp, err := client.Layout(layout).ForRecord(args[0]).Duplicate(cmd.Context())
			if err != nil {
				return err
			}

			return renderWrite(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVarP(&layout, "layout", "l", "", "layout of the record (required)")

	return cmd
}

// NewUploadCommand creates the upload command.
func NewUploadCommand() *cobra.Command {
	var layout string

	cmd := &cobra.Command{
		Use:   "upload RECORD_ID FIELD PATH",
		Short: "Upload a file into a container field",
		Args:  cobra.ExactArgs(3), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			if layout == "" {
				return constants.ErrLayoutRequired
			}

			upload, err := fmdata.ContainerFromFile(args[2])
			if err != nil {
				return err
			}

			client, closeClient, err := openClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeClient()

			resp, err := client.Layout(layout).ForRecord(args[0]).SetContainer(cmd.Context(), args[1], upload)
			if err != nil {
				return err
			}

			return renderWrite(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVarP(&layout, "layout", "l", "", "layout of the record (required)")

	return cmd
}

// writeQuery opens a client and sets field values and container files.
func writeQuery(cmd *cobra.Command, layout string, pairs, files []string) (*fmdata.Query, func(), error) {
	values, err := parseKeyValues(pairs)
	if err != nil {
		return nil, nil, err
	}

	paths, err := parseKeyValues(files)
	if err != nil {
		return nil, nil, err
	}

	client, closeClient, err := openClient(cmd.Context())
	if err != nil {
		return nil, nil, err
	}

	q := client.Layout(layout).SetFieldData(fmdata.FieldDataFrom(values))

	for field, path := range paths {
		upload, fileErr := fmdata.ContainerFromFile(fmt.Sprint(path))
		if fileErr != nil {
			closeClient()

			return nil, nil, fileErr
		}

		q.Set(field, upload)
	}

	return q, closeClient, nil
}
