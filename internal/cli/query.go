package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/webstorage/internal/client"
	"github.com/roach88/webstorage/internal/config"
	"github.com/roach88/webstorage/internal/cursor"
	"github.com/roach88/webstorage/internal/ir"
)

// StatementOptions holds flags shared by query and write.
type StatementOptions struct {
	*RootOptions
	Params    []string
	DataClass string
	Endpoint  string
	Database  string
	Registry  string
	BatchSize int
}

func (o *StatementOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&o.Params, "param", "p", nil, "parameter as type:value, in placeholder order (repeatable)")
	cmd.Flags().StringVar(&o.DataClass, "class", "", "data class of the descriptor's category")
	cmd.Flags().StringVar(&o.Endpoint, "endpoint", "", "base URL of a remote endpoint (overrides config)")
	cmd.Flags().StringVar(&o.Database, "db", "", "database of the in-process endpoint (overrides config)")
	cmd.Flags().StringVar(&o.Registry, "registry", "", "trusted registry of the in-process endpoint (overrides config)")
}

// resolve loads the config and applies flag overrides.
func (o *StatementOptions) resolve() (*config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if o.Endpoint != "" {
		cfg.Endpoint = o.Endpoint
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	if o.Registry != "" {
		cfg.Registry = o.Registry
	}
	if o.BatchSize > 0 {
		cfg.BatchSize = o.BatchSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeConfig, err)
	}
	return cfg, nil
}

// QueryResult is the JSON payload of the query command.
type QueryResult struct {
	Descriptor string      `json:"descriptor"`
	Records    []ir.Object `json:"records"`
	Count      int         `json:"count"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatementOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <descriptor>",
		Short: "Run a trusted QUERY or QUERY-COUNT descriptor",
		Long: `Prepare a trusted QUERY or QUERY-COUNT descriptor, bind its parameters
and print every record, fetching further batches as needed.

Example:
  webstorage query "QUERY vm-info WHERE 'agentId' = ?s SORT 'startTime' DSC" -p s:agent-1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(commandContext(cmd), opts, args[0], cmd)
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "records per batch (overrides config)")

	return cmd
}

func runQuery(ctx context.Context, opts *StatementOptions, text string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	stmt, sess, err := prepare(ctx, opts, text, cmd)
	if err != nil {
		return report(formatter, err)
	}
	defer sess.Close()

	cur, err := stmt.ExecuteQuery(ctx)
	if err != nil {
		return report(formatter, err)
	}
	records, err := cursor.Collect(ctx, cur)
	if err != nil {
		return report(formatter, err)
	}
	if records == nil {
		records = []ir.Object{}
	}

	result := QueryResult{Descriptor: text, Records: records, Count: len(records)}
	return formatter.Success(result, func(w io.Writer) {
		for _, r := range records {
			data, err := ir.MarshalCanonical(r)
			if err != nil {
				fmt.Fprintf(w, "<unprintable record: %v>\n", err)
				continue
			}
			fmt.Fprintln(w, string(data))
		}
		fmt.Fprintf(w, "(%d records)\n", len(records))
	})
}

// WriteResult is the JSON payload of the write command.
type WriteResult struct {
	Descriptor   string `json:"descriptor"`
	ResponseCode string `json:"response_code"`
}

// NewWriteCommand creates the write command.
func NewWriteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatementOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "write <descriptor>",
		Short: "Run a trusted ADD, REPLACE, UPDATE or REMOVE descriptor",
		Long: `Prepare a trusted write descriptor, bind its parameters and execute it.

Example:
  webstorage write "UPDATE vm-info SET 'alive' = ?b WHERE 'vmId' = ?s" -p b:false -p s:vm-7`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(commandContext(cmd), opts, args[0], cmd)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func runWrite(ctx context.Context, opts *StatementOptions, text string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	stmt, sess, err := prepare(ctx, opts, text, cmd)
	if err != nil {
		return report(formatter, err)
	}
	defer sess.Close()

	code, err := stmt.Execute(ctx)
	if err != nil {
		return report(formatter, err)
	}
	result := WriteResult{Descriptor: text, ResponseCode: code.String()}
	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintln(w, code)
	})
}

// prepare opens a session and returns the prepared, fully bound statement.
// On success the caller closes the session.
func prepare(ctx context.Context, opts *StatementOptions, text string, cmd *cobra.Command) (*client.PreparedStatement, *session, error) {
	cfg, err := opts.resolve()
	if err != nil {
		return nil, nil, err
	}
	params, err := ParseParams(opts.Params)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, ErrCodeParameter, err)
	}
	cat, err := categoryOf(text, opts.DataClass)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, ErrCodeParse, err)
	}

	sess, err := openSession(cfg, opts.newLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return nil, nil, err
	}
	stmt, err := sess.client.Prepare(ctx, ir.NewStatementDescriptor(cat, text))
	if err != nil {
		sess.Close()
		return nil, nil, err
	}
	if len(params) != stmt.NumFreeVariables() {
		sess.Close()
		return nil, nil, WrapExitError(ExitCommandError, ErrCodeParameter,
			fmt.Errorf("descriptor has %d parameters, got %d --param values", stmt.NumFreeVariables(), len(params)))
	}
	for i, p := range params {
		if err := stmt.SetParam(i, p); err != nil {
			sess.Close()
			return nil, nil, err
		}
	}
	return stmt, sess, nil
}
