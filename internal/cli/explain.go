package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/webstorage/internal/descriptor"
	"github.com/roach88/webstorage/internal/endpoint"
	"github.com/roach88/webstorage/internal/queryir"
	"github.com/roach88/webstorage/internal/querysql"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Params []string
}

// ExplainResult is the JSON payload of the explain command.
type ExplainResult struct {
	Descriptor string          `json:"descriptor"`
	Verb       string          `json:"verb"`
	Category   string          `json:"category"`
	Params     []string        `json:"params"`
	Bound      bool            `json:"bound"`
	Where      string          `json:"where,omitempty"`
	WhereWire  json.RawMessage `json:"where_wire,omitempty"`
	SQL        string          `json:"sql,omitempty"`
	SQLArgs    []any           `json:"sql_args,omitempty"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <descriptor>",
		Short: "Parse a descriptor and show its bound expression and SQL",
		Long: `Parse a descriptor locally and list its parameter types. When every
parameter is given with --param, also bind it and print the WHERE
expression, its wire encoding and the SQL the reference store runs.

explain does not consult a registry; trust is decided by the endpoint.

Example:
  webstorage explain "QUERY vm-info WHERE 'agentId' = ?s AND 'alive' = true" -p s:agent-1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "parameter as type:value, in placeholder order (repeatable)")

	return cmd
}

func runExplain(opts *ExplainOptions, text string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	stmt, err := descriptor.ParseText(text)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeParse, err, nil)
	}
	params, err := ParseParams(opts.Params)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeParameter, err, nil)
	}

	result := ExplainResult{
		Descriptor: text,
		Verb:       string(stmt.Verb),
		Category:   stmt.Category,
		Params:     paramNames(stmt.Params),
	}
	if len(params) == len(stmt.Params) {
		bound, err := stmt.Bind(params)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeParameter, err, nil)
		}
		if err := explainBound(&result, bound); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeGeneric, err, nil)
		}
	} else if len(params) > 0 {
		return formatter.Fail(ExitCommandError, ErrCodeParameter,
			fmt.Errorf("descriptor has %d parameters, got %d --param values", len(stmt.Params), len(params)), nil)
	}

	return formatter.Success(result, func(w io.Writer) {
		writeExplainText(w, result)
	})
}

func explainBound(result *ExplainResult, bound *descriptor.Bound) error {
	result.Bound = true
	if bound.Where != nil {
		result.Where = queryir.Format(bound.Where)
		wire, err := queryir.Encode(bound.Where)
		if err != nil {
			return fmt.Errorf("encode where: %w", err)
		}
		result.WhereWire = wire
	}

	compiler := querysql.NewSQLCompiler()
	var err error
	switch bound.Verb {
	case descriptor.VerbQuery:
		sel := endpoint.SelectFor(bound)
		sel.Limit = bound.Limit
		result.SQL, result.SQLArgs, err = compiler.CompileSelect(sel)
	case descriptor.VerbQueryCount:
		result.SQL, result.SQLArgs, err = compiler.CompileCount(bound.Category, bound.Where)
	case descriptor.VerbAdd:
		result.SQL = fmt.Sprintf("INSERT INTO %s (category, doc, digest) VALUES (?, ?, ?)", querysql.Table)
	case descriptor.VerbUpdate:
		// Matching documents are read, patched and written back by id.
		result.SQL, result.SQLArgs, err = compiler.CompileSelect(querysql.Select{Category: bound.Category, Where: bound.Where})
	case descriptor.VerbReplace, descriptor.VerbRemove:
		var clause string
		clause, result.SQLArgs, err = compiler.CompileWhere(bound.Category, bound.Where)
		if bound.Verb == descriptor.VerbReplace {
			result.SQL = fmt.Sprintf("UPDATE %s SET doc = ?, digest = ? WHERE %s", querysql.Table, clause)
		} else {
			result.SQL = fmt.Sprintf("DELETE FROM %s WHERE %s", querysql.Table, clause)
		}
	}
	return err
}

func writeExplainText(w io.Writer, r ExplainResult) {
	fmt.Fprintf(w, "descriptor: %s\n", r.Descriptor)
	fmt.Fprintf(w, "verb:       %s\n", r.Verb)
	fmt.Fprintf(w, "category:   %s\n", r.Category)
	params := "none"
	if len(r.Params) > 0 {
		params = strings.Join(r.Params, ", ")
	}
	fmt.Fprintf(w, "params:     %s\n", params)
	if !r.Bound {
		return
	}
	if r.Where != "" {
		fmt.Fprintf(w, "where:      %s\n", r.Where)
		fmt.Fprintf(w, "wire:       %s\n", r.WhereWire)
	}
	fmt.Fprintf(w, "sql:        %s\n", r.SQL)
	if len(r.SQLArgs) > 0 {
		// Document values bound by writes are not shown.
		args := make([]string, len(r.SQLArgs))
		for i, a := range r.SQLArgs {
			args[i] = fmt.Sprintf("%v", a)
		}
		fmt.Fprintf(w, "args:       [%s]\n", strings.Join(args, ", "))
	}
}
