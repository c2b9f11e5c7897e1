package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/webstorage/internal/descriptor"
	"github.com/roach88/webstorage/internal/queryir"
)

// CheckedDescriptor is one registry entry in check output.
type CheckedDescriptor struct {
	Text        string   `json:"text"`
	Description string   `json:"description,omitempty"`
	Verb        string   `json:"verb,omitempty"`
	Params      []string `json:"params"`
	Error       string   `json:"error,omitempty"`
}

// CheckResult is the JSON payload of the check command.
type CheckResult struct {
	Registry    string              `json:"registry"`
	Valid       bool                `json:"valid"`
	Descriptors []CheckedDescriptor `json:"descriptors"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <registry>",
		Short: "Verify that every trusted descriptor parses",
		Long: `Load a trusted registry (a CUE file, or a directory of CUE files) and
parse every descriptor in it, listing verb and parameter types.

A registry entry that does not parse can never be prepared; check finds
those before an endpoint is started with the registry.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	reg, err := descriptor.LoadRegistry(path, descriptor.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRegistry, err, nil)
	}

	result := CheckResult{Registry: path, Valid: true}
	for _, e := range reg.Entries() {
		formatter.VerboseLog("checking %q", e.Text)
		checked := CheckedDescriptor{Text: e.Text, Description: e.Description, Params: []string{}}
		stmt, err := descriptor.ParseText(e.Text)
		if err != nil {
			checked.Error = err.Error()
			result.Valid = false
		} else {
			checked.Verb = string(stmt.Verb)
			checked.Params = paramNames(stmt.Params)
		}
		result.Descriptors = append(result.Descriptors, checked)
	}

	if !result.Valid {
		failed := 0
		for _, d := range result.Descriptors {
			if d.Error != "" {
				failed++
			}
		}
		if formatter.JSON() {
			return formatter.Fail(ExitFailure, ErrCodeParse,
				fmt.Errorf("%d of %d trusted descriptors do not parse", failed, len(result.Descriptors)), result)
		}
		writeCheckText(formatter.Writer, result)
		return WrapExitError(ExitFailure, ErrCodeParse, fmt.Errorf("%d of %d trusted descriptors do not parse", failed, len(result.Descriptors)))
	}
	return formatter.Success(result, func(w io.Writer) {
		writeCheckText(w, result)
	})
}

func writeCheckText(w io.Writer, result CheckResult) {
	fmt.Fprintf(w, "registry: %s\n", result.Registry)
	fmt.Fprintf(w, "trusted descriptors: %d\n\n", len(result.Descriptors))
	for _, d := range result.Descriptors {
		mark := "✓"
		if d.Error != "" {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s\n", mark, d.Text)
		if d.Description != "" {
			fmt.Fprintf(w, "    %s\n", d.Description)
		}
		if d.Error != "" {
			fmt.Fprintf(w, "    %s\n", d.Error)
			continue
		}
		params := "none"
		if len(d.Params) > 0 {
			params = strings.Join(d.Params, ", ")
		}
		fmt.Fprintf(w, "    verb: %s  params: %s\n", d.Verb, params)
	}
	fmt.Fprintln(w)
	if result.Valid {
		fmt.Fprintln(w, "✓ All descriptors parse")
	} else {
		fmt.Fprintln(w, "✗ Registry has descriptors that do not parse")
	}
}

func paramNames(types []queryir.ValueType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
