package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/exprjit/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Program  string // optional - hash or unique hash prefix
}

// TraceEvent represents a single entry in the log timeline.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Type      string `json:"type"` // "program" or "invocation"
	ID        string `json:"id"`   // program hash or invocation id
	Lambda    string `json:"lambda"`
	Signature string `json:"signature,omitempty"`
	Args      any    `json:"args,omitempty"`
	ArgsAfter any    `json:"args_after,omitempty"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Program  string       `json:"program,omitempty"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Programs    int `json:"programs"`
	Invocations int `json:"invocations"`
	Failed      int `json:"failed"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded programs and calls",
		Long: `Show the program and invocation log recorded with --db.

The timeline interleaves compiled programs and calls in seq order. Each
call shows its arguments before and after the call and either its result
or the runtime fault it raised.

Examples:
  exprjit trace --db ./exprjit.db
  exprjit trace --db ./exprjit.db --program 3fa9c1
  exprjit trace --db ./exprjit.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Program, "program", "", "limit to one program (hash or unique prefix)")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(opts.Database); err != nil {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("database not found: %s", opts.Database)})
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeStoreFailed, Message: fmt.Sprintf("failed to open database: %v", err)})
	}
	defer st.Close()

	result, err := buildTrace(ctx, st, opts.Program)
	if err != nil {
		return outputCommandError(formatter, err)
	}

	if opts.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: result})
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

// buildTrace merges programs and invocations into one seq-ordered timeline.
func buildTrace(ctx context.Context, st *store.Store, program string) (*TraceResult, error) {
	programs, err := st.ReadPrograms(ctx)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeStoreFailed, Message: err.Error()}
	}

	result := &TraceResult{Timeline: []TraceEvent{}}
	byHash := make(map[string]store.Program, len(programs))
	for _, p := range programs {
		byHash[p.Hash] = p
	}

	if program != "" {
		p, err := matchProgram(programs, program)
		if err != nil {
			return nil, err
		}
		result.Program = p.Hash
		programs = []store.Program{p}
	}

	invocations, err := st.ReadInvocations(ctx, result.Program)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeStoreFailed, Message: err.Error()}
	}

	for _, p := range programs {
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:       p.Seq,
			Type:      "program",
			ID:        p.Hash,
			Lambda:    p.Name,
			Signature: p.Signature,
		})
	}
	for _, inv := range invocations {
		ev := TraceEvent{
			Seq:       inv.Seq,
			Type:      "invocation",
			ID:        inv.ID,
			Lambda:    byHash[inv.ProgramHash].Name,
			Args:      decodeJSON(inv.Args),
			ArgsAfter: decodeJSON(inv.ArgsAfter),
			Result:    decodeJSON(inv.Result),
		}
		if inv.Failed() {
			ev.Error = inv.ErrorCode + ": " + inv.ErrorMessage
			result.Stats.Failed++
		}
		result.Timeline = append(result.Timeline, ev)
	}
	sort.SliceStable(result.Timeline, func(i, j int) bool {
		return result.Timeline[i].Seq < result.Timeline[j].Seq
	})

	result.Stats.Programs = len(programs)
	result.Stats.Invocations = len(invocations)
	return result, nil
}

// matchProgram resolves a full hash or a unique prefix.
func matchProgram(programs []store.Program, prefix string) (store.Program, error) {
	var found []store.Program
	for _, p := range programs {
		if p.Hash == prefix {
			return p, nil
		}
		if strings.HasPrefix(p.Hash, prefix) {
			found = append(found, p)
		}
	}
	switch len(found) {
	case 0:
		return store.Program{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("no program matches %q", prefix)}
	case 1:
		return found[0], nil
	default:
		return store.Program{}, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("%q matches %d programs", prefix, len(found))}
	}
}

// decodeJSON turns a stored canonical JSON column back into plain data.
func decodeJSON(s string) any {
	if s == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result *TraceResult, verbose bool) {
	if result.Program != "" {
		fmt.Fprintf(w, "Trace for program: %s\n\n", result.Program)
	}

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Timeline {
		formatTimelineEvent(w, ev, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Programs:    %d\n", result.Stats.Programs)
	fmt.Fprintf(w, "  Invocations: %d\n", result.Stats.Invocations)
	fmt.Fprintf(w, "  Failed:      %d\n", result.Stats.Failed)
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, ev TraceEvent, verbose bool) {
	switch ev.Type {
	case "program":
		fmt.Fprintf(w, "  [%d] COMPILE %s %s\n", ev.Seq, ev.Lambda, ev.Signature)
		if verbose {
			fmt.Fprintf(w, "       Hash: %s\n", ev.ID)
		}

	case "invocation":
		fmt.Fprintf(w, "  [%d] CALL %s %s\n", ev.Seq, ev.Lambda, formatValue(ev.Args))
		if ev.Error != "" {
			fmt.Fprintf(w, "       Error: %s\n", ev.Error)
		} else if ev.Result != nil {
			fmt.Fprintf(w, "       Result: %s\n", formatValue(ev.Result))
		}
		if verbose {
			fmt.Fprintf(w, "       After: %s\n", formatValue(ev.ArgsAfter))
			fmt.Fprintf(w, "       ID: %s\n", truncateID(ev.ID))
		}
	}
}

// formatArgs formats a map for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return fmt.Sprintf("%q", val)
	case nil:
		return "null"
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
