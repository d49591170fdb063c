package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/smazurov/gotasklist/internal/logging"
	"github.com/smazurov/gotasklist/internal/tasklist"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// Output formats for the list command.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
)

// CreateListCmd creates the list command.
func CreateListCmd() *cobra.Command {
	var flags taskFlags
	var format string
	var stream bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List running tasks",
		Long: `Runs tasklist.exe once and prints the normalized tasks. ` +
			`With --stream, tasks are printed as soon as their line is parsed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stdout carries results, so logs go to stderr.
			logging.Initialize(logging.Config{Level: logLevel, Format: "text", Writer: os.Stderr})

			_, opts, err := flags.options(afero.NewOsFs())
			if err != nil {
				return err
			}

			client := tasklist.NewClient(tasklist.WithExecutable(flags.executable))
			out := newTaskWriter(cmd.OutOrStdout(), format)

			if !stream {
				tasks, err := client.List(cmd.Context(), opts)
				if err != nil {
					return err
				}
				for _, t := range tasks {
					if err := out.Write(t); err != nil {
						return err
					}
				}
				return out.Flush()
			}

			s, err := client.Stream(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()
			for t, err := range s.All() {
				if err != nil {
					return err
				}
				if err := out.Write(t); err != nil {
					return err
				}
			}
			return out.Flush()
		},
	}

	flags.bind(cmd.Flags())
	cmd.Flags().StringVarP(&format, "format", "o", FormatTable, "Output format: table, json (one task per line) or csv")
	cmd.Flags().BoolVar(&stream, "stream", false, "Print tasks while tasklist.exe is still running")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level for diagnostics on stderr")

	return cmd
}

// taskWriter prints tasks in one of the output formats. The column set is
// taken from the first task written.
type taskWriter struct {
	format  string
	w       io.Writer
	tab     *tabwriter.Writer
	csv     *csv.Writer
	json    *json.Encoder
	columns []string
}

func newTaskWriter(w io.Writer, format string) *taskWriter {
	tw := &taskWriter{format: format, w: w}
	switch format {
	case FormatJSON:
		tw.json = json.NewEncoder(w)
	case FormatCSV:
		tw.csv = csv.NewWriter(w)
	default:
		tw.format = FormatTable
		tw.tab = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	}
	return tw
}

func (tw *taskWriter) Write(t tasklist.Task) error {
	if tw.format == FormatJSON {
		return tw.json.Encode(t)
	}

	if tw.columns == nil {
		tw.columns = t.Schema.Columns()
		if err := tw.row(tw.columns); err != nil {
			return err
		}
	}

	fields := t.Fields()
	values := make([]string, len(tw.columns))
	for i, col := range tw.columns {
		values[i] = formatValue(fields[col])
	}
	return tw.row(values)
}

func (tw *taskWriter) row(values []string) error {
	if tw.csv != nil {
		return tw.csv.Write(values)
	}
	_, err := fmt.Fprintln(tw.tab, strings.Join(values, "\t"))
	return err
}

// Flush writes buffered output. Table output is aligned only after all
// rows are known.
func (tw *taskWriter) Flush() error {
	switch {
	case tw.csv != nil:
		tw.csv.Flush()
		return tw.csv.Error()
	case tw.tab != nil:
		return tw.tab.Flush()
	}
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case []string:
		return strings.Join(v, ",")
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
