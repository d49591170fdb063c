package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/gotasklist/internal/api/models"
	"github.com/smazurov/gotasklist/internal/config"
	"github.com/smazurov/gotasklist/internal/events"
	"github.com/smazurov/gotasklist/internal/logging"
	"github.com/smazurov/gotasklist/internal/monitor"
	"github.com/smazurov/gotasklist/internal/tasklist"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// CreateWatchCmd creates the watch command.
func CreateWatchCmd() *cobra.Command {
	var flags taskFlags
	var interval time.Duration
	var asJSON bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print tasks as they start and exit",
		Long: `Polls tasklist.exe and prints a line per started (+) or exited (-) task. ` +
			`With --query, edits to the queries file take effect without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: logLevel, Format: "text", Writer: os.Stderr})
			logger := logging.GetLogger("watch")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fsys := afero.NewOsFs()
			name, opts, err := flags.options(fsys)
			if err != nil {
				return err
			}
			// Fail on bad flags before the first poll.
			if err := opts.Validate(); err != nil {
				return err
			}

			bus := events.New()
			printer := &eventPrinter{w: cmd.OutOrStdout(), json: asJSON}
			for _, unsub := range printer.subscribe(bus) {
				defer unsub()
			}

			client := tasklist.NewClient(tasklist.WithExecutable(flags.executable))
			mon := monitor.New(client, bus, name, opts, monitor.WithInterval(interval))

			if flags.query != "" {
				watcher := config.NewConfigWatcher(flags.queriesFile,
					func(path string) (*config.QueriesFile, error) { return config.LoadQueries(fsys, path) },
					logger,
					config.WithDebounce[*config.QueriesFile](500*time.Millisecond),
				)
				watcher.OnReload(func(cfg *config.QueriesFile) {
					q, ok := cfg.Queries[name]
					if !ok {
						logger.Warn("Query removed from file, keeping previous options", "query", name)
						return
					}
					mon.SetQuery(name, q.Options)
				})
				if err := watcher.Start(ctx); err != nil {
					logger.Warn("Failed to watch queries file, hot-reload disabled", "error", err)
				} else {
					defer func() { _ = watcher.Stop() }()
				}
			}

			if err := mon.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return mon.Stop()
		},
	}

	flags.bind(cmd.Flags())
	cmd.Flags().DurationVarP(&interval, "interval", "i", 2*time.Second, "Poll interval")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print events as JSON lines")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level for diagnostics on stderr")

	return cmd
}

// eventPrinter writes monitor events to w. Events arrive on bus goroutines,
// so writes are serialized.
type eventPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	json bool
}

func (p *eventPrinter) subscribe(bus *events.Bus) []func() {
	return []func(){
		bus.Subscribe(func(e events.TaskStartedEvent) { p.print(e, "+", e.Task) }),
		bus.Subscribe(func(e events.TaskExitedEvent) { p.print(e, "-", e.Task) }),
		bus.Subscribe(func(e events.MonitorErrorEvent) {
			if p.json {
				p.encode(e)
				return
			}
			p.line("! %s %s\n", e.Timestamp, e.Error)
		}),
	}
}

func (p *eventPrinter) print(ev any, sign string, task models.TaskData) {
	if p.json {
		p.encode(ev)
		return
	}
	p.line("%s %6d %s\n", sign, task.PID, task.ImageName)
}

func (p *eventPrinter) encode(ev any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = json.NewEncoder(p.w).Encode(ev)
}

func (p *eventPrinter) line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}
