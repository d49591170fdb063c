package main

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/gotasklist/cmd"
	"github.com/smazurov/gotasklist/internal/api"
	"github.com/smazurov/gotasklist/internal/config"
	"github.com/smazurov/gotasklist/internal/events"
	"github.com/smazurov/gotasklist/internal/logging"
	"github.com/smazurov/gotasklist/internal/metrics"
	"github.com/smazurov/gotasklist/internal/monitor"
	"github.com/smazurov/gotasklist/internal/systemd"
	"github.com/smazurov/gotasklist/internal/tasklist"
	"github.com/smazurov/gotasklist/internal/version"
	"github.com/spf13/afero"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port       string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CorsOrigin string `help:"Allowed CORS origin" default:"*" toml:"server.cors_origin" env:"SERVER_CORS_ORIGIN"`

	// Tasklist settings
	TasklistExecutable string `help:"Path to tasklist.exe" default:"tasklist.exe" toml:"tasklist.executable" env:"TASKLIST_EXECUTABLE"`
	QueriesFile        string `help:"Saved queries file" default:"queries.toml" toml:"queries.file" env:"QUERIES_FILE"`

	// Monitor settings
	MonitorEnabled   bool   `help:"Poll a query and publish task start/exit events" default:"true" toml:"monitor.enabled" env:"MONITOR_ENABLED"`
	MonitorQuery     string `help:"Saved query to poll, empty polls all local tasks" default:"" toml:"monitor.query" env:"MONITOR_QUERY"`
	MonitorInterval  string `help:"Poll interval" default:"5s" toml:"monitor.interval" env:"MONITOR_INTERVAL"`
	MonitorMaxImages int    `help:"Max image names with a memory gauge" default:"50" toml:"monitor.max_images" env:"MONITOR_MAX_IMAGES"`

	// Metrics settings
	MetricsPrometheusEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS_ENABLED"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingTasklist string `help:"tasklist invocation logging level" default:"info" toml:"logging.tasklist" env:"LOGGING_TASKLIST"`
	LoggingMonitor  string `help:"Monitor logging level" default:"info" toml:"logging.monitor" env:"LOGGING_MONITOR"`
	LoggingConfig   string `help:"Config watcher logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func main() {
	newCLI().Run()
}

// newCLI builds the root command: the API server as default action plus
// the list and watch subcommands.
func newCLI() humacli.CLI {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		fsys := afero.NewOsFs()

		if loadErr := config.LoadConfig(fsys, opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// [logging] may name modules that have no option of their own.
		modules := config.LoadLoggingConfig(fsys, opts.Config).Modules
		maps.Copy(modules, map[string]string{
			"tasklist": opts.LoggingTasklist,
			"monitor":  opts.LoggingMonitor,
			"config":   opts.LoggingConfig,
			"api":      opts.LoggingAPI,
		})
		logging.Initialize(logging.Config{
			Level:   opts.LoggingLevel,
			Format:  opts.LoggingFormat,
			Modules: modules,
		})
		logger := logging.GetLogger("main")
		logger.Info("gotasklist", "version", version.Get().Long())

		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(api.LogEntryEvent(entry))
		})

		client := tasklist.NewClient(
			tasklist.WithExecutable(opts.TasklistExecutable),
			tasklist.WithObserver(metrics.NewObserver()),
		)

		queries := config.NewQueryStore(fsys, opts.QueriesFile)
		if loadErr := queries.Load(); loadErr != nil {
			logger.Warn("Failed to load saved queries", "file", opts.QueriesFile, "error", loadErr)
		}

		var mon *monitor.Monitor
		if opts.MonitorEnabled {
			interval, err := time.ParseDuration(opts.MonitorInterval)
			if err != nil {
				logger.Warn("Invalid monitor interval, using 5s", "interval", opts.MonitorInterval)
				interval = 5 * time.Second
			}

			name, monOpts := "all", tasklist.Options{}
			if opts.MonitorQuery != "" {
				if q, ok := queries.Get(opts.MonitorQuery); ok {
					name, monOpts = opts.MonitorQuery, q.Options
				} else {
					logger.Warn("Monitor query not found, polling all tasks", "query", opts.MonitorQuery)
				}
			}

			mon = monitor.New(client, eventBus, name, monOpts,
				monitor.WithInterval(interval),
				monitor.WithMaxImages(opts.MonitorMaxImages),
			)
		}

		watcher := config.NewConfigWatcher(
			opts.QueriesFile,
			func(path string) (*config.QueriesFile, error) { return config.LoadQueries(fsys, path) },
			logging.GetLogger("config"),
			config.WithDebounce[*config.QueriesFile](time.Second),
		)
		watcher.OnReload(func(cfg *config.QueriesFile) {
			queries.Replace(cfg)
			eventBus.Publish(events.QueriesReloadedEvent{
				Names:     queries.Names(),
				Timestamp: time.Now().Format(time.RFC3339),
			})
			if mon == nil {
				return
			}
			current := mon.Status().Query
			if q, ok := cfg.Queries[current]; ok {
				mon.SetQuery(current, q.Options)
			}
		})

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			CORSOrigin:   opts.CorsOrigin,
			Client:       client,
			Queries:      queries,
			EventBus:     eventBus,
		}
		// A nil *monitor.Monitor must not become a non-nil interface.
		if mon != nil {
			apiOpts.Monitor = mon
		}
		if opts.MetricsPrometheusEnabled {
			apiOpts.PrometheusHandler = metrics.Handler()
		}

		server := api.NewServer(apiOpts)
		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))

		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			if startErr := watcher.Start(ctx); startErr != nil {
				logger.Warn("Failed to watch queries file, hot-reload disabled", "error", startErr)
			}
			if mon != nil {
				if startErr := mon.Start(ctx); startErr != nil {
					logger.Warn("Failed to start monitor", "error", startErr)
				}
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			ln, listenErr := net.Listen("tcp", opts.Port)
			if listenErr != nil {
				logger.Error("Failed to start HTTP server", "error", listenErr)
				os.Exit(1)
			}

			notifier.Ready()
			go notifier.Watchdog(ctx)

			if serveErr := server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				logger.Error("HTTP server failed", "error", serveErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			cancel()
			if mon != nil {
				_ = mon.Stop()
			}
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Error("Error stopping queries watcher", "error", stopErr)
			}
			logging.SetLogCallback(nil)
		})
	})

	cli.Root().Use = "gotasklist"
	cli.Root().Short = "Windows process listing over HTTP and the command line"
	cli.Root().Version = version.Get().Long()

	cli.Root().AddCommand(cmd.CreateListCmd())
	cli.Root().AddCommand(cmd.CreateWatchCmd())

	return cli
}
