// Package logging configures slog with a level per module.
//
// The service calls Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{"tasklist": "debug", "api": "warn"},
//	})
//
// and packages take a cached logger by module name:
//
//	logger := logging.GetLogger("monitor")
//	logger.Info("Starting task monitor", "interval", interval)
//
// Modules used by gotasklist are tasklist, monitor, config, api, systemd,
// watch and main. A module without an override uses the global level.
//
// Every record goes to a ring buffer that backs /api/logs/stream. Without
// Config.Writer, records also go to stdout when it is open and to journald
// when it is running:
//
//	journalctl -t gotasklist MODULE=tasklist -f
//
// The list and watch commands set Config.Writer to stderr and skip the
// journal.
package logging
