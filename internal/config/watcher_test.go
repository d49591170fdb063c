package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func loadQueriesFromDisk(path string) (*QueriesFile, error) {
	return LoadQueries(afero.NewOsFs(), path)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startWatcher(t *testing.T, path string, opts ...WatcherOption[*QueriesFile]) *Watcher[*QueriesFile] {
	t.Helper()
	opts = append([]WatcherOption[*QueriesFile]{WithDebounce[*QueriesFile](50 * time.Millisecond)}, opts...)
	w := NewConfigWatcher(path, loadQueriesFromDisk, newTestLogger(), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		cancel()
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cancel()
		if err := w.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	return w
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherReloadsQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.toml")
	writeFile(t, path, "[queries.all]\n")

	received := make(chan *QueriesFile, 4)
	w := startWatcher(t, path)
	w.OnReload(func(cfg *QueriesFile) { received <- cfg })

	writeFile(t, path, "[queries.svc]\nservices = true\n")

	select {
	case cfg := <-received:
		q, ok := cfg.Queries["svc"]
		if !ok || !q.Services {
			t.Errorf("reloaded queries = %+v, want svc with services", cfg.Queries)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestWatcherSeesFileCreatedLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.toml")

	received := make(chan *QueriesFile, 4)
	w := startWatcher(t, path)
	w.OnReload(func(cfg *QueriesFile) { received <- cfg })

	writeFile(t, path, "[queries.apps]\napps = true\n")

	select {
	case cfg := <-received:
		if _, ok := cfg.Queries["apps"]; !ok {
			t.Errorf("expected apps query, got %+v", cfg.Queries)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestWatcherDebounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.toml")
	writeFile(t, path, "")

	var calls atomic.Int32
	w := startWatcher(t, path, WithDebounce[*QueriesFile](200*time.Millisecond))
	w.OnReload(func(*QueriesFile) { calls.Add(1) })

	for range 5 {
		writeFile(t, path, "[queries.all]\n")
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(600 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("handler called %d times, want 1", got)
	}
}

func TestWatcherErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.toml")
	writeFile(t, path, "")

	errs := make(chan error, 4)
	var reloads atomic.Int32
	w := startWatcher(t, path, WithErrorHandler[*QueriesFile](func(err error) { errs <- err }))
	w.OnReload(func(*QueriesFile) { reloads.Add(1) })

	// Parses, but violates the verbose/services rule.
	writeFile(t, path, "[queries.bad]\nverbose = true\nservices = true\n")

	select {
	case err := <-errs:
		if err == nil {
			t.Error("expected non-nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error")
	}
	if reloads.Load() != 0 {
		t.Error("handlers must not run when loading fails")
	}
}

func TestWatcherUnsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.toml")
	writeFile(t, path, "")

	w := NewConfigWatcher(path, loadQueriesFromDisk, newTestLogger())

	var first, second atomic.Int32
	unsubscribe := w.OnReload(func(*QueriesFile) { first.Add(1) })
	w.OnReload(func(*QueriesFile) { second.Add(1) })

	w.Reload()
	unsubscribe()
	w.Reload()

	if first.Load() != 1 || second.Load() != 2 {
		t.Errorf("calls = %d/%d, want 1/2", first.Load(), second.Load())
	}
}

func TestWatcherStopWithoutStart(t *testing.T) {
	w := NewConfigWatcher("queries.toml", loadQueriesFromDisk, newTestLogger())
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
