package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smazurov/gotasklist/internal/tasklist"
)

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ResultOK},
		{tasklist.ErrVerboseConflict, ResultConfig},
		{fmt.Errorf("query x: %w", tasklist.ErrIncompleteRemote), ResultConfig},
		{tasklist.ErrUnsupportedPlatform, ResultUnsupported},
		{&tasklist.LaunchError{Executable: "tasklist.exe", Err: errors.New("not found")}, ResultLaunch},
		{&tasklist.ParseError{Line: 3, Err: errors.New("wrong number of fields")}, ResultParse},
		{context.DeadlineExceeded, ResultCanceled},
		{errors.New("other"), ResultError},
	}
	for _, tt := range tests {
		if got := Result(tt.err); got != tt.want {
			t.Errorf("Result(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestObserveInvocation(t *testing.T) {
	o := NewObserver()
	ok := invocationsTotal.WithLabelValues("list", "services", ResultOK)
	before := testutil.ToFloat64(ok)

	o.ObserveInvocation(tasklist.ModeList, tasklist.SchemaServices, 12, 150*time.Millisecond, nil)

	if got := testutil.ToFloat64(ok) - before; got != 1 {
		t.Errorf("ok invocations delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(lastTaskCount.WithLabelValues("services")); got != 12 {
		t.Errorf("last_task_count = %v, want 12", got)
	}

	o.ObserveInvocation(tasklist.ModeStream, tasklist.SchemaServices, 0, 0, tasklist.ErrModulesServicesConflict)
	if got := testutil.ToFloat64(invocationsTotal.WithLabelValues("stream", "services", ResultConfig)); got < 1 {
		t.Errorf("config error invocations = %v, want >= 1", got)
	}
	if got := testutil.ToFloat64(lastTaskCount.WithLabelValues("services")); got != 12 {
		t.Errorf("failed invocation must not reset last_task_count, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	NewObserver().ObserveInvocation(tasklist.ModeList, tasklist.SchemaDefault, 3, time.Second, nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "gotasklist_tasklist_invocations_total") {
		t.Error("metrics output missing invocations counter")
	}
}
