package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/gotasklist/internal/tasklist"
	"github.com/stretchr/testify/require"
)

func TestMapTaskError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"config", tasklist.ErrVerboseConflict, http.StatusBadRequest},
		{"platform", tasklist.ErrUnsupportedPlatform, http.StatusNotImplemented},
		{"launch", &tasklist.LaunchError{Executable: "tasklist.exe", Err: errors.New("not found")}, http.StatusBadGateway},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"client gone", context.Canceled, statusClientClosedRequest},
		{"client gone wrapped", fmt.Errorf("list: %w", context.Canceled), statusClientClosedRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var se huma.StatusError
			require.ErrorAs(t, mapTaskError(tt.err), &se)
			require.Equal(t, tt.want, se.GetStatus())
		})
	}
}
