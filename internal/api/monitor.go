package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/gotasklist/internal/api/models"
)

func (s *Server) registerMonitorRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-monitor",
		Method:      http.MethodGet,
		Path:        "/api/monitor",
		Summary:     "Monitor Status",
		Description: "Get the query being polled and the result of the last poll",
		Tags:        []string{"monitor"},
		Errors:      []int{401, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.MonitorStatusResponse, error) {
		if s.monitor == nil {
			return nil, huma.Error503ServiceUnavailable("monitor is disabled")
		}
		return &models.MonitorStatusResponse{Body: s.monitorStatus()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-monitor-query",
		Method:      http.MethodPut,
		Path:        "/api/monitor",
		Summary:     "Set Monitor Query",
		Description: "Poll a different saved query. The next poll becomes the new baseline.",
		Tags:        []string{"monitor"},
		Errors:      []int{400, 401, 404, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.MonitorQueryRequest) (*models.MonitorStatusResponse, error) {
		if s.monitor == nil {
			return nil, huma.Error503ServiceUnavailable("monitor is disabled")
		}
		q, err := s.getQuery(input.Body.Query)
		if err != nil {
			return nil, err
		}
		s.monitor.SetQuery(input.Body.Query, q.Options)
		return &models.MonitorStatusResponse{Body: s.monitorStatus()}, nil
	})
}

func (s *Server) monitorStatus() models.MonitorStatusData {
	st := s.monitor.Status()
	return models.MonitorStatusData{
		Query:     st.Query,
		Interval:  st.Interval.String(),
		Tracked:   st.Tracked,
		LastPoll:  st.LastPoll,
		LastError: st.LastError,
	}
}
