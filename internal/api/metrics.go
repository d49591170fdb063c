package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/gotasklist/internal/api/models"
	"github.com/smazurov/gotasklist/internal/metrics"
)

// registerMetricsRoutes exposes the monitor's per-image memory gauges as JSON.
func (s *Server) registerMetricsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-image-memory",
		Method:      http.MethodGet,
		Path:        "/api/metrics/memory",
		Summary:     "Memory By Image",
		Description: "Summed memory usage per image name from the last monitor poll",
		Tags:        []string{"metrics"},
		Errors:      []int{401, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.ImageMemoryResponse, error) {
		if s.monitor == nil {
			return nil, huma.Error503ServiceUnavailable("monitor is disabled")
		}
		query := s.monitor.Status().Query
		images := metrics.GetImageMemory(query)
		if images == nil {
			images = map[string]int64{}
		}
		return &models.ImageMemoryResponse{
			Body: models.ImageMemoryData{Query: query, Images: images},
		}, nil
	})
}
