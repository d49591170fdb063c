package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/gotasklist/internal/api/models"
	"github.com/smazurov/gotasklist/internal/config"
	"github.com/smazurov/gotasklist/internal/tasklist"
)

// registerQueryRoutes registers saved query CRUD and execution.
func (s *Server) registerQueryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-queries",
		Method:      http.MethodGet,
		Path:        "/api/queries",
		Summary:     "List Queries",
		Description: "Get every saved query. Remote passwords are never returned.",
		Tags:        []string{"queries"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.QueryListResponse, error) {
		queries := s.queries.All()
		return &models.QueryListResponse{
			Body: models.QueryListData{
				Queries: queries,
				Count:   len(queries),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-query",
		Method:      http.MethodGet,
		Path:        "/api/queries/{name}",
		Summary:     "Get Query",
		Description: "Get one saved query",
		Tags:        []string{"queries"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.QueryNameInput) (*models.QueryResponse, error) {
		q, err := s.getQuery(input.Name)
		if err != nil {
			return nil, err
		}
		return &models.QueryResponse{Body: q}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "put-query",
		Method:      http.MethodPut,
		Path:        "/api/queries/{name}",
		Summary:     "Save Query",
		Description: "Create or replace a saved query. Remote credentials can only be set in the queries file.",
		Tags:        []string{"queries"},
		Errors:      []int{400, 401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.QueryRequest) (*models.QueryResponse, error) {
		if err := s.queries.Put(input.Name, input.Body); err != nil {
			var configErr *tasklist.ConfigError
			if errors.As(err, &configErr) {
				return nil, huma.Error400BadRequest(configErr.Error(), err)
			}
			return nil, huma.Error500InternalServerError("failed to save query", err)
		}
		s.logger.Info("Query saved", "name", input.Name)
		return &models.QueryResponse{Body: input.Body}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-query",
		Method:        http.MethodDelete,
		Path:          "/api/queries/{name}",
		Summary:       "Delete Query",
		Description:   "Delete a saved query",
		Tags:          []string{"queries"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404, 500},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.QueryNameInput) (*struct{}, error) {
		if err := s.queries.Remove(input.Name); err != nil {
			if errors.Is(err, config.ErrQueryNotFound) {
				return nil, huma.Error404NotFound("query not found", err)
			}
			return nil, huma.Error500InternalServerError("failed to delete query", err)
		}
		s.logger.Info("Query deleted", "name", input.Name)
		return nil, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "run-query",
		Method:      http.MethodGet,
		Path:        "/api/queries/{name}/tasks",
		Summary:     "Run Query",
		Description: "Run a saved query, which may target a remote system",
		Tags:        []string{"queries", "tasks"},
		Errors:      []int{400, 401, 404, 500, 501, 502, 504},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.QueryTasksRequest) (*models.TaskListResponse, error) {
		q, err := s.getQuery(input.Name)
		if err != nil {
			return nil, err
		}
		return s.listTasks(ctx, q.Options)
	})
}

func (s *Server) getQuery(name string) (config.Query, error) {
	q, ok := s.queries.Get(name)
	if !ok {
		return config.Query{}, huma.Error404NotFound("query not found")
	}
	return q, nil
}
