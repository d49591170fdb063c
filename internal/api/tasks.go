package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/gotasklist/internal/api/models"
	"github.com/smazurov/gotasklist/internal/tasklist"
)

func (s *Server) registerTaskRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/api/tasks",
		Summary:     "List Tasks",
		Description: "Run tasklist on the local machine and return every matching task",
		Tags:        []string{"tasks"},
		Errors:      []int{400, 401, 500, 501, 502, 504},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.TaskQuery) (*models.TaskListResponse, error) {
		return s.listTasks(ctx, input.Options())
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "stream-tasks",
		Method:      http.MethodGet,
		Path:        "/api/tasks/stream",
		Summary:     "Stream Tasks",
		Description: "Run tasklist and send each task as soon as its line is parsed. Ends with a done or error event.",
		Tags:        []string{"tasks"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"task":  models.TaskData{},
		"done":  models.TaskStreamDoneData{},
		"error": models.TaskStreamErrorData{},
	}, func(ctx context.Context, input *models.TaskQuery, send sse.Sender) {
		s.streamTasks(ctx, input.Options(), send)
	})
}

func (s *Server) listTasks(ctx context.Context, opts tasklist.Options) (*models.TaskListResponse, error) {
	tasks, err := s.client.List(ctx, opts)
	if err != nil {
		return nil, mapTaskError(err)
	}

	data := make([]models.TaskData, len(tasks))
	for i, t := range tasks {
		data[i] = models.NewTaskData(t)
	}

	schema := tasklist.SchemaDefault
	if len(tasks) > 0 {
		schema = tasks[0].Schema
	} else if plan, err := s.client.Plan(opts); err == nil {
		schema = plan.Schema
	}

	return &models.TaskListResponse{
		Body: models.TaskListData{
			Schema: schema.String(),
			Count:  len(data),
			Tasks:  data,
		},
	}, nil
}

func (s *Server) streamTasks(ctx context.Context, opts tasklist.Options, send sse.Sender) {
	stream, err := s.client.Stream(ctx, opts)
	if err != nil {
		_ = send(sse.Message{Data: models.TaskStreamErrorData{Error: err.Error()}})
		return
	}
	defer stream.Close()

	count := 0
	for task, err := range stream.All() {
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("Task stream failed", "error", err, "sent", count)
				_ = send(sse.Message{Data: models.TaskStreamErrorData{Error: err.Error(), Count: count}})
			}
			return
		}
		if err := send.Data(models.NewTaskData(task)); err != nil {
			return
		}
		count++
	}

	_ = send.Data(models.TaskStreamDoneData{Schema: stream.Schema().String(), Count: count})
}

// statusClientClosedRequest marks requests whose client went away before
// tasklist finished. Nobody reads the response; the status keeps the request
// log below error level.
const statusClientClosedRequest = 499

// mapTaskError converts tasklist errors to HTTP errors.
func mapTaskError(err error) error {
	var configErr *tasklist.ConfigError
	var launchErr *tasklist.LaunchError
	var parseErr *tasklist.ParseError

	switch {
	case errors.As(err, &configErr):
		return huma.Error400BadRequest(configErr.Error(), err)
	case errors.Is(err, tasklist.ErrUnsupportedPlatform):
		return huma.Error501NotImplemented("tasklist is only available on Windows", err)
	case errors.As(err, &launchErr):
		return huma.Error502BadGateway("failed to run tasklist", err)
	case errors.As(err, &parseErr):
		return huma.Error502BadGateway("unexpected tasklist output", err)
	case errors.Is(err, context.Canceled):
		return huma.NewError(statusClientClosedRequest, "client closed request", err)
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout("tasklist timed out", err)
	default:
		return huma.Error500InternalServerError("internal server error", err)
	}
}
