package models

import (
	"time"

	"github.com/smazurov/gotasklist/internal/config"
	"github.com/smazurov/gotasklist/internal/tasklist"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.21.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"windows/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// TaskData is one process. Fields outside the schema of the query that
// produced it are omitted.
type TaskData struct {
	ImageName     string    `json:"imageName" example:"svchost.exe" doc:"Executable image name"`
	PID           int       `json:"pid" example:"1044" doc:"Process ID, -1 if tasklist printed a non-numeric value"`
	SessionName   *string   `json:"sessionName,omitempty" example:"Services" doc:"Session name"`
	SessionNumber *int      `json:"sessionNumber,omitempty" example:"0" doc:"Session number"`
	MemUsage      *int64    `json:"memUsage,omitempty" example:"25165824" doc:"Memory usage in bytes"`
	Status        *string   `json:"status,omitempty" example:"Running" doc:"Status (verbose only)"`
	Username      *string   `json:"username,omitempty" example:"NT AUTHORITY\\SYSTEM" doc:"Owner (verbose only)"`
	CPUTime       *int64    `json:"cpuTime,omitempty" example:"3723" doc:"Total CPU time in seconds (verbose only)"`
	WindowTitle   *string   `json:"windowTitle,omitempty" example:"N/A" doc:"Main window title (verbose only)"`
	PackageName   *string   `json:"packageName,omitempty" example:"Microsoft.WindowsCalculator" doc:"Store app package (apps only)"`
	Modules       *[]string `json:"modules,omitempty" doc:"Loaded modules (modules only)"`
	Services      *[]string `json:"services,omitempty" doc:"Hosted services (services only)"`
}

// NewTaskData copies the schema's columns of t.
func NewTaskData(t tasklist.Task) TaskData {
	d := TaskData{ImageName: t.ImageName, PID: t.PID}
	s := t.Schema

	if s.Has(tasklist.ColSessionName) {
		d.SessionName = &t.SessionName
		d.SessionNumber = &t.SessionNumber
	}
	if s.Has(tasklist.ColMemUsage) {
		d.MemUsage = &t.MemUsage
	}
	if s.Verbose() {
		cpu := int64(t.CPUTime / time.Second)
		d.Status = &t.Status
		d.Username = &t.Username
		d.CPUTime = &cpu
		d.WindowTitle = &t.WindowTitle
	}
	if s.Has(tasklist.ColPackageName) {
		d.PackageName = &t.PackageName
	}
	if s.Has(tasklist.ColModules) {
		modules := nonNil(t.Modules)
		d.Modules = &modules
	}
	if s.Has(tasklist.ColServices) {
		services := nonNil(t.Services)
		d.Services = &services
	}
	return d
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// TaskQuery holds the listing options accepted as query parameters. Remote
// systems are only reachable through saved queries.
type TaskQuery struct {
	Verbose       bool     `query:"verbose" doc:"Include status, user, CPU time and window title"`
	Apps          bool     `query:"apps" doc:"List Store apps"`
	Services      bool     `query:"services" doc:"List hosted services"`
	Modules       bool     `query:"modules" doc:"List loaded modules"`
	ModulePattern string   `query:"module_pattern" example:"ntdll.dll" doc:"Only modules matching this pattern (implies modules)"`
	Filters       []string `query:"filter" example:"IMAGENAME eq svchost.exe" doc:"tasklist /fi expressions"`
}

// Options converts the query parameters to tasklist options.
func (q TaskQuery) Options() tasklist.Options {
	opts := tasklist.Options{
		Verbose:  q.Verbose,
		Apps:     q.Apps,
		Services: q.Services,
		Filters:  q.Filters,
	}
	switch {
	case q.ModulePattern != "":
		opts.Modules = tasklist.ModulesMatching(q.ModulePattern)
	case q.Modules:
		opts.Modules = tasklist.AllModules()
	}
	return opts
}

type TaskListData struct {
	Schema string     `json:"schema" example:"services" doc:"Column layout of the tasks"`
	Count  int        `json:"count" example:"42" doc:"Number of tasks"`
	Tasks  []TaskData `json:"tasks" doc:"Tasks in tasklist output order"`
}

type TaskListResponse struct {
	Body TaskListData
}

// Saved query models
type QueryListData struct {
	Queries map[string]config.Query `json:"queries" doc:"Saved queries by name"`
	Count   int                     `json:"count" example:"3" doc:"Number of saved queries"`
}

type QueryListResponse struct {
	Body QueryListData
}

type QueryNameInput struct {
	Name string `path:"name" pattern:"^[a-zA-Z0-9_-]+$" maxLength:"64" example:"svchost" doc:"Query name"`
}

type QueryRequest struct {
	QueryNameInput
	Body config.Query
}

type QueryResponse struct {
	Body config.Query
}

type QueryTasksRequest struct {
	QueryNameInput
}

// Error response
type ErrorData struct {
	Status  string `json:"status" example:"error" doc:"Error status"`
	Message string `json:"message" example:"query not found" doc:"Error message"`
}

type ErrorResponse struct {
	Body ErrorData
}

// Monitor models
type MonitorStatusData struct {
	Query     string    `json:"query" example:"svchost" doc:"Saved query being polled"`
	Interval  string    `json:"interval" example:"5s" doc:"Poll interval"`
	Tracked   int       `json:"tracked" example:"12" doc:"Tasks in the last snapshot"`
	LastPoll  time.Time `json:"last_poll,omitempty" doc:"When the last snapshot was taken"`
	LastError string    `json:"last_error,omitempty" doc:"Error from the last poll, if any"`
}

type MonitorStatusResponse struct {
	Body MonitorStatusData
}

type MonitorQueryRequest struct {
	Body struct {
		Query string `json:"query" pattern:"^[a-zA-Z0-9_-]+$" maxLength:"64" example:"svchost" doc:"Saved query to poll"`
	}
}

// TaskStreamDoneData ends a task stream.
type TaskStreamDoneData struct {
	Schema string `json:"schema" example:"default" doc:"Column layout of the streamed tasks"`
	Count  int    `json:"count" example:"87" doc:"Number of tasks sent"`
}

// TaskStreamErrorData is sent instead of done when the stream fails.
type TaskStreamErrorData struct {
	Error string `json:"error" example:"tasklist: parse line 3: wrong number of fields" doc:"Error description"`
	Count int    `json:"count" example:"2" doc:"Number of tasks sent before the failure"`
}

// Memory models
type ImageMemoryData struct {
	Query  string           `json:"query" example:"all" doc:"Monitored query"`
	Images map[string]int64 `json:"images" doc:"Summed memory usage in bytes per image name"`
}

type ImageMemoryResponse struct {
	Body ImageMemoryData
}
