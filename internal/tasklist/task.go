package tasklist

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// notApplicable is what tasklist.exe prints for empty module and service
// lists on English systems.
const notApplicable = "N/A"

// Task is one normalized row. Only the fields belonging to Schema are
// meaningful; Fields and MarshalJSON expose exactly those.
type Task struct {
	Schema Schema

	ImageName     string
	PID           int
	SessionName   string
	SessionNumber int
	// MemUsage is in bytes.
	MemUsage    int64
	Status      string
	Username    string
	CPUTime     time.Duration
	WindowTitle string
	PackageName string
	Modules     []string
	Services    []string
}

// Row is a raw CSV record keyed by column name.
type Row map[string]string

// Fields returns the task as a column-keyed map holding only the schema's
// columns. cpuTime is reported in whole seconds.
func (t Task) Fields() map[string]any {
	cols := t.Schema.Columns()
	out := make(map[string]any, len(cols))
	for _, col := range cols {
		switch col {
		case ColImageName:
			out[col] = t.ImageName
		case ColPID:
			out[col] = t.PID
		case ColSessionName:
			out[col] = t.SessionName
		case ColSessionNumber:
			out[col] = t.SessionNumber
		case ColMemUsage:
			out[col] = t.MemUsage
		case ColStatus:
			out[col] = t.Status
		case ColUsername:
			out[col] = t.Username
		case ColCPUTime:
			out[col] = int64(t.CPUTime / time.Second)
		case ColWindowTitle:
			out[col] = t.WindowTitle
		case ColPackageName:
			out[col] = t.PackageName
		case ColModules:
			out[col] = nonNil(t.Modules)
		case ColServices:
			out[col] = nonNil(t.Services)
		}
	}
	return out
}

// MarshalJSON encodes the schema's columns only.
func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Fields())
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Normalize converts a raw row into a Task. It never fails: malformed
// numbers are coerced the way tasklist.exe's own output is trusted.
func (s Schema) Normalize(row Row) Task {
	t := Task{
		Schema:    s,
		ImageName: row[ColImageName],
		PID:       parseInt(row[ColPID]),
	}

	switch s {
	case SchemaDefault:
		t.SessionName = row[ColSessionName]
		t.SessionNumber = parseInt(row[ColSessionNumber])
		t.MemUsage = parseMemUsage(row[ColMemUsage])
	case SchemaDefaultVerbose, SchemaAppsVerbose:
		t.SessionName = row[ColSessionName]
		t.SessionNumber = parseInt(row[ColSessionNumber])
		t.MemUsage = parseMemUsage(row[ColMemUsage])
		t.Status = row[ColStatus]
		t.Username = row[ColUsername]
		t.CPUTime = parseCPUTime(row[ColCPUTime])
		t.WindowTitle = row[ColWindowTitle]
		if s == SchemaAppsVerbose {
			t.PackageName = row[ColPackageName]
		}
	case SchemaApps:
		t.MemUsage = parseMemUsage(row[ColMemUsage])
		t.PackageName = row[ColPackageName]
	case SchemaModules:
		t.Modules = splitList(row[ColModules])
	case SchemaServices:
		t.Services = splitList(row[ColServices])
	}

	return t
}

// parseInt returns -1 when the value is not an integer.
func parseInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return -1
	}
	return n
}

// parseMemUsage keeps the digits of values like "12,345 K" and scales
// kilobytes to bytes.
func parseMemUsage(raw string) int64 {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return 0
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return n * 1024
}

// parseCPUTime reads "H:MM:SS" (any number of colon separated parts, most
// significant first). Non-numeric parts count as zero.
func parseCPUTime(raw string) time.Duration {
	var seconds int64
	for _, part := range strings.Split(strings.TrimSpace(raw), ":") {
		n, err := strconv.ParseInt(strings.TrimFunc(part, unicode.IsSpace), 10, 64)
		if err != nil {
			n = 0
		}
		seconds = seconds*60 + n
	}
	return time.Duration(seconds) * time.Second
}

// splitList returns an empty list for N/A and for an empty cell, never a
// list holding one empty name.
func splitList(raw string) []string {
	if raw == "" || raw == notApplicable {
		return []string{}
	}
	return strings.Split(raw, ",")
}
