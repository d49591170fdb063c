package tasklist

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
)

const defaultOutput = `"System Idle Process","0","Services","0","8 K"
"System","4","Services","0","1,224 K"
"svchost.exe","1000","Services","0","24,576 K"
`

func TestParserNext(t *testing.T) {
	p := NewParser(strings.NewReader(defaultOutput), SchemaDefault)

	row, err := p.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	want := Row{
		ColImageName:     "System Idle Process",
		ColPID:           "0",
		ColSessionName:   "Services",
		ColSessionNumber: "0",
		ColMemUsage:      "8 K",
	}
	if diff := cmp.Diff(want, row); diff != "" {
		t.Errorf("Next() mismatch (-want +got):\n%s", diff)
	}

	for range 2 {
		if _, err := p.Next(); err != nil {
			t.Fatalf("Next() error = %v", err)
		}
	}
	if _, err := p.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() at end = %v, want io.EOF", err)
	}
}

func TestParserQuoting(t *testing.T) {
	input := `"svchost.exe","1234","Dhcp,EventLog,""quoted"" svc"` + "\r\n"

	tasks, err := ParseAll(strings.NewReader(input), SchemaServices)
	if err != nil {
		t.Fatalf("ParseAll() error = %v", err)
	}
	want := []string{"Dhcp", "EventLog", `"quoted" svc`}
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	if diff := cmp.Diff(want, tasks[0].Services); diff != "" {
		t.Errorf("Services mismatch (-want +got):\n%s", diff)
	}
}

func TestParserFieldCountMismatch(t *testing.T) {
	input := `"a.exe","1","Console","1","10 K"
"b.exe","2","Console"
`
	p := NewParser(strings.NewReader(input), SchemaDefault)
	if _, err := p.Next(); err != nil {
		t.Fatalf("first row error = %v", err)
	}

	_, err := p.Next()
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Next() error = %v, want *ParseError", err)
	}
	if parseErr.Line != 2 {
		t.Errorf("Line = %d, want 2", parseErr.Line)
	}
}

func TestParseAllEmpty(t *testing.T) {
	tasks, err := ParseAll(strings.NewReader(""), SchemaDefault)
	if err != nil {
		t.Fatalf("ParseAll() error = %v", err)
	}
	if tasks == nil || len(tasks) != 0 {
		t.Errorf("ParseAll() = %#v, want empty non-nil slice", tasks)
	}
}

// Rows split across arbitrary read boundaries must parse the same as a
// single buffer.
func TestParserIncrementalReads(t *testing.T) {
	whole, err := ParseAll(strings.NewReader(defaultOutput), SchemaDefault)
	if err != nil {
		t.Fatalf("ParseAll() error = %v", err)
	}

	chunked, err := ParseAll(iotest.OneByteReader(strings.NewReader(defaultOutput)), SchemaDefault)
	if err != nil {
		t.Fatalf("ParseAll(one byte) error = %v", err)
	}

	if diff := cmp.Diff(whole, chunked); diff != "" {
		t.Errorf("chunked parse mismatch (-whole +chunked):\n%s", diff)
	}
	if len(whole) != 3 {
		t.Errorf("got %d tasks, want 3", len(whole))
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"ERROR: The RPC server is unavailable.", "error", "The RPC server is unavailable."},
		{"WARNING: User credentials cannot be used for local connections", "warning", "User credentials cannot be used for local connections"},
		{"INFO: No tasks are running which match the specified criteria.", "info", "No tasks are running which match the specified criteria."},
		{"Invalid argument/option - '/x'.", "info", "Invalid argument/option - '/x'."},
		{"Type \"TASKLIST /?\" for usage.", "info", "Type \"TASKLIST /?\" for usage."},
	}
	for _, tt := range tests {
		level, msg := ParseLogLevel(tt.line)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("ParseLogLevel(%q) = (%q, %q), want (%q, %q)", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}
