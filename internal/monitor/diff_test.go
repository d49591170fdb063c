package monitor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/smazurov/gotasklist/internal/tasklist"
)

func task(image string, pid int, mem int64) tasklist.Task {
	return tasklist.Task{
		Schema:      tasklist.SchemaDefault,
		ImageName:   image,
		PID:         pid,
		SessionName: "Console",
		MemUsage:    mem,
	}
}

func pids(tasks []tasklist.Task) []int {
	out := []int{}
	for _, t := range tasks {
		out = append(out, t.PID)
	}
	return out
}

func TestDiff(t *testing.T) {
	prev := []tasklist.Task{task("a.exe", 1, 0), task("b.exe", 2, 0), task("c.exe", 3, 0)}
	next := []tasklist.Task{task("a.exe", 1, 0), task("c.exe", 3, 0), task("d.exe", 4, 0), task("e.exe", 5, 0)}

	started, exited := Diff(prev, next)
	if diff := cmp.Diff([]int{4, 5}, pids(started)); diff != "" {
		t.Errorf("started mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2}, pids(exited)); diff != "" {
		t.Errorf("exited mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffReusedPID(t *testing.T) {
	prev := []tasklist.Task{task("old.exe", 10, 0)}
	next := []tasklist.Task{task("new.exe", 10, 0)}

	started, exited := Diff(prev, next)
	if len(started) != 1 || started[0].ImageName != "new.exe" {
		t.Errorf("started = %+v, want new.exe", started)
	}
	if len(exited) != 1 || exited[0].ImageName != "old.exe" {
		t.Errorf("exited = %+v, want old.exe", exited)
	}
}

func TestDiffUnchanged(t *testing.T) {
	tasks := []tasklist.Task{task("a.exe", 1, 100)}
	changed := []tasklist.Task{task("a.exe", 1, 900)}

	started, exited := Diff(tasks, changed)
	if started != nil || exited != nil {
		t.Errorf("Diff() = %v, %v; memory changes are not transitions", started, exited)
	}
}

func TestMemoryByImage(t *testing.T) {
	tasks := []tasklist.Task{
		task("svchost.exe", 1, 100),
		task("svchost.exe", 2, 50),
		task("explorer.exe", 3, 70),
	}

	want := map[string]int64{"svchost.exe": 150, "explorer.exe": 70}
	if diff := cmp.Diff(want, MemoryByImage(tasks)); diff != "" {
		t.Errorf("MemoryByImage() mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryByImageWithoutColumn(t *testing.T) {
	tasks := []tasklist.Task{{Schema: tasklist.SchemaServices, ImageName: "svchost.exe", PID: 1}}
	if got := MemoryByImage(tasks); got != nil {
		t.Errorf("MemoryByImage() = %v, want nil for services schema", got)
	}
	if got := MemoryByImage(nil); got != nil {
		t.Errorf("MemoryByImage(nil) = %v, want nil", got)
	}
}

func TestTopByMemory(t *testing.T) {
	usage := map[string]int64{"a.exe": 10, "b.exe": 30, "c.exe": 30, "d.exe": 5}

	tests := []struct {
		n    int
		want []string
	}{
		{n: 2, want: []string{"b.exe", "c.exe"}},
		{n: 3, want: []string{"b.exe", "c.exe", "a.exe"}},
		{n: 10, want: []string{"b.exe", "c.exe", "a.exe", "d.exe"}},
		{n: 0, want: []string{}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, TopByMemory(usage, tt.n)); diff != "" {
			t.Errorf("TopByMemory(%d) mismatch (-want +got):\n%s", tt.n, diff)
		}
	}
}
