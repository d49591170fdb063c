package monitor

import (
	"cmp"
	"slices"

	"github.com/smazurov/gotasklist/internal/tasklist"
)

// taskKey identifies a process across snapshots. PIDs are reused by
// Windows, so the image name is part of the identity.
type taskKey struct {
	PID   int
	Image string
}

func keyOf(t tasklist.Task) taskKey {
	return taskKey{PID: t.PID, Image: t.ImageName}
}

// Diff returns the tasks present only in next (started) and only in prev
// (exited), each in their snapshot's order.
func Diff(prev, next []tasklist.Task) (started, exited []tasklist.Task) {
	prevKeys := make(map[taskKey]struct{}, len(prev))
	for _, t := range prev {
		prevKeys[keyOf(t)] = struct{}{}
	}
	nextKeys := make(map[taskKey]struct{}, len(next))
	for _, t := range next {
		nextKeys[keyOf(t)] = struct{}{}
	}

	for _, t := range next {
		if _, ok := prevKeys[keyOf(t)]; !ok {
			started = append(started, t)
		}
	}
	for _, t := range prev {
		if _, ok := nextKeys[keyOf(t)]; !ok {
			exited = append(exited, t)
		}
	}
	return started, exited
}

// MemoryByImage sums memory usage per image name. Schemas without a
// memUsage column yield nil.
func MemoryByImage(tasks []tasklist.Task) map[string]int64 {
	if len(tasks) == 0 || !tasks[0].Schema.Has(tasklist.ColMemUsage) {
		return nil
	}
	usage := make(map[string]int64)
	for _, t := range tasks {
		usage[t.ImageName] += t.MemUsage
	}
	return usage
}

// TopByMemory returns up to n image names with the highest usage.
func TopByMemory(usage map[string]int64, n int) []string {
	images := make([]string, 0, len(usage))
	for image := range usage {
		images = append(images, image)
	}
	slices.SortFunc(images, func(a, b string) int {
		if c := cmp.Compare(usage[b], usage[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if n = max(n, 0); len(images) > n {
		images = images[:n]
	}
	return images
}
