// Package tasklist runs the Windows tasklist.exe command and parses its CSV
// output into Task values.
//
// Options select the listing mode (default, verbose, apps, modules or
// services), an optional remote system and any number of /fi filters. Each
// combination maps to one Schema, the ordered set of columns tasklist.exe
// prints for it. Invalid combinations are rejected with a *ConfigError
// before a process is started.
//
// A Client offers two ways to consume the same output:
//
//	tasks, err := client.List(ctx, tasklist.Options{Verbose: true})
//
//	stream, err := client.Stream(ctx, tasklist.Options{Services: true})
//	if err != nil {
//	    return err
//	}
//	for task, err := range stream.All() {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(task.ImageName, task.Services)
//	}
//
// When nothing matches, tasklist.exe prints an informational line instead
// of CSV. Both modes report that as zero tasks.
package tasklist
