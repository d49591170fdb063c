// Package process runs one-shot external commands.
//
// A Process describes an executable and its argument vector. It can be run
// two ways:
//
//   - Output waits for exit and returns the captured stdout
//   - Start returns a Running handle whose Stdout is consumed incrementally
//
// Stderr is always read in the background, logged through an optional
// LogParser and kept on the handle. Stop kills a running process and
// discards anything it writes afterwards.
//
// Example usage:
//
//	p := process.NewProcess("tasks", "tasklist.exe", []string{"/fo", "csv"}, logger)
//	r, err := p.Start(ctx)
//	if err != nil {
//	    return err
//	}
//	defer r.Stop()
//	io.Copy(os.Stdout, r.Stdout)
package process
