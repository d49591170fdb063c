//go:build !windows

package process

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// alive reports whether pid is running. Zombies count as dead.
func alive(pid int) bool {
	if err := syscall.Kill(pid, 0); err != nil {
		return false
	}
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}
	if i := bytes.LastIndexByte(stat, ')'); i >= 0 && i+2 < len(stat) {
		return stat[i+2] != 'Z'
	}
	return true
}

func TestCancelKillsProcessGroup(t *testing.T) {
	p := newShellProcess(t, `sleep 10 & echo $!; wait`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r, err := p.Start(ctx)
	require.NoError(t, err)

	line, err := bufio.NewReader(r.Stdout).ReadString('\n')
	require.NoError(t, err)
	child, err := strconv.Atoi(strings.TrimSpace(line))
	require.NoError(t, err)
	t.Cleanup(func() { _ = syscall.Kill(child, syscall.SIGKILL) })
	require.True(t, alive(child))

	cancel()
	waitFor(t, 2*time.Second, func() { r.Stop() })

	require.Eventually(t, func() bool { return !alive(child) }, 2*time.Second, 20*time.Millisecond,
		"background child %d survived cancellation", child)
}

func TestCancelAfterExitIsNotAnError(t *testing.T) {
	p := newShellProcess(t, `printf done`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r, err := p.Start(ctx)
	require.NoError(t, err)

	out, err := io.ReadAll(r.Stdout)
	require.NoError(t, err)
	require.Equal(t, "done", string(out))
	require.Equal(t, 0, r.Wait())

	// The group is gone; the cancel hook reports it as already done.
	require.ErrorIs(t, r.cmd.Cancel(), os.ErrProcessDone)
}
