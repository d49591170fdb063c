//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

// tasklist.exe is a console program; keep it from flashing a window when the
// parent has none. Cancellation uses the default Process.Kill.
func configureCmd(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
}
