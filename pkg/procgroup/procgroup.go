// Package procgroup starts helper processes in their own process group so the
// whole tree can be torn down when a session stops.
package procgroup

import (
	"os/exec"
	"time"
)

// Prepare configures cmd to start in a new process group and to have the
// group killed when the command's context is cancelled. Output pipes are
// abandoned after grace so Wait cannot hang on a grandchild holding them.
func Prepare(cmd *exec.Cmd, grace time.Duration) {
	set(cmd)
	cmd.Cancel = func() error {
		return kill(cmd)
	}
	cmd.WaitDelay = grace
}
