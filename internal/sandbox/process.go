package sandbox

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// processGroup owns the process group of one script run. The child is
// started as the group leader, so killing the group reaches every
// descendant the script spawned.
type processGroup struct {
	cmd *exec.Cmd
}

// newProcessGroup makes cmd the leader of a fresh process group once
// started and kills that group when the command's context is done.
func newProcessGroup(cmd *exec.Cmd) *processGroup {
	g := &processGroup{cmd: cmd}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = g.terminate
	return g
}

// terminate sends SIGKILL to the whole group. Calling it again, or after
// the group is gone, is a no-op.
func (g *processGroup) terminate() error {
	if g.cmd.Process == nil {
		return nil
	}
	err := unix.Kill(-g.cmd.Process.Pid, unix.SIGKILL)
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}

// exitCode reports the status of a finished process. Death by signal is
// reported as the negative signal number.
func exitCode(state *os.ProcessState) int {
	code := state.ExitCode()
	if code != -1 {
		return code
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return code
}
