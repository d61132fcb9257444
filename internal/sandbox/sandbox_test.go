package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunCompletes(t *testing.T) {
	r := NewRunner()

	out := r.Run(context.Background(), "bash", writeScript(t, "echo hello\n"), 5*time.Second)
	require.True(t, out.Started())
	assert.Equal(t, "hello\n", out.Stdout)
	assert.Empty(t, out.Stderr)
	require.NotNil(t, out.ExitCode)
	assert.Equal(t, 0, *out.ExitCode)
	assert.False(t, out.TimedOut)
}

func TestRunNonzeroExitIsNotAnError(t *testing.T) {
	r := NewRunner()

	out := r.Run(context.Background(), "sh", writeScript(t, "echo oops >&2\nexit 3\n"), 5*time.Second)
	require.True(t, out.Started())
	require.NotNil(t, out.ExitCode)
	assert.Equal(t, 3, *out.ExitCode)
	assert.Equal(t, "oops\n", out.Stderr)
	assert.False(t, out.TimedOut)
}

func TestRunTimeoutKeepsPartialOutput(t *testing.T) {
	r := NewRunner()

	start := time.Now()
	out := r.Run(context.Background(), "bash", writeScript(t, "echo partial\nsleep 30\necho never\n"), 300*time.Millisecond)

	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, out.TimedOut)
	assert.Nil(t, out.ExitCode)
	assert.Equal(t, "partial\n", out.Stdout)
}

func TestRunTimeoutKillsDescendants(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "child.pid")
	script := writeScript(t, "sleep 30 &\necho $! > "+pidFile+"\nwait\n")

	out := NewRunner().Run(context.Background(), "bash", script, 500*time.Millisecond)
	require.True(t, out.TimedOut)

	raw, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return !alive(pid) }, 5*time.Second, 50*time.Millisecond)
}

// alive reports whether pid is a running, non-zombie process.
func alive(pid int) bool {
	stat, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return false
	}
	fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))
	return len(fields) > 0 && fields[0] != "Z" && fields[0] != "X"
}

func TestRunUnknownExecutor(t *testing.T) {
	out := NewRunner().Run(context.Background(), "cobol", "/nonexistent", time.Second)

	assert.False(t, out.Started())
	require.NotNil(t, out.ExitCode)
	assert.Equal(t, UnsupportedExitCode, *out.ExitCode)
	assert.Contains(t, out.Stderr, "unsupported executor: cobol")
	assert.Contains(t, out.Stderr, "bash")
	assert.False(t, out.TimedOut)

	var unknown *UnknownExecutorError
	require.True(t, errors.As(out.Err, &unknown))
	assert.Equal(t, "cobol", unknown.ID)
}

func TestRunMissingBinary(t *testing.T) {
	r := NewRunner(WithTemplates(map[Executor]Template{
		"ghost": {"mkbi-no-such-interpreter"},
	}))

	out := r.Run(context.Background(), "ghost", writeScript(t, "true\n"), time.Second)
	assert.False(t, out.Started())
	assert.Equal(t, UnsupportedExitCode, *out.ExitCode)
	assert.Contains(t, out.Stderr, "failed to start mkbi-no-such-interpreter")
}

func TestRunCustomTemplate(t *testing.T) {
	r := NewRunner(WithTemplates(map[Executor]Template{
		"strict": {"sh", "-e"},
	}))

	out := r.Run(context.Background(), "strict", writeScript(t, "false\necho unreachable\n"), 5*time.Second)
	require.NotNil(t, out.ExitCode)
	assert.Equal(t, 1, *out.ExitCode)
	assert.Empty(t, out.Stdout)
}

func TestRunReplacesInvalidUTF8(t *testing.T) {
	out := NewRunner().Run(context.Background(), "bash", writeScript(t, `printf 'a\xffb'`), 5*time.Second)
	assert.Equal(t, "a\uFFFDb", out.Stdout)
}

func TestRunBackgroundedPipeHolderDoesNotBlock(t *testing.T) {
	r := NewRunner(WithWaitDelay(200 * time.Millisecond))

	start := time.Now()
	out := r.Run(context.Background(), "bash", writeScript(t, "(sleep 3; echo late) &\necho done\n"), 10*time.Second)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, out.TimedOut)
	require.NotNil(t, out.ExitCode)
	assert.Equal(t, 0, *out.ExitCode)
	assert.Equal(t, "done\n", out.Stdout)
}

func TestRunNaturalExitWithinWaitDelayIsNotTimeout(t *testing.T) {
	r := NewRunner(WithWaitDelay(600 * time.Millisecond))

	out := r.Run(context.Background(), "bash", writeScript(t, "(sleep 3) &\necho done\nexit 0\n"), 300*time.Millisecond)

	assert.False(t, out.TimedOut)
	require.NotNil(t, out.ExitCode)
	assert.Equal(t, 0, *out.ExitCode)
	assert.Equal(t, "done\n", out.Stdout)
	assert.Less(t, out.Duration, 2*time.Second)
}

func TestTemplateCommand(t *testing.T) {
	assert.Equal(t, []string{"ruff", "check", "/tmp/x.py"}, Template{"ruff", "check"}.Command("/tmp/x.py"))
}
