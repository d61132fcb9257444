package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/hb-chen/mkbi/pkg/logger"
)

// UnsupportedExitCode is the exit code of a synthetic outcome produced
// without starting a process.
const UnsupportedExitCode = -1

// defaultWaitDelay bounds how long Wait keeps draining pipes that a
// backgrounded descendant still holds open after the script exits.
const defaultWaitDelay = 2 * time.Second

// Outcome is the result of one sandboxed run.
type Outcome struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	// ExitCode is nil iff the run timed out.
	ExitCode *int          `json:"exit_code"`
	TimedOut bool          `json:"timed_out"`
	Duration time.Duration `json:"-"`
	// Err is set when no process ran: an unknown executor or a failed start.
	Err error `json:"-"`
}

// DurationMS is the wall time of the run in milliseconds.
func (o *Outcome) DurationMS() int64 {
	return o.Duration.Milliseconds()
}

// Started reports whether a process was actually launched.
func (o *Outcome) Started() bool {
	return o.Err == nil
}

// Runner runs script files under an executor with a hard timeout.
type Runner struct {
	templates map[Executor]Template
	waitDelay time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithTemplates replaces the executor table.
func WithTemplates(templates map[Executor]Template) Option {
	return func(r *Runner) {
		r.templates = templates
	}
}

// WithWaitDelay overrides how long output pipes are drained after exit.
func WithWaitDelay(d time.Duration) Option {
	return func(r *Runner) {
		r.waitDelay = d
	}
}

// NewRunner creates a runner using DefaultTemplates.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		templates: DefaultTemplates,
		waitDelay: defaultWaitDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve maps an executor id onto its command template.
func (r *Runner) Resolve(id string) (Template, error) {
	t, ok := r.templates[Executor(id)]
	if !ok {
		return nil, &UnknownExecutorError{ID: id, Supported: supported(r.templates)}
	}
	return t, nil
}

// Run executes scriptPath with the executor named id. The process leads its
// own process group; when timeout elapses, or ctx is done, the whole group
// is killed and whatever output was captured so far is kept.
//
// Run never returns an error: an unknown executor or a start failure yields
// a synthetic outcome with ExitCode -1, the diagnostic in Stderr and Err set.
func (r *Runner) Run(ctx context.Context, id, scriptPath string, timeout time.Duration) *Outcome {
	template, err := r.Resolve(id)
	if err != nil {
		var unknown *UnknownExecutorError
		errors.As(err, &unknown)
		return synthetic(unknown.Diagnostic(), err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := template.Command(scriptPath)
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	group := newProcessGroup(cmd)
	cmd.WaitDelay = r.waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return synthetic(fmt.Sprintf("failed to start %s: %v", argv[0], err), err)
	}
	logger.Debugf("Started %s (pgid %d, timeout %s)", strings.Join(argv, " "), cmd.Process.Pid, timeout)

	waitErr := cmd.Wait()
	duration := time.Since(start)

	outcome := &Outcome{
		Stdout:   decode(stdout.Bytes()),
		Stderr:   decode(stderr.Bytes()),
		Duration: duration,
	}

	// ErrWaitDelay means the script exited by itself and only a backgrounded
	// descendant kept the pipes open, even if the deadline passed meanwhile.
	if waitErr != nil && runCtx.Err() != nil && !errors.Is(waitErr, exec.ErrWaitDelay) {
		// Nothing in the group may outlive the run.
		if err := group.terminate(); err != nil {
			logger.Warnf("Killing process group %d: %v", cmd.Process.Pid, err)
		}
		outcome.TimedOut = true
		logger.Infof("Script %s killed after %s", scriptPath, duration.Round(time.Millisecond))
		return outcome
	}

	if waitErr != nil && !errors.Is(waitErr, exec.ErrWaitDelay) {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			logger.Warnf("Waiting for %s: %v", scriptPath, waitErr)
		}
	}

	code := exitCode(cmd.ProcessState)
	outcome.ExitCode = &code
	return outcome
}

func synthetic(diagnostic string, err error) *Outcome {
	code := UnsupportedExitCode
	return &Outcome{
		Stderr:   diagnostic,
		ExitCode: &code,
		Err:      err,
	}
}

func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
