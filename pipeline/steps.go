package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"time"
)

// Step names, in build order.
const (
	UpdateJSON = "update-json"
	FontJSON   = "font-json"
	FontImages = "font-images"
	EventJSON  = "event-json"
	MsgRebuild = "msg-rebuild"
	Patch      = "patch"
	BuildISO   = "iso"
)

// Order lists every step name in build order.
var Order = []string{UpdateJSON, FontJSON, FontImages, EventJSON, MsgRebuild, Patch, BuildISO}

// Step is one process of the build.
type Step struct {
	Name    string
	Command string
	Args    []string
	Clean   string // file removed before the step runs
}

func (s Step) String() string {
	return s.Name
}

// Steps returns the build steps for c. Built-in steps re-invoke self, the tool
// binary, with the project file and flags; the ISO step runs the configured
// command, or is left out when none is configured.
func Steps(c Config, self string, flags ...string) []Step {
	builtin := func(name, sub string) Step {
		args := []string{sub}
		if c.path != "" {
			args = append(args, "--config", c.path)
		}
		args = append(args, flags...)
		return Step{Name: name, Command: self, Args: args}
	}
	steps := []Step{
		builtin(UpdateJSON, "msg-update"),
		builtin(FontJSON, "font-json"),
		builtin(FontImages, "font-images"),
		builtin(EventJSON, "event-json"),
		builtin(MsgRebuild, "msg-rebuild"),
		builtin(Patch, "remap"),
	}
	if len(c.ISO.Command) > 0 {
		steps = append(steps, Step{
			Name:    BuildISO,
			Command: c.ISO.Command[0],
			Args:    c.ISO.Command[1:],
			Clean:   c.ISO.Output,
		})
	}
	return steps
}

// Select returns the steps to run: only the one named only, or all from the one
// named from onwards. Both empty selects everything.
func Select(steps []Step, from, only string) ([]Step, error) {
	if from != "" && only != "" {
		return nil, errors.New("--from and --only are exclusive")
	}
	name := only
	if name == "" {
		name = from
	}
	if name == "" {
		return steps, nil
	}
	for i, s := range steps {
		if s.Name == name {
			if only != "" {
				return steps[i : i+1], nil
			}
			return steps[i:], nil
		}
	}
	return nil, fmt.Errorf("unknown step %q", name)
}

// Executor runs one process and returns an error for a non-zero exit.
type Executor interface {
	Exec(ctx context.Context, command string, args ...string) error
}

// ProcessExecutor runs steps as child processes.
type ProcessExecutor struct {
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

func (p ProcessExecutor) Exec(ctx context.Context, command string, args ...string) error {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = p.Dir
	cmd.Stdout = p.Stdout
	cmd.Stderr = p.Stderr
	return cmd.Run()
}

// Runner executes steps in order and stops at the first failure.
type Runner struct {
	Exec      Executor
	LockDelay time.Duration

	// OnStep is called before a step starts, OnWarn for recoverable problems.
	OnStep func(Step)
	OnWarn func(msg string)

	// Remove and Sleep default to os.Remove and a context-aware timer.
	Remove func(string) error
	Sleep  func(context.Context, time.Duration) error
}

// Run executes steps. The error of a failing step names the step.
func (r *Runner) Run(ctx context.Context, steps []Step) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.OnStep != nil {
			r.OnStep(s)
		}
		if s.Clean != "" {
			if err := r.clean(ctx, s.Clean); err != nil {
				return fmt.Errorf("step %s: %w", s.Name, err)
			}
		}
		tracer().Infof("step %s: %s %v", s.Name, s.Command, s.Args)
		if err := r.Exec.Exec(ctx, s.Command, s.Args...); err != nil {
			tracer().Errorf("step %s failed: %v", s.Name, err)
			return fmt.Errorf("step %s: %w", s.Name, err)
		}
	}
	return nil
}

// clean removes path. A file that cannot be removed is usually held open by an
// emulator or an ISO mounter, so the runner waits once and carries on.
func (r *Runner) clean(ctx context.Context, path string) error {
	remove := r.Remove
	if remove == nil {
		remove = os.Remove
	}
	err := remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	delay := r.LockDelay
	if delay == 0 {
		delay = DefaultLockDelay
	}
	msg := fmt.Sprintf("cannot remove %s (%v), waiting %s", path, err, delay)
	tracer().Infof("%s", msg)
	if r.OnWarn != nil {
		r.OnWarn(msg)
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return sleep(ctx, delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
