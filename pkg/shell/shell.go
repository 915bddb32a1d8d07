// Package shell runs local commands and streams their output line by line
// as it is produced.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"
	"golang.org/x/sync/errgroup"

	"github.com/liliang-cn/deploytest/pkg/logging"
	"github.com/liliang-cn/deploytest/pkg/types"
)

const maxLineSize = 1024 * 1024

// Command is a baked command line: the program, its leading arguments and
// where its output goes.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string

	Stdout io.Writer
	Stderr io.Writer
}

// Option configures a Command
type Option func(*Command)

// WithStdout sets the writer that receives stdout lines
func WithStdout(w io.Writer) Option {
	return func(c *Command) { c.Stdout = w }
}

// WithStderr sets the writer that receives stderr lines
func WithStderr(w io.Writer) Option {
	return func(c *Command) { c.Stderr = w }
}

// WithDir sets the working directory
func WithDir(dir string) Option {
	return func(c *Command) { c.Dir = dir }
}

// WithEnv appends KEY=VALUE pairs to the inherited environment
func WithEnv(env ...string) Option {
	return func(c *Command) { c.Env = append(c.Env, env...) }
}

// Result describes a finished run
type Result struct {
	ExitCode int
	Duration time.Duration
}

// Bake splits command with shell quoting rules. Output goes to os.Stdout
// and os.Stderr unless an option says otherwise.
func Bake(command string, opts ...Option) (*Command, error) {
	words, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot split %q: %v", types.ErrInvalidArguments, command, err)
	}
	if len(words) == 0 {
		return nil, types.NewValidationError("command", command, "command must not be empty")
	}

	c := &Command{
		Name:   words[0],
		Args:   words[1:],
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// String returns the quoted command line
func (c *Command) String() string {
	return Join(append([]string{c.Name}, c.Args...)...)
}

// Available reports whether the program can be found in PATH
func (c *Command) Available() bool {
	_, err := exec.LookPath(c.Name)
	return err == nil
}

// Run executes the command with extra arguments appended and copies every
// output line to the configured writers as it arrives. A non-zero exit is
// returned as an error together with the Result.
func (c *Command) Run(ctx context.Context, extraArgs ...string) (*Result, error) {
	logger := logging.GetLogger("shell")

	args := append(append([]string{}, c.Args...), extraArgs...)
	cmd := exec.CommandContext(ctx, c.Name, args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	startTime := time.Now()
	logger.Debug().Str("cmd", Join(append([]string{c.Name}, args...)...)).Msg("Running command")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", c.Name, err)
	}

	// One lock for both streams so a shared writer never sees interleaved lines.
	var mu sync.Mutex
	var g errgroup.Group
	g.Go(func() error { return streamLines(stdoutPipe, c.Stdout, &mu) })
	g.Go(func() error { return streamLines(stderrPipe, c.Stderr, &mu) })

	// Pipes must be drained before Wait closes them.
	streamErr := g.Wait()
	waitErr := cmd.Wait()

	result := &Result{Duration: time.Since(startTime)}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		logger.Debug().Int("exit_code", result.ExitCode).Dur("duration", result.Duration).Msg("Command failed")
		return result, fmt.Errorf("command %s failed: %w", c.Name, waitErr)
	}
	if streamErr != nil {
		return result, fmt.Errorf("failed to stream output of %s: %w", c.Name, streamErr)
	}

	logger.Debug().Dur("duration", result.Duration).Msg("Command finished")
	return result, nil
}

// Join quotes args into a single shell command line
func Join(args ...string) string {
	return shellquote.Join(args...)
}

func streamLines(r io.Reader, w io.Writer, mu *sync.Mutex) error {
	if w == nil {
		w = io.Discard
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		mu.Lock()
		_, err := io.WriteString(w, scanner.Text()+"\n")
		mu.Unlock()
		if err != nil {
			// Keep draining so the process does not block on a full pipe.
			io.Copy(io.Discard, r)
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		io.Copy(io.Discard, r)
		return err
	}
	return nil
}
