package i2ctool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Runner executes one of the external bus utilities. The exec-backed
// implementation is the production path; tests and dry runs substitute
// their own.
type Runner interface {
	// Output runs the tool to completion and returns its stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)

	// Stream runs the tool and hands its stdout to handle while the tool
	// is still running.
	Stream(ctx context.Context, name string, args []string, handle func(io.Reader) error) error
}

// ToolError reports a failed external tool invocation along with whatever
// the tool printed on stderr.
type ToolError struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Tool, strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// ExecRunner runs tools via os/exec.
type ExecRunner struct{}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &ToolError{
			Tool:   name,
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}

	return stdout.Bytes(), nil
}

func (ExecRunner) Stream(ctx context.Context, name string, args []string, handle func(io.Reader) error) error {
	cmd := exec.CommandContext(ctx, name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrapf(err, "%s: stdout pipe", name)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrapf(err, "%s: stderr pipe", name)
	}

	if err := cmd.Start(); err != nil {
		return &ToolError{Tool: name, Args: args, Err: err}
	}

	// Both pipes must drain before Wait; stderr is collected alongside the
	// streamed stdout so a failing tool still reports its message.
	var stderr bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&stderr, stderrPipe)
		return err
	})
	g.Go(func() error {
		// Drain whatever handle leaves behind so the tool never blocks
		// on a full pipe.
		defer io.Copy(io.Discard, stdout) //nolint:errcheck
		return handle(stdout)
	})

	handleErr := g.Wait()
	waitErr := cmd.Wait()

	if waitErr != nil {
		return &ToolError{
			Tool:   name,
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    waitErr,
		}
	}
	if handleErr != nil {
		return errors.Wrapf(handleErr, "%s output", name)
	}

	return nil
}

// DryRunRunner prints each command instead of executing it. Output and
// streamed stdout come back empty.
type DryRunRunner struct {
	W io.Writer
}

func (d DryRunRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	fmt.Fprintf(d.W, "would run: %s %s\n", name, strings.Join(args, " "))
	return nil, nil
}

func (d DryRunRunner) Stream(ctx context.Context, name string, args []string, handle func(io.Reader) error) error {
	fmt.Fprintf(d.W, "would run: %s %s\n", name, strings.Join(args, " "))
	return handle(strings.NewReader(""))
}
