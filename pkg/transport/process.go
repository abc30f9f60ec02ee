package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
)

// Process is a child process spoken to over its stdin and stdout.
type Process struct {
	*StdioChannel
	cmd     *exec.Cmd
	exited  chan struct{}
	waitErr error

	// GracePeriod is how long Close waits for the child to exit on its own
	// after its stdin is closed.
	GracePeriod time.Duration
}

// ProcessOption customizes StartProcess.
type ProcessOption func(*exec.Cmd)

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(env ...string) ProcessOption {
	return func(cmd *exec.Cmd) {
		cmd.Env = append(os.Environ(), env...)
	}
}

// WithStderr redirects the child's stderr. It defaults to ours, so provider
// logs show up in the host's terminal.
func WithStderr(w io.Writer) ProcessOption {
	return func(cmd *exec.Cmd) {
		cmd.Stderr = w
	}
}

// WithDir sets the child's working directory.
func WithDir(dir string) ProcessOption {
	return func(cmd *exec.Cmd) {
		cmd.Dir = dir
	}
}

// StartProcess launches name with args and returns a channel bound to it.
// The process outlives ctx; call Close to stop it.
func StartProcess(ctx context.Context, name string, args []string, opts ...ProcessOption) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(name, args...)
	cmd.Stderr = os.Stderr
	for _, opt := range opts {
		opt(cmd)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, mcperrors.TransportError("process", "stdin", err)
	}
	// Wait closes a StdoutPipe on exit, which can drop the last lines.
	stdout, childStdout, err := os.Pipe()
	if err != nil {
		return nil, mcperrors.TransportError("process", "stdout", err)
	}
	cmd.Stdout = childStdout

	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		_ = childStdout.Close()
		return nil, mcperrors.TransportError("process", fmt.Sprintf("start %s", name), err)
	}
	_ = childStdout.Close()

	p := &Process{
		StdioChannel: NewStdioChannel(stdout, stdin),
		cmd:          cmd,
		exited:       make(chan struct{}),
		GracePeriod:  3 * time.Second,
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()

	return p, nil
}

// Pid returns the child's process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Exited is closed once the child has been reaped.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Close closes the child's stdin, waits for it to exit and kills it if it
// does not within the grace period.
func (p *Process) Close() error {
	closeErr := p.StdioChannel.Close()

	select {
	case <-p.exited:
	case <-time.After(p.GracePeriod):
		_ = p.cmd.Process.Kill()
		<-p.exited
	}

	var exitErr *exec.ExitError
	if p.waitErr != nil && !errors.As(p.waitErr, &exitErr) {
		return mcperrors.TransportError("process", "wait", p.waitErr)
	}
	return closeErr
}
