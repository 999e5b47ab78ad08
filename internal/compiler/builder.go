package compiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/charmbracelet/log"

	"github.com/Norgate-AV/bundler/internal/codes"
)

// Commander interface for testing
type Commander interface {
	Run() error
}

// Runner executes external tools. Every step of the pipeline spawns processes
// through a Runner so tests can record invocations instead.
type Runner interface {
	Run(ctx context.Context, cmd *ShellCommand) error
}

// CommandRunner runs commands as child processes, streaming their output
type CommandRunner struct {
	Stdout io.Writer
	Stderr io.Writer

	logger      *log.Logger
	execCommand func(ctx context.Context, name string, args ...string) Commander
}

// NewCommandRunner creates a runner attached to the console
func NewCommandRunner(logger *log.Logger) *CommandRunner {
	return &CommandRunner{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		logger: logger,
		execCommand: func(ctx context.Context, name string, args ...string) Commander {
			return exec.CommandContext(ctx, name, args...)
		},
	}
}

// Run executes the command and blocks until it exits. A non-zero exit is a
// toolchain error naming the command.
func (r *CommandRunner) Run(ctx context.Context, sc *ShellCommand) error {
	r.logger.Debug("running", "command", sc.String(), "dir", sc.Dir, "env", []string(sc.Env))

	c := r.execCommand(ctx, sc.Path, sc.Args...)
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Dir = sc.Dir
		cmd.Stdout = r.Stdout
		cmd.Stderr = r.Stderr

		if len(sc.Env) > 0 {
			cmd.Env = append(os.Environ(), sc.Env...)
		}
	}

	err := c.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return codes.ToolchainErr(fmt.Sprintf("%s exited with status %d", sc.String(), exitErr.ExitCode()), err)
	}

	return codes.ToolchainErr(fmt.Sprintf("could not run %s", sc.String()), err)
}
