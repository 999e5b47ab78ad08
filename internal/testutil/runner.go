// Package testutil holds fakes shared by package tests.
package testutil

import (
	"context"
	"sync"

	"github.com/Norgate-AV/bundler/internal/compiler"
)

// RecordingRunner records every command instead of spawning it. Handlers keyed
// by tool name can simulate side effects, such as the files a compiler leaves behind.
type RecordingRunner struct {
	mu       sync.Mutex
	Commands []*compiler.ShellCommand
	Handlers map[string]func(cmd *compiler.ShellCommand) error
}

// NewRecordingRunner creates an empty recorder
func NewRecordingRunner() *RecordingRunner {
	return &RecordingRunner{Handlers: make(map[string]func(cmd *compiler.ShellCommand) error)}
}

// Handle registers a side effect for every invocation of tool
func (r *RecordingRunner) Handle(tool string, fn func(cmd *compiler.ShellCommand) error) {
	r.Handlers[tool] = fn
}

func (r *RecordingRunner) Run(_ context.Context, cmd *compiler.ShellCommand) error {
	r.mu.Lock()
	r.Commands = append(r.Commands, cmd)
	handler := r.Handlers[cmd.Path]
	r.mu.Unlock()

	if handler != nil {
		return handler(cmd)
	}

	return nil
}

// Invocations returns the commands run with the given tool
func (r *RecordingRunner) Invocations(tool string) []*compiler.ShellCommand {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*compiler.ShellCommand
	for _, c := range r.Commands {
		if c.Path == tool {
			out = append(out, c)
		}
	}

	return out
}

// Strings returns every recorded command line in order
func (r *RecordingRunner) Strings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.Commands))
	for _, c := range r.Commands {
		out = append(out, c.String())
	}

	return out
}
