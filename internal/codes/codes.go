// Package codes classifies bundler failures and maps them to process exit codes.
//
// Every fatal condition the pipeline can hit falls into one of five kinds:
//
//  1. Requirement   - a required external tool is missing (checked before any work starts)
//  2. Toolchain     - the toolchain or a library build step exited with a non-zero status
//  3. Filesystem    - copy/create/remove failed
//  4. BinaryEdit    - rewriting load commands or patching a binary failed
//  5. Configuration - options could not be resolved (bad version, unknown target/library)
package codes

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a fatal error
type Kind int

const (
	Unknown Kind = iota
	Requirement
	Toolchain
	Filesystem
	BinaryEdit
	Configuration
)

// ExitCodes maps each error kind to the status the process terminates with
var ExitCodes = map[Kind]int{
	Unknown:       1,
	Requirement:   2,
	Toolchain:     3,
	Filesystem:    4,
	BinaryEdit:    5,
	Configuration: 6,
}

var kindNames = map[Kind]string{
	Unknown:       "error",
	Requirement:   "requirement not satisfied",
	Toolchain:     "toolchain failure",
	Filesystem:    "filesystem failure",
	BinaryEdit:    "binary editing failure",
	Configuration: "configuration error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return kindNames[Unknown]
}

// Error is a classified failure. Op describes what was attempted and Path the
// file or tool it was attempted on.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}

	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error
func New(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Requirementf reports a missing tool or prerequisite
func Requirementf(format string, args ...any) *Error {
	return &Error{Kind: Requirement, Op: fmt.Sprintf(format, args...)}
}

// Configurationf reports an option that could not be resolved
func Configurationf(format string, args ...any) *Error {
	return &Error{Kind: Configuration, Op: fmt.Sprintf(format, args...)}
}

// ToolchainErr reports a failed external build step
func ToolchainErr(op string, err error) *Error {
	return &Error{Kind: Toolchain, Op: op, Err: err}
}

// FS reports a failed filesystem operation on path
func FS(op, path string, err error) *Error {
	return &Error{Kind: Filesystem, Op: op, Path: path, Err: err}
}

// Edit reports a failed binary edit of path
func Edit(op, path string, err error) *Error {
	return &Error{Kind: BinaryEdit, Op: op, Path: path, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return Unknown
}

// ExitCode returns the process exit status for err, 0 for nil
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	return ExitCodes[KindOf(err)]
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
