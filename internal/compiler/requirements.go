package compiler

import (
	"os"
	"os/exec"
	"strings"

	"github.com/Norgate-AV/bundler/internal/codes"
)

// Requirement is an external tool a build step cannot run without
type Requirement struct {
	Tool   string
	Reason string
}

// ToolFinder locates tools, honouring explicit overrides before the PATH
type ToolFinder struct {
	overrides map[string]string
	lookPath  func(file string) (string, error)
}

// NewToolFinder creates a finder that consults overrides, then the PATH
func NewToolFinder(overrides map[string]string) *ToolFinder {
	return &ToolFinder{
		overrides: overrides,
		lookPath:  exec.LookPath,
	}
}

// Find returns the resolved path of tool
func (f *ToolFinder) Find(tool string) (string, error) {
	if path, ok := f.overrides[tool]; ok && path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", err
		}

		return path, nil
	}

	return f.lookPath(tool)
}

// Check verifies every requirement up front and reports all missing tools at once
func (f *ToolFinder) Check(requirements []Requirement) error {
	var missing []string
	seen := make(map[string]bool)

	for _, req := range requirements {
		if seen[req.Tool] {
			continue
		}

		seen[req.Tool] = true

		if _, err := f.Find(req.Tool); err != nil {
			missing = append(missing, req.Tool+" ("+req.Reason+")")
		}
	}

	if len(missing) > 0 {
		return codes.Requirementf("could not find %s", strings.Join(missing, ", "))
	}

	return nil
}
