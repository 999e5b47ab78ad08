package postprocess

import (
	"context"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/Norgate-AV/bundler/internal/codes"
	"github.com/Norgate-AV/bundler/internal/compiler"
)

// InstallNameTool edits Mach-O load commands in place
const InstallNameTool = "install_name_tool"

// ExecutableRelative is the search path of libraries kept in subdir next to the executable
func ExecutableRelative(subdir string) string {
	return path.Join("@executable_path", subdir)
}

// Plan returns the install_name_tool options that make a binary find its
// libraries in subdir relative to the executable. fileName is the name the
// binary is bundled under and becomes part of its identity. renames maps
// referenced file names to the names libraries are bundled under.
//
// References with an absolute path are system libraries and stay untouched.
// A binary that already has the wanted commands yields no options.
func Plan(lc LoadCommands, fileName, subdir string, renames map[string]string) []string {
	rpath := ExecutableRelative(subdir)

	var args []string
	if !slices.Contains(lc.Rpaths, rpath) {
		args = append(args, "-add_rpath", rpath)
	}

	if lc.ID != "" && !strings.HasPrefix(lc.ID, "/") {
		if id := path.Join(rpath, fileName); lc.ID != id {
			args = append(args, "-id", id)
		}
	}

	changed := make(map[string]bool)
	for _, d := range lc.Dylibs {
		if strings.HasPrefix(d.Name, "/") || changed[d.Name] {
			continue
		}

		base := path.Base(d.Name)
		if renamed, ok := renames[base]; ok {
			base = renamed
		}

		if want := path.Join(rpath, base); d.Name != want {
			changed[d.Name] = true
			args = append(args, "-change", d.Name, want)
		}
	}

	return args
}

// Simulate returns the load commands install_name_tool would leave after
// applying args
func Simulate(lc LoadCommands, args []string) LoadCommands {
	out := LoadCommands{
		ID:     lc.ID,
		Dylibs: slices.Clone(lc.Dylibs),
		Rpaths: slices.Clone(lc.Rpaths),
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-add_rpath":
			if i+1 < len(args) {
				out.Rpaths = append(out.Rpaths, args[i+1])
				i++
			}
		case "-delete_rpath":
			if i+1 < len(args) {
				out.Rpaths = slices.DeleteFunc(out.Rpaths, func(r string) bool { return r == args[i+1] })
				i++
			}
		case "-id":
			if i+1 < len(args) {
				out.ID = args[i+1]
				i++
			}
		case "-change":
			if i+2 < len(args) {
				for j := range out.Dylibs {
					if out.Dylibs[j].Name == args[i+1] {
						out.Dylibs[j].Name = args[i+2]
					}
				}
				i += 2
			}
		}
	}

	return out
}

// Rewriter applies rpath plans with install_name_tool
type Rewriter struct {
	runner compiler.Runner
	tool   string
	logger *log.Logger
}

// NewRewriter creates a rewriter running tool, usually InstallNameTool
func NewRewriter(runner compiler.Runner, tool string, logger *log.Logger) *Rewriter {
	return &Rewriter{runner: runner, tool: tool, logger: logger}
}

// Rewrite makes the binary at file locate its libraries in subdir next to the executable
func (r *Rewriter) Rewrite(ctx context.Context, file, subdir string, renames map[string]string) error {
	lc, err := ReadLoadCommands(file)
	if err != nil {
		return codes.Edit("could not read load commands", file, err)
	}

	args := Plan(lc, filepath.Base(file), subdir, renames)
	if len(args) == 0 {
		r.logger.Debug("load commands up to date", "file", file)
		return nil
	}

	r.logger.Debug("rewriting load commands", "file", file, "edits", strings.Join(args, " "))

	cmd := &compiler.ShellCommand{
		Path: r.tool,
		Args: append(args, file),
		Dir:  filepath.Dir(file),
	}

	if err := r.runner.Run(ctx, cmd); err != nil {
		return codes.Edit("could not rewrite load commands to "+ExecutableRelative(subdir), file, err)
	}

	return nil
}
