package compiler

import (
	"strings"

	"github.com/Norgate-AV/bundler/internal/config"
)

// DefaultToolchain is the driver used to compile the bundled executables
const DefaultToolchain = "cargo"

// Environment variables handed to the toolchain while compiling executables
const (
	EnvTargetDir      = "CARGO_TARGET_DIR"
	EnvBuildTarget    = "CARGO_BUILD_TARGET"
	EnvVersion        = "BUNDLE_VERSION"
	EnvRunnerVM       = "BUNDLE_RUNNER_VM"
	EnvRunnerImage    = "BUNDLE_RUNNER_IMAGE"
	EnvEmbedResources = "BUNDLE_EMBED_RESOURCES"
	EnvBuildInfo      = "BUNDLE_BUILD_INFO"
)

// ShellCommand is a fully described external process invocation.
// Env is added on top of the process environment; later entries win.
type ShellCommand struct {
	Path string
	Args []string
	Dir  string
	Env  Env
}

func (c *ShellCommand) String() string {
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}

// ExecutableEnv is the environment every executable compilation starts from
func ExecutableEnv(cfg *config.Config) Env {
	env := Env(cfg.EnvList()).
		With(EnvTargetDir, cfg.TargetDir).
		With(EnvBuildTarget, cfg.Target.String()).
		With(EnvVersion, cfg.Version.String())

	if cfg.RunnerVM != "" {
		env = env.With(EnvRunnerVM, cfg.RunnerVM)
	}

	if cfg.RunnerImage != "" {
		env = env.With(EnvRunnerImage, cfg.RunnerImage)
	}

	return env
}

// GetBuildCommand returns the toolchain invocation that compiles exe
func GetBuildCommand(cfg *config.Config, exe config.Executable, env Env) *ShellCommand {
	var cmdArgs []string

	if exe == config.AndroidLib {
		cmdArgs = append(cmdArgs, "apk", "build", "--package", exe.PackageName(), "--lib")
	} else {
		cmdArgs = append(cmdArgs, "build", "--package", exe.PackageName(), "--bin", exe.BinaryName())
	}

	cmdArgs = append(cmdArgs, "--target", cfg.Target.String())

	switch {
	case cfg.Verbose == 1:
		cmdArgs = append(cmdArgs, "-v")
	case cfg.Verbose > 1:
		cmdArgs = append(cmdArgs, "-vv")
	}

	if cfg.Release {
		cmdArgs = append(cmdArgs, "--release")
	}

	if len(cfg.Features) > 0 {
		cmdArgs = append(cmdArgs, "--features", strings.Join(cfg.Features, ","))
	}

	return &ShellCommand{
		Path: cfg.Tool(DefaultToolchain),
		Args: cmdArgs,
		Dir:  cfg.WorkspaceDir,
		Env:  env,
	}
}
