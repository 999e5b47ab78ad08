package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/bundler/internal/build"
	"github.com/Norgate-AV/bundler/internal/cache"
	"github.com/Norgate-AV/bundler/internal/compiler"
	"github.com/Norgate-AV/bundler/internal/config"
	"github.com/Norgate-AV/bundler/internal/library"
	"github.com/Norgate-AV/bundler/internal/logging"
)

var buildCmd = &cobra.Command{
	Use:          "build",
	Short:        "Compile and bundle",
	Long:         `Compile the executables and third-party libraries, then assemble the bundle.`,
	RunE:         runBuild,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

var compileCmd = &cobra.Command{
	Use:          "compile",
	Short:        "Compile executables and third-party libraries",
	RunE:         runCompile,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

var bundleCmd = &cobra.Command{
	Use:          "bundle",
	Short:        "Bundle what an earlier compile produced",
	RunE:         runBundle,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func runBuild(cmd *cobra.Command, _ []string) error {
	return withPipeline(cmd, func(ctx context.Context, p *build.Pipeline) error {
		return p.Run(ctx)
	})
}

func runCompile(cmd *cobra.Command, _ []string) error {
	return withPipeline(cmd, func(ctx context.Context, p *build.Pipeline) error {
		return p.Compile(ctx)
	})
}

func runBundle(cmd *cobra.Command, _ []string) error {
	return withPipeline(cmd, func(ctx context.Context, p *build.Pipeline) error {
		return p.Package(ctx)
	})
}

// cacheDir is where compiled third-party libraries of every target are kept
func cacheDir(cfg *config.Config) string {
	return filepath.Join(cfg.TargetDir, "third_party")
}

// withPipeline resolves the options and wires a pipeline for run
func withPipeline(cmd *cobra.Command, run func(ctx context.Context, p *build.Pipeline) error) error {
	cfg, err := config.NewLoader().Load(cmd)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Verbose)
	logger.Debug("resolved options",
		"target", cfg.Target,
		"profile", cfg.Profile(),
		"app", cfg.AppName,
		"version", cfg.Version,
		"libraries", cfg.Libraries,
	)

	c, err := cache.Open(cacheDir(cfg))
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer c.Close()

	runner := compiler.NewCommandRunner(logger)
	runner.Stdout = cmd.OutOrStdout()
	runner.Stderr = cmd.ErrOrStderr()

	p, err := build.New(cfg, build.Options{
		Registry: library.DefaultRegistry(cfg.LibraryVersions),
		Cache:    c,
		Fetcher:  library.NewFetcher(logger),
		Runner:   runner,
		Checker:  compiler.NewToolFinder(cfg.Tools),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	if err := run(cmd.Context(), p); err != nil {
		return err
	}

	logger.Info("done", "stage", p.Stage(), "bundle", cfg.BundleLocation())
	return nil
}
