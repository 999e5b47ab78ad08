package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/bundler/internal/bundler"
	"github.com/Norgate-AV/bundler/internal/codes"
	"github.com/Norgate-AV/bundler/internal/compiler"
	"github.com/Norgate-AV/bundler/internal/logging"
	"github.com/Norgate-AV/bundler/internal/postprocess"
)

var rpathCmd = &cobra.Command{
	Use:   "rpath",
	Short: "Make a Mach-O binary find its libraries next to the executable",
	Long: `Rewrite the load commands of a Mach-O executable or dynamic library so that
@rpath resolves to a directory relative to the executable.`,
	RunE:         runRpath,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func init() {
	rpathCmd.Flags().String("lib", "", "Mach-O file to rewrite")
	rpathCmd.Flags().String("path", bundler.PluginsDir, "Library directory relative to the executable")
	rpathCmd.Flags().Bool("dry-run", false, "Print the edits instead of applying them")
	rpathCmd.Flags().String("tool", postprocess.InstallNameTool, "install_name_tool to run")
	_ = rpathCmd.MarkFlagRequired("lib")
}

func runRpath(cmd *cobra.Command, _ []string) error {
	file, _ := cmd.Flags().GetString("lib")
	subdir, _ := cmd.Flags().GetString("path")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	tool, _ := cmd.Flags().GetString("tool")
	verbose, _ := cmd.Flags().GetCount("verbose")

	if !dryRun {
		logger := logging.New(verbose)
		runner := compiler.NewCommandRunner(logger)
		runner.Stdout = cmd.OutOrStdout()
		runner.Stderr = cmd.ErrOrStderr()

		return postprocess.NewRewriter(runner, tool, logger).Rewrite(cmd.Context(), file, subdir, nil)
	}

	lc, err := postprocess.ReadLoadCommands(file)
	if err != nil {
		return codes.Edit("could not read load commands", file, err)
	}

	out := cmd.OutOrStdout()
	args := postprocess.Plan(lc, filepath.Base(file), subdir, nil)
	if len(args) == 0 {
		fmt.Fprintf(out, "%s: up to date\n", file)
		return nil
	}

	fmt.Fprintf(out, "%s %s %s\n", tool, strings.Join(args, " "), file)

	after := postprocess.Simulate(lc, args)
	if after.ID != "" {
		fmt.Fprintf(out, "id: %s\n", after.ID)
	}
	for _, d := range after.Dylibs {
		fmt.Fprintf(out, "dylib: %s\n", d.Name)
	}
	for _, r := range after.Rpaths {
		fmt.Fprintf(out, "rpath: %s\n", r)
	}

	return nil
}
