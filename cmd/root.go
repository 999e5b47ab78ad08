package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/bundler/internal/codes"
	"github.com/Norgate-AV/bundler/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "bundler",
	Short: "Native app bundler",
	Long: `Compile an application, its executables and third-party native libraries,
and assemble them into a macOS app bundle, a Windows or Linux directory, or an Android APK.`,
	RunE:          runBuild,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
}

// Execute runs the command line and exits with the status of the error kind
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		log.Error(err)
		os.Exit(codes.ExitCode(err))
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)

	flags := rootCmd.PersistentFlags()
	flags.CountP("verbose", "v", "Verbose output, repeat for more")
	flags.BoolP("release", "r", false, "Compile in release profile")
	flags.Bool("include-debug-symbols", false, "Bundle debug symbols of the libraries")
	flags.StringP("target", "t", "", "Target triple, defaults to the host")
	flags.String("target-dir", "", "Toolchain build directory, defaults to <workspace>/target")
	flags.String("bundle-dir", "", "Directory the bundle is created in")
	flags.String("workspace-dir", "", "Workspace to build, defaults to the working directory")
	flags.String("app-name", "", "Application name")
	flags.String("identifier", "", "Bundle identifier, defaults to the app name")
	flags.String("author", "", "Author or company")
	flags.String("app-version", "", "Application version X.Y.Z, defaults to the next patch of the latest git tag")
	flags.String("executable-name", "", "Name of the bundled executables, defaults to the app name")
	flags.StringSlice("icons", []string{}, "Icon files, or icon resource directories for android")
	flags.String("plist-file", "", "Info.plist template to use instead of the built-in one")
	flags.StringSliceP("libraries", "l", []string{}, "Third-party libraries to compile and bundle")
	flags.String("libraries-versions", "", "File mapping library names to versions")
	flags.StringSlice("library-version", []string{}, "Library version override as NAME=VERSION")
	flags.String("runner-vm", "", "Runtime used by the toolchain while compiling")
	flags.String("runner-image", "", "Image used by the toolchain while compiling")
	flags.StringSlice("executables", []string{}, "Executables to produce: app, cli, android")
	flags.StringSlice("features", []string{}, "Extra toolchain features")

	rootCmd.AddCommand(buildCmd, compileCmd, bundleCmd, rpathCmd, cacheCmd)
}
