package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/bundler/internal/cache"
	"github.com/Norgate-AV/bundler/internal/library"
	"github.com/Norgate-AV/bundler/internal/target"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear compiled third-party libraries",
}

var cacheListCmd = &cobra.Command{
	Use:          "list",
	Short:        "List compiled libraries",
	RunE:         runCacheList,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

var cacheClearCmd = &cobra.Command{
	Use:          "clear",
	Short:        "Remove compiled libraries, all of them unless --library is given",
	RunE:         runCacheClear,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func init() {
	cacheClearCmd.Flags().StringSlice("library", []string{}, "Only remove these libraries, for every target and profile")
	cacheCmd.AddCommand(cacheListCmd, cacheClearCmd)
}

// cacheRoot follows the same defaults as a build without loading the whole configuration
func cacheRoot(cmd *cobra.Command) (string, error) {
	if dir, _ := cmd.Flags().GetString("target-dir"); dir != "" {
		return filepath.Join(dir, "third_party"), nil
	}

	workspace, _ := cmd.Flags().GetString("workspace-dir")
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		workspace = wd
	}

	return filepath.Join(workspace, "target", "third_party"), nil
}

func openCache(cmd *cobra.Command) (*cache.Cache, error) {
	root, err := cacheRoot(cmd)
	if err != nil {
		return nil, err
	}

	c, err := cache.Open(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	return c, nil
}

func runCacheList(cmd *cobra.Command, _ []string) error {
	c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	entries, err := c.Entries()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No compiled libraries")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tTARGET\tPROFILE\tCOMPILED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Name, e.Version, e.Target, e.Profile, e.Timestamp.Format("2006-01-02 15:04"))
	}

	return w.Flush()
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if names, _ := cmd.Flags().GetStringSlice("library"); len(names) > 0 {
		return forgetLibraries(cmd, c, names)
	}

	count, size, err := c.Stats()
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	if err := c.Clear(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d libraries (%d bytes)\n", count, size)
	return nil
}

// forgetLibraries removes the compiled output of the named libraries so the next build compiles them again
func forgetLibraries(cmd *cobra.Command, c *cache.Cache, names []string) error {
	entries, err := c.Entries()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, name := range names {
		removed := 0
		for _, e := range entries {
			if e.Name != name {
				continue
			}

			key := library.Key{Name: e.Name, Target: target.Target(e.Target), Profile: e.Profile}
			if err := c.Forget(key, c.Dir(key)); err != nil {
				return err
			}

			removed++
		}

		if removed == 0 {
			fmt.Fprintf(out, "%s: not compiled\n", name)
			continue
		}

		fmt.Fprintf(out, "Removed %s (%d builds)\n", name, removed)
	}

	return nil
}
