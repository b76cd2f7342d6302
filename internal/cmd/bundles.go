package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/MakeNowJust/heredoc"
	"github.com/buildlens/buildlens/internal/incremental"
	"github.com/buildlens/buildlens/internal/render"
	"github.com/spf13/cobra"
)

var bundlesCmd = &cobra.Command{
	Use:   "bundles",
	Short: "Check incremental AssetBundle builds",
	Long: heredoc.Doc(`
		Record the state of an AssetBundle build folder before a build and
		explain afterwards what the incremental build did to every bundle:
		which were left alone, rebuilt or removed, and which changed in ways
		a correct incremental build never produces.
	`),
	Example: heredoc.Doc(`
		buildlens bundles snapshot Build/AssetBundles
		# ... run the build ...
		buildlens bundles compare Build/AssetBundles
	`),
}

type bundlesOptions struct {
	dir              string
	snapshotPath     string
	update           bool
	failOnSuspicious bool
	json             bool
}

var bundlesSnapshotCmd = &cobra.Command{
	Use:   "snapshot <dir>",
	Short: "Record the bundles of a build folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBundlesSnapshot(loadBundlesOptions(cmd, args[0]), cmd.OutOrStdout())
	},
}

var bundlesCompareCmd = &cobra.Command{
	Use:   "compare <dir>",
	Short: "Compare a build folder with its last snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBundlesCompare(loadBundlesOptions(cmd, args[0]), cmd.OutOrStdout())
	},
}

func init() {
	for _, c := range []*cobra.Command{bundlesSnapshotCmd, bundlesCompareCmd} {
		c.Flags().StringP("snapshot", "s", "", "Snapshot file (default inside the build folder)")
	}
	bundlesCompareCmd.Flags().Bool("update", false, "Replace the snapshot with the current state")
	bundlesCompareCmd.Flags().Bool("fail-on-suspicious", false, "Exit with an error on suspicious changes")

	bundlesCmd.AddCommand(bundlesSnapshotCmd, bundlesCompareCmd)
	rootCmd.AddCommand(bundlesCmd)
}

func loadBundlesOptions(cmd *cobra.Command, dir string) bundlesOptions {
	cfg := configFrom(cmd).Bundles
	snapshotPath, _ := cmd.Flags().GetString("snapshot")
	update, _ := cmd.Flags().GetBool("update")
	fail, _ := cmd.Flags().GetBool("fail-on-suspicious")
	if snapshotPath == "" {
		snapshotPath = filepath.Join(dir, cfg.SnapshotFile)
	}
	return bundlesOptions{
		dir:              dir,
		snapshotPath:     snapshotPath,
		update:           update,
		failOnSuspicious: fail || cfg.FailOnSuspicious,
		json:             jsonOutput(cmd),
	}
}

func runBundlesSnapshot(opts bundlesOptions, w io.Writer) error {
	snap, err := incremental.Take(opts.dir)
	if err != nil {
		return err
	}
	if err := snap.Save(opts.snapshotPath); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "Recorded %d bundles in %s\n", len(snap.Bundles), opts.snapshotPath)
	return err
}

func runBundlesCompare(opts bundlesOptions, w io.Writer) error {
	prev, err := incremental.Load(opts.snapshotPath)
	if err != nil {
		return err
	}
	next, err := incremental.Take(opts.dir)
	if err != nil {
		return err
	}
	changes := incremental.Compare(prev, next)

	if opts.json {
		err = writeJSON(w, changes)
	} else {
		err = render.Changes(w, changes)
	}
	if err != nil {
		return err
	}

	if opts.update {
		if err := next.Save(opts.snapshotPath); err != nil {
			return err
		}
	}

	suspicious := 0
	for kind, n := range incremental.Counts(changes) {
		if kind.Suspicious() {
			suspicious += n
		}
	}
	if suspicious == 0 {
		return nil
	}
	slog.Warn("Incremental build produced suspicious changes", "count", suspicious)
	if opts.failOnSuspicious {
		return fmt.Errorf("%w: %d bundles", errSuspiciousChanges, suspicious)
	}
	return nil
}
