package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/buildlens/buildlens/internal/config"
	"github.com/buildlens/buildlens/internal/mobile"
	"github.com/buildlens/buildlens/internal/render"
	"github.com/buildlens/buildlens/internal/report"
	"github.com/spf13/cobra"
)

var mobileCmd = &cobra.Command{
	Use:   "mobile",
	Short: "Analyze APK, AAB and IPA packages",
	Long: heredoc.Doc(`
		Estimate per-architecture download sizes of mobile packages with the
		platform tools (apkanalyzer and bundletool for Android, file and size
		for Apple) and keep the results as appendices next to build reports.
	`),
}

var mobileAnalyzeCmd = &cobra.Command{
	Use:   "analyze <package>",
	Short: "Print the file list and architecture sizes of a package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, _ := cmd.Flags().GetString("platform")
		limit, _ := cmd.Flags().GetInt("limit")
		if !cmd.Flags().Changed("limit") {
			limit = configFrom(cmd).Content.Limit
		}
		return runMobileAnalyze(cmd.Context(), mobileOptions{
			cfg:         configFrom(cmd).Mobile,
			packagePath: args[0],
			platform:    platform,
			limit:       limit,
			json:        jsonOutput(cmd),
		}, cmd.OutOrStdout())
	},
}

var mobileGenerateCmd = &cobra.Command{
	Use:   "generate <package>",
	Short: "Analyze a package and store the appendix under its build GUID",
	Example: heredoc.Doc(`
		buildlens mobile generate --report Library/BuildReport.json game.ipa
		buildlens mobile generate --guid 8c3f0a5e2b9d4e71a6f01234abcd5678 game.aab
	`),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, _ := cmd.Flags().GetString("platform")
		guid, _ := cmd.Flags().GetString("guid")
		reportPath, _ := cmd.Flags().GetString("report")
		return runMobileGenerate(cmd.Context(), mobileOptions{
			cfg:         configFrom(cmd).Mobile,
			packagePath: args[0],
			platform:    platform,
			guid:        guid,
			reportPath:  reportPath,
			json:        jsonOutput(cmd),
		}, cmd.OutOrStdout())
	},
}

var mobileShowCmd = &cobra.Command{
	Use:   "show <guid>",
	Short: "Print a stored appendix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if !cmd.Flags().Changed("limit") {
			limit = configFrom(cmd).Content.Limit
		}
		return runMobileShow(mobileOptions{
			cfg:   configFrom(cmd).Mobile,
			guid:  args[0],
			limit: limit,
			json:  jsonOutput(cmd),
		}, cmd.OutOrStdout())
	},
}

var mobileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the build GUIDs with a stored appendix",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMobileList(mobileOptions{cfg: configFrom(cmd).Mobile, json: jsonOutput(cmd)}, cmd.OutOrStdout())
	},
}

func init() {
	for _, c := range []*cobra.Command{mobileAnalyzeCmd, mobileGenerateCmd} {
		c.Flags().String("platform", "", "android or apple (default from the package extension)")
	}
	for _, c := range []*cobra.Command{mobileAnalyzeCmd, mobileShowCmd} {
		c.Flags().IntP("limit", "n", 0, "Files printed (default from config)")
	}
	mobileGenerateCmd.Flags().String("guid", "", "Build GUID the appendix belongs to")
	mobileGenerateCmd.Flags().String("report", "", "Build report to take the GUID from")
	mobileGenerateCmd.MarkFlagsOneRequired("guid", "report")
	mobileGenerateCmd.MarkFlagsMutuallyExclusive("guid", "report")

	mobileCmd.AddCommand(mobileAnalyzeCmd, mobileGenerateCmd, mobileShowCmd, mobileListCmd)
	rootCmd.AddCommand(mobileCmd)
}

type mobileOptions struct {
	cfg         config.MobileOptions
	packagePath string
	platform    string
	guid        string
	reportPath  string
	limit       int
	json        bool
	// runner overrides the external tool runner.
	runner mobile.Runner
}

func platformFor(opts mobileOptions) (string, error) {
	if opts.platform != "" {
		switch p := strings.ToLower(opts.platform); p {
		case "android", "apple":
			return p, nil
		}
		return "", fmt.Errorf("unknown platform %q", opts.platform)
	}
	switch strings.ToLower(filepath.Ext(opts.packagePath)) {
	case ".apk", ".aab":
		return "android", nil
	case ".ipa":
		return "apple", nil
	}
	return "", fmt.Errorf("cannot tell the platform of %s; use --platform", opts.packagePath)
}

func newAnalyzers(cfg config.MobileOptions, runner mobile.Runner) (android, apple *mobile.Analyzer) {
	if runner == nil {
		runner = mobile.NewExecRunner(time.Duration(cfg.ToolTimeout))
	}
	android = mobile.NewAnalyzer(&mobile.Android{
		SDKRoot:    cfg.SDKRoot,
		JavaHome:   cfg.JavaHome,
		Bundletool: cfg.Bundletool,
		Runner:     runner,
	})
	apple = mobile.NewAnalyzer(&mobile.Apple{
		FileTool: cfg.FileTool,
		SizeTool: cfg.SizeTool,
		Runner:   runner,
	})
	return android, apple
}

func runMobileAnalyze(ctx context.Context, opts mobileOptions, w io.Writer) error {
	platform, err := platformFor(opts)
	if err != nil {
		return err
	}
	android, apple := newAnalyzers(opts.cfg, opts.runner)
	analyzer := android
	if platform == "apple" {
		analyzer = apple
	}
	app, err := mobile.BuildAppendix(ctx, opts.packagePath, analyzer)
	if err != nil {
		return err
	}
	if opts.json {
		return writeJSON(w, app)
	}
	return render.Appendix(w, app, opts.limit)
}

func runMobileGenerate(ctx context.Context, opts mobileOptions, w io.Writer) error {
	platform, err := platformFor(opts)
	if err != nil {
		return err
	}
	guid := opts.guid
	if opts.reportPath != "" {
		rep, err := report.Load(opts.reportPath)
		if err != nil {
			return err
		}
		guid = rep.Summary.GUID
	}

	store, err := mobile.NewStore(opts.cfg.AppendixDir, opts.cfg.CacheItems)
	if err != nil {
		return err
	}
	defer store.Close()

	android, apple := newAnalyzers(opts.cfg, opts.runner)
	gen := &mobile.Generator{Store: store, Android: android, Apple: apple}

	var app *mobile.Appendix
	if platform == "apple" {
		app, err = gen.GenerateApple(ctx, opts.packagePath, guid)
	} else {
		app, err = gen.GenerateAndroid(ctx, opts.packagePath, guid)
	}
	if err != nil {
		return err
	}
	if opts.json {
		return writeJSON(w, app)
	}
	key, _ := mobile.CanonicalKey(guid)
	_, err = fmt.Fprintf(w, "Stored appendix %s in %s\n", key, store.Dir())
	return err
}

func runMobileShow(opts mobileOptions, w io.Writer) error {
	store, err := mobile.NewStore(opts.cfg.AppendixDir, opts.cfg.CacheItems)
	if err != nil {
		return err
	}
	defer store.Close()

	app, err := store.Load(opts.guid)
	if err != nil {
		return err
	}
	if opts.json {
		return writeJSON(w, app)
	}
	return render.Appendix(w, app, opts.limit)
}

func runMobileList(opts mobileOptions, w io.Writer) error {
	store, err := mobile.NewStore(opts.cfg.AppendixDir, opts.cfg.CacheItems)
	if err != nil {
		return err
	}
	defer store.Close()

	keys, err := store.Keys()
	if err != nil {
		return err
	}
	if opts.json {
		return writeJSON(w, keys)
	}
	for _, k := range keys {
		if _, err := fmt.Fprintln(w, k); err != nil {
			return err
		}
	}
	return nil
}
