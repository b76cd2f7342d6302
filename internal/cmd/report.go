package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/buildlens/buildlens/internal/archivemap"
	"github.com/buildlens/buildlens/internal/content"
	"github.com/buildlens/buildlens/internal/duplicates"
	"github.com/buildlens/buildlens/internal/render"
	"github.com/buildlens/buildlens/internal/report"
	"github.com/spf13/cobra"
)

type contentOptions struct {
	reportPath string
	maxEntries int
	limit      int
	csvPath    string
	sqlitePath string
	json       bool
}

var contentCmd = &cobra.Command{
	Use:   "content <report>",
	Short: "Break build content down by asset, type and output file",
	Long: heredoc.Doc(`
		Aggregate the packed objects of a build report into one row per
		source asset, type and output file. Rows are sorted by size, largest
		first. AssetBundle builds report the bundle each row ends up in.
	`),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runContent(cmd.Context(), loadContentOptions(cmd, args[0]), cmd.OutOrStdout())
	},
}

func init() {
	contentCmd.Flags().Int("max-entries", 0, "Maximum rows kept (default from config)")
	contentCmd.Flags().IntP("limit", "n", 0, "Rows printed per table (default from config)")
	contentCmd.Flags().String("csv", "", "Also write the rows to this CSV file")
	contentCmd.Flags().String("sqlite", "", "Also export the analysis to this SQLite database")
	rootCmd.AddCommand(contentCmd)
}

func loadContentOptions(cmd *cobra.Command, reportPath string) contentOptions {
	cfg := configFrom(cmd)
	maxEntries, _ := cmd.Flags().GetInt("max-entries")
	limit, _ := cmd.Flags().GetInt("limit")
	csvPath, _ := cmd.Flags().GetString("csv")
	sqlitePath, _ := cmd.Flags().GetString("sqlite")

	if !cmd.Flags().Changed("max-entries") {
		maxEntries = cfg.Content.MaxEntries
	}
	if !cmd.Flags().Changed("limit") {
		limit = cfg.Content.Limit
	}
	return contentOptions{
		reportPath: reportPath,
		maxEntries: maxEntries,
		limit:      limit,
		csvPath:    csvPath,
		sqlitePath: sqlitePath,
		json:       jsonOutput(cmd),
	}
}

func runContent(ctx context.Context, opts contentOptions, w io.Writer) error {
	rep, err := report.Load(opts.reportPath)
	if err != nil {
		return err
	}
	a := content.Analyze(rep, archivemap.Build(rep), opts.maxEntries)
	slog.Debug("Analyzed content", "report", opts.reportPath, "entries", len(a.Entries), "truncated", a.Truncated)

	if opts.csvPath != "" {
		if err := content.SaveCSV(opts.csvPath, a.Entries); err != nil {
			return err
		}
	}
	if opts.sqlitePath != "" {
		id, err := content.ExportSQLite(ctx, opts.sqlitePath, rep.Summary, a)
		if err != nil {
			return err
		}
		slog.Info("Exported content", "database", opts.sqlitePath, "build", id)
	}

	if opts.json {
		return writeJSON(w, a)
	}
	return render.Content(w, a, opts.limit)
}

type summaryOptions struct {
	reportPath string
	limit      int
	json       bool
}

var summaryCmd = &cobra.Command{
	Use:   "summary <report>",
	Short: "Print file, object and type statistics of a build",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if !cmd.Flags().Changed("limit") {
			limit = configFrom(cmd).Content.Limit
		}
		return runSummary(summaryOptions{
			reportPath: args[0],
			limit:      limit,
			json:       jsonOutput(cmd),
		}, cmd.OutOrStdout())
	},
}

func init() {
	summaryCmd.Flags().IntP("limit", "n", 0, "Rows printed per table (default from config)")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(opts summaryOptions, w io.Writer) error {
	rep, err := report.Load(opts.reportPath)
	if err != nil {
		return err
	}
	stats := content.Summarize(rep)
	if opts.json {
		return writeJSON(w, stats)
	}
	return render.Summary(w, stats, opts.limit)
}

type duplicatesOptions struct {
	reportPath       string
	ignore           []string
	scriptExtensions []string
	limit            int
	json             bool
}

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates <report>",
	Short: "Find assets packed into more than one AssetBundle",
	Long: heredoc.Doc(`
		List source assets whose objects were copied into several
		AssetBundles because no bundle explicitly owns them. The duplicated
		size counts every copy beyond the first. Scripts, bundle manifests
		and built-in resources are never reported.
	`),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFrom(cmd)
		ignore, _ := cmd.Flags().GetStringSlice("ignore")
		limit, _ := cmd.Flags().GetInt("limit")
		if !cmd.Flags().Changed("limit") {
			limit = cfg.Content.Limit
		}
		return runDuplicates(duplicatesOptions{
			reportPath:       args[0],
			ignore:           append(ignore, cfg.Duplicates.Ignore...),
			scriptExtensions: cfg.Duplicates.ScriptExtensions,
			limit:            limit,
			json:             jsonOutput(cmd),
		}, cmd.OutOrStdout())
	},
}

func init() {
	duplicatesCmd.Flags().StringSlice("ignore", nil, "Glob patterns of asset paths to skip")
	duplicatesCmd.Flags().IntP("limit", "n", 0, "Rows printed (default from config)")
	rootCmd.AddCommand(duplicatesCmd)
}

func runDuplicates(opts duplicatesOptions, w io.Writer) error {
	rep, err := report.Load(opts.reportPath)
	if err != nil {
		return err
	}
	var detectOpts []duplicates.Option
	if len(opts.ignore) > 0 {
		detectOpts = append(detectOpts, duplicates.WithIgnore(opts.ignore...))
	}
	if len(opts.scriptExtensions) > 0 {
		detectOpts = append(detectOpts, duplicates.WithScriptExtensions(opts.scriptExtensions...))
	}
	res := duplicates.Detect(rep, archivemap.Build(rep), detectOpts...)
	if opts.json {
		return writeJSON(w, res)
	}
	return render.Duplicates(w, res, opts.limit)
}

type queryOptions struct {
	dbPath  string
	pattern string
	limit   int
	json    bool
}

var queryCmd = &cobra.Command{
	Use:   "query <database> <pattern>",
	Short: "Search the last content export for asset paths matching a regular expression",
	Example: heredoc.Doc(`
		buildlens content --sqlite content.db report.json
		buildlens query content.db '\.png$'
	`),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if !cmd.Flags().Changed("limit") {
			limit = configFrom(cmd).Content.Limit
		}
		return runQuery(cmd.Context(), queryOptions{
			dbPath:  args[0],
			pattern: args[1],
			limit:   limit,
			json:    jsonOutput(cmd),
		}, cmd.OutOrStdout())
	},
}

func init() {
	queryCmd.Flags().IntP("limit", "n", 0, "Rows returned (default from config)")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(ctx context.Context, opts queryOptions, w io.Writer) error {
	if _, err := os.Stat(opts.dbPath); err != nil {
		return err
	}
	entries, err := content.QuerySQLite(ctx, opts.dbPath, opts.pattern, opts.limit)
	if err != nil {
		return err
	}
	if opts.json {
		return writeJSON(w, entries)
	}
	return render.Entries(w, entries)
}
