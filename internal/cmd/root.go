// Package cmd implements the buildlens command line.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"charm.land/fang/v2"
	"github.com/MakeNowJust/heredoc"
	"github.com/buildlens/buildlens/internal/config"
	"github.com/buildlens/buildlens/internal/log"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "devel"

type configKey struct{}

var rootCmd = &cobra.Command{
	Use:   "buildlens",
	Short: "Inspect game build reports and mobile packages",
	Long: heredoc.Doc(`
		buildlens explains where the bytes of a game build go.

		It reads the structured build report the engine writes next to a
		player or AssetBundle build, breaks the content down by asset, type
		and output file, finds assets duplicated across AssetBundles and
		estimates per-architecture download sizes of APK, AAB and IPA
		packages.
	`),
	Example: heredoc.Doc(`
		# Largest assets of a build
		buildlens content Library/BuildReport.json

		# Assets packed into more than one bundle
		buildlens duplicates --ignore 'Assets/Shaders/**' report.yaml

		# Download size per ABI of an Android App Bundle
		buildlens mobile analyze game.aab
	`),
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to an additional config file")
	rootCmd.PersistentFlags().StringP("cwd", "C", "", "Working directory used to find config files")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-file", "", "Write JSON logs to this file")
	rootCmd.PersistentFlags().Bool("json", false, "Print results as JSON")
}

// Execute runs the root command.
func Execute() {
	err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt),
	)
	_ = log.Close()
	if err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := log.Setup(log.Options{
		File:       cfg.Log.File,
		Debug:      cfg.Log.Debug,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}); err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cwd, _ := cmd.Flags().GetString("cwd")
	explicit, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	logFile, _ := cmd.Flags().GetString("log-file")

	if cwd == "" {
		var err error
		if cwd, err = os.Getwd(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(cwd, explicit)
	if err != nil {
		return nil, err
	}
	cfg.Log.Debug = cfg.Log.Debug || debug
	if logFile != "" {
		cfg.Log.File = logFile
	}
	return cfg, nil
}

// configFrom returns the configuration installed by setup, or the
// defaults when the command runs outside the root command.
func configFrom(cmd *cobra.Command) *config.Config {
	if cmd.Context() != nil {
		if cfg, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
			return cfg
		}
	}
	cfg := config.Default()
	return &cfg
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		bts, err := config.JSONSchema()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(append(bts, '\n'))
		return err
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeJSON(cmd.OutOrStdout(), configFrom(cmd))
	},
}

func init() {
	configCmd.AddCommand(configSchemaCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}

var errSuspiciousChanges = errors.New("suspicious incremental build changes")
