// Package config loads buildlens settings from JSON files and the
// environment.
package config

import (
	"cmp"
	"slices"
	"time"
)

// Config is the merged buildlens configuration.
type Config struct {
	Schema     string            `json:"$schema,omitempty"`
	Content    ContentOptions    `json:"content,omitzero" jsonschema:"description=Content analysis settings"`
	Duplicates DuplicatesOptions `json:"duplicates,omitzero" jsonschema:"description=Duplicate asset detection settings"`
	Mobile     MobileOptions     `json:"mobile,omitzero" jsonschema:"description=Mobile package analysis settings"`
	Bundles    BundlesOptions    `json:"bundles,omitzero" jsonschema:"description=Incremental AssetBundle build settings"`
	Log        LogOptions        `json:"log,omitzero" jsonschema:"description=Logging settings"`
}

// ContentOptions configures content analysis.
type ContentOptions struct {
	// MaxEntries caps the number of analysis rows. Zero means unbounded.
	MaxEntries int `json:"max_entries,omitempty" jsonschema:"description=Maximum number of content rows kept (0 = unbounded)"`
	// Limit caps the rows printed per table.
	Limit int `json:"limit,omitempty" jsonschema:"description=Rows printed per table (0 = all)"`
}

func (o ContentOptions) merge(t ContentOptions) ContentOptions {
	o.MaxEntries = cmp.Or(t.MaxEntries, o.MaxEntries)
	o.Limit = cmp.Or(t.Limit, o.Limit)
	return o
}

// DuplicatesOptions configures duplicate detection.
type DuplicatesOptions struct {
	// Ignore holds doublestar patterns of asset paths to leave out.
	Ignore []string `json:"ignore,omitempty" jsonschema:"description=Glob patterns of asset paths excluded from duplicate detection"`
	// ScriptExtensions replaces the default script extension list.
	ScriptExtensions []string `json:"script_extensions,omitempty" jsonschema:"description=File extensions treated as scripts and skipped (default .cs)"`
}

func (o DuplicatesOptions) merge(t DuplicatesOptions) DuplicatesOptions {
	o.Ignore = sortedCompact(append(o.Ignore, t.Ignore...))
	if len(t.ScriptExtensions) > 0 {
		o.ScriptExtensions = t.ScriptExtensions
	}
	return o
}

// MobileOptions locates the external tools used for mobile packages.
type MobileOptions struct {
	SDKRoot  string `json:"sdk_root,omitempty" jsonschema:"description=Android SDK root (falls back to ANDROID_SDK_ROOT)"`
	JavaHome string `json:"java_home,omitempty" jsonschema:"description=JDK used to run bundletool (falls back to JAVA_HOME)"`
	// Bundletool is a bundletool jar or a directory holding exactly one.
	Bundletool string `json:"bundletool,omitempty" jsonschema:"description=Path to bundletool jar or its directory"`
	FileTool   string `json:"file_tool,omitempty" jsonschema:"description=Command used to list Mach-O architectures (default file)"`
	SizeTool   string `json:"size_tool,omitempty" jsonschema:"description=Command used to read Mach-O segment sizes (default size)"`
	// ToolTimeout bounds every external tool invocation.
	ToolTimeout Duration `json:"tool_timeout,omitempty" jsonschema:"type=string,description=Timeout for external tools such as 5m or 90s"`
	AppendixDir string   `json:"appendix_dir,omitempty" jsonschema:"description=Directory of generated build appendices"`
	CacheItems  int      `json:"cache_items,omitempty" jsonschema:"description=Appendices kept in memory"`
}

func (o MobileOptions) merge(t MobileOptions) MobileOptions {
	o.SDKRoot = cmp.Or(t.SDKRoot, o.SDKRoot)
	o.JavaHome = cmp.Or(t.JavaHome, o.JavaHome)
	o.Bundletool = cmp.Or(t.Bundletool, o.Bundletool)
	o.FileTool = cmp.Or(t.FileTool, o.FileTool)
	o.SizeTool = cmp.Or(t.SizeTool, o.SizeTool)
	o.ToolTimeout = cmp.Or(t.ToolTimeout, o.ToolTimeout)
	o.AppendixDir = cmp.Or(t.AppendixDir, o.AppendixDir)
	o.CacheItems = cmp.Or(t.CacheItems, o.CacheItems)
	return o
}

// BundlesOptions configures incremental build snapshots.
type BundlesOptions struct {
	SnapshotFile string `json:"snapshot_file,omitempty" jsonschema:"description=Default snapshot file name inside the build folder"`
	// FailOnSuspicious makes compare exit with an error when a change
	// points at a broken incremental build.
	FailOnSuspicious bool `json:"fail_on_suspicious,omitempty" jsonschema:"description=Fail compare when suspicious changes are found"`
}

func (o BundlesOptions) merge(t BundlesOptions) BundlesOptions {
	o.SnapshotFile = cmp.Or(t.SnapshotFile, o.SnapshotFile)
	o.FailOnSuspicious = o.FailOnSuspicious || t.FailOnSuspicious
	return o
}

// LogOptions configures the log output.
type LogOptions struct {
	// File switches logging to a rotated JSON file.
	File       string `json:"file,omitempty" jsonschema:"description=Write JSON logs to this file instead of stderr"`
	Debug      bool   `json:"debug,omitempty" jsonschema:"description=Enable debug logging"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" jsonschema:"description=Rotate the log file after this many megabytes"`
	MaxBackups int    `json:"max_backups,omitempty" jsonschema:"description=Rotated log files kept"`
	MaxAgeDays int    `json:"max_age_days,omitempty" jsonschema:"description=Days rotated log files are kept"`
}

func (o LogOptions) merge(t LogOptions) LogOptions {
	o.File = cmp.Or(t.File, o.File)
	o.Debug = o.Debug || t.Debug
	o.MaxSizeMB = cmp.Or(t.MaxSizeMB, o.MaxSizeMB)
	o.MaxBackups = cmp.Or(t.MaxBackups, o.MaxBackups)
	o.MaxAgeDays = cmp.Or(t.MaxAgeDays, o.MaxAgeDays)
	return o
}

func (c Config) merge(t Config) Config {
	c.Content = c.Content.merge(t.Content)
	c.Duplicates = c.Duplicates.merge(t.Duplicates)
	c.Mobile = c.Mobile.merge(t.Mobile)
	c.Bundles = c.Bundles.merge(t.Bundles)
	c.Log = c.Log.merge(t.Log)
	return c
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Content: ContentOptions{
			MaxEntries: 100_000,
			Limit:      25,
		},
		Duplicates: DuplicatesOptions{
			ScriptExtensions: []string{".cs"},
		},
		Mobile: MobileOptions{
			FileTool:    "file",
			SizeTool:    "size",
			ToolTimeout: Duration(5 * time.Minute),
			AppendixDir: "appendices",
			CacheItems:  64,
		},
		Bundles: BundlesOptions{
			SnapshotFile: "buildlens-snapshot.json",
		},
		Log: LogOptions{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
	}
}

func sortedCompact(s []string) []string {
	s = slices.Clone(s)
	slices.Sort(s)
	return slices.Compact(s)
}
