package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
)

const appName = "buildlens"

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("duration must be a string like \"90s\": %s", data)
		}
		*d = Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "string",
		Examples: []any{"90s", "5m"},
	}
}

// LookupPaths lists the configuration files read, lowest priority first:
// the user config and then the project config in workDir.
func LookupPaths(workDir string) []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, appName, appName+".json"))
	}
	return append(paths,
		filepath.Join(workDir, appName+".json"),
		filepath.Join(workDir, "."+appName+".json"),
	)
}

// Load merges the defaults, the files from LookupPaths, the explicit file
// when given, and finally the environment. A .env file in the working
// directory is loaded first.
func Load(workDir, explicit string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(workDir, ".env"))

	var data [][]byte
	for _, path := range LookupPaths(workDir) {
		bts, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		slog.Debug("Loaded config", "path", path)
		data = append(data, bts)
	}
	if explicit != "" {
		bts, err := os.ReadFile(explicit)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", explicit, err)
		}
		data = append(data, bts)
	}

	cfg, err := loadFromBytes(data)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func loadFromBytes(data [][]byte) (*Config, error) {
	cfg := Default()
	for i, bts := range data {
		if len(bts) == 0 {
			continue
		}
		var c Config
		if err := json.Unmarshal(bts, &c); err != nil {
			return nil, fmt.Errorf("decoding config %d: %w", i, err)
		}
		cfg = cfg.merge(c)
	}
	return &cfg, nil
}

// applyEnv fills tool locations the config files left empty and lets
// BUILDLENS_* variables override the rest.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	fill := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" && *dst == "" {
			*dst = v
		}
	}
	override := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	fill(&c.Mobile.SDKRoot, "ANDROID_SDK_ROOT")
	fill(&c.Mobile.SDKRoot, "ANDROID_HOME")
	fill(&c.Mobile.JavaHome, "JAVA_HOME")
	override(&c.Mobile.Bundletool, "BUILDLENS_BUNDLETOOL")
	override(&c.Mobile.AppendixDir, "BUILDLENS_APPENDIX_DIR")
	override(&c.Log.File, "BUILDLENS_LOG_FILE")
	if v, ok := lookup("BUILDLENS_DEBUG"); ok && v != "" && v != "0" && v != "false" {
		c.Log.Debug = true
	}
}

// JSONSchema returns the JSON schema of the configuration file.
func JSONSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
		FieldNameTag:   "json",
	}
	s := r.Reflect(&Config{})
	s.Title = appName + " configuration"
	return json.MarshalIndent(s, "", "  ")
}
