package mobile

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// AndroidAppType distinguishes installable APKs from app bundles.
type AndroidAppType int

const (
	APK AndroidAppType = iota
	AAB
)

func (t AndroidAppType) String() string {
	if t == AAB {
		return "aab"
	}
	return "apk"
}

const nativeLibName = "libunity.so"

// ApplicationType classifies an Android package by its marker entry.
func ApplicationType(pkg *Package) (AndroidAppType, error) {
	if _, ok := pkg.Dir.Find(bundleConfigEntry); ok {
		return AAB, nil
	}
	if _, ok := pkg.Dir.Find(androidManifestEntry); ok {
		return APK, nil
	}
	return 0, fmt.Errorf("%w: %s has neither %s nor %s", ErrValidation, pkg.Path, bundleConfigEntry, androidManifestEntry)
}

// Android estimates download sizes with the Android SDK tooling:
// apkanalyzer for APKs and bundletool for app bundles.
type Android struct {
	// SDKRoot locates apkanalyzer.
	SDKRoot string
	// JavaHome locates the java executable; empty means java on PATH.
	JavaHome string
	// Bundletool is the bundletool jar, or a directory holding exactly
	// one bundletool*.jar.
	Bundletool string
	Runner     Runner
}

// Name implements Platform.
func (a *Android) Name() string { return "android" }

// Validate implements Platform.
func (a *Android) Validate(pkg *Package) error {
	_, err := ApplicationType(pkg)
	return err
}

// ArchitectureInfo implements Platform. Architectures are the ABI
// directories holding the engine's native library.
func (a *Android) ArchitectureInfo(ctx context.Context, pkg *Package) ([]ArchInfo, error) {
	var archs []ArchInfo
	for _, e := range pkg.Dir.Entries {
		if e.BaseName() != nativeLibName || !strings.Contains(e.Name, "/") {
			continue
		}
		abi := path.Base(path.Dir(e.Name))
		archs = append(archs, ArchInfo{Name: abi})
	}
	if len(archs) == 0 {
		return nil, detectionError("no %s found in %s", nativeLibName, pkg.Path)
	}

	appType, err := ApplicationType(pkg)
	if err != nil {
		return nil, err
	}
	switch appType {
	case AAB:
		if err := a.bundleDownloadSizes(ctx, pkg, archs); err != nil {
			return nil, err
		}
	default:
		size, err := a.apkDownloadSize(ctx, pkg)
		if err != nil {
			return nil, err
		}
		for i := range archs {
			archs[i].DownloadSize = size
		}
	}
	return archs, nil
}

func (a *Android) apkDownloadSize(ctx context.Context, pkg *Package) (int64, error) {
	tool, err := a.apkanalyzerPath()
	if err != nil {
		return 0, err
	}
	out, err := a.Runner.Run(ctx, tool, "apk", "download-size", pkg.Path)
	if err != nil {
		return 0, err
	}
	size, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return 0, &ToolError{Tool: tool, Output: out, Err: fmt.Errorf("parsing download size: %w", err)}
	}
	return size, nil
}

func (a *Android) bundleDownloadSizes(ctx context.Context, pkg *Package, archs []ArchInfo) error {
	jar, err := a.bundletoolPath()
	if err != nil {
		return err
	}
	java := a.javaPath()

	return withTempDir("buildlens-aab-*", func(dir string) error {
		stem := strings.TrimSuffix(filepath.Base(pkg.Path), filepath.Ext(pkg.Path))
		apks := filepath.Join(dir, stem+".apks")

		if _, err := a.Runner.Run(ctx, java, "-jar", jar, "build-apks", "--bundle", pkg.Path, "--output", apks); err != nil {
			return err
		}
		out, err := a.Runner.Run(ctx, java, "-jar", jar, "get-size", "total", "--apks", apks, "--dimensions=ABI")
		if err != nil {
			return err
		}
		return parseBundleSizes(out, archs)
	})
}

// parseBundleSizes fills the download sizes from bundletool's
// comma-separated get-size output. The last field of a line is the size.
func parseBundleSizes(out string, archs []ArchInfo) error {
	seen := make(map[string]bool, len(archs))
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Split(strings.TrimSpace(sc.Text()), ",")
		if len(fields) < 2 {
			continue
		}
		size, err := strconv.ParseInt(strings.TrimSpace(fields[len(fields)-1]), 10, 64)
		for i := range archs {
			if !containsField(fields[:len(fields)-1], archs[i].Name) {
				continue
			}
			if err != nil {
				return &ToolError{Tool: "bundletool", Output: out, Err: fmt.Errorf("size of %s: %w", archs[i].Name, err)}
			}
			seen[archs[i].Name] = true
			archs[i].DownloadSize = size
		}
	}
	for _, arch := range archs {
		if !seen[arch.Name] {
			return &ToolError{Tool: "bundletool", Output: out, Err: fmt.Errorf("architecture %s missing from size report", arch.Name)}
		}
	}
	return nil
}

func containsField(fields []string, value string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) == value {
			return true
		}
	}
	return false
}

func (a *Android) apkanalyzerPath() (string, error) {
	if a.SDKRoot == "" {
		return "", &ToolError{Tool: "apkanalyzer", ExitCode: -1, Err: fmt.Errorf("%w: android sdk root not configured", ErrToolNotFound)}
	}
	name := "apkanalyzer"
	if runtime.GOOS == "windows" {
		name += ".bat"
	}
	candidates := []string{
		filepath.Join(a.SDKRoot, "cmdline-tools", "latest", "bin", name),
		filepath.Join(a.SDKRoot, "tools", "bin", name),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", &ToolError{Tool: "apkanalyzer", ExitCode: -1, Err: fmt.Errorf("%w: not found under %s", ErrToolNotFound, a.SDKRoot)}
}

func (a *Android) javaPath() string {
	if a.JavaHome == "" {
		return "java"
	}
	name := "java"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(a.JavaHome, "bin", name)
}

func (a *Android) bundletoolPath() (string, error) {
	notFound := func(format string, args ...any) error {
		return &ToolError{Tool: "bundletool", ExitCode: -1, Err: fmt.Errorf("%w: %s", ErrToolNotFound, fmt.Sprintf(format, args...))}
	}
	if a.Bundletool == "" {
		return "", notFound("bundletool location not configured")
	}
	info, err := os.Stat(a.Bundletool)
	if err != nil {
		return "", notFound("%v", err)
	}
	if !info.IsDir() {
		return a.Bundletool, nil
	}

	matches, err := doublestar.FilepathGlob(filepath.Join(a.Bundletool, "bundletool*.jar"))
	if err != nil {
		return "", notFound("%v", err)
	}
	if len(matches) != 1 {
		return "", notFound("expected one bundletool*.jar in %s, found %d", a.Bundletool, len(matches))
	}
	return matches[0], nil
}
