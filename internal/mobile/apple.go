package mobile

import (
	"bufio"
	"cmp"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/buildlens/buildlens/internal/zipdir"
)

const frameworkEntrySuffix = "Frameworks/UnityFramework.framework/UnityFramework"

// Mach-O magic numbers, as read big-endian from the first four bytes.
var machOMagics = []uint32{
	0xfeedface, 0xcefaedfe, // 32-bit
	0xfeedfacf, 0xcffaedfe, // 64-bit
	0xcafebabe, 0xbebafeca, // universal
}

// Apple estimates App Store download sizes of IPAs from the segment sizes
// of the engine framework binary.
type Apple struct {
	// FileTool and SizeTool default to file and size on PATH.
	FileTool string
	SizeTool string
	Runner   Runner
}

// Name implements Platform.
func (a *Apple) Name() string { return "apple" }

// Validate implements Platform.
func (a *Apple) Validate(pkg *Package) error {
	for _, e := range pkg.Dir.Entries {
		if e.BaseName() == infoPlistName {
			return nil
		}
	}
	return fmt.Errorf("%w: %s has no %s", ErrValidation, pkg.Path, infoPlistName)
}

// ArchitectureInfo implements Platform. The estimate per architecture is
// the package without the framework, plus the framework's text segment
// and a fifth of its data segment. The factor is empirical.
func (a *Apple) ArchitectureInfo(ctx context.Context, pkg *Package) ([]ArchInfo, error) {
	framework, ok := findFramework(pkg)
	if !ok {
		return nil, detectionError("no UnityFramework binary in %s", pkg.Path)
	}
	baseSize := pkg.Size - int64(framework.CompressedSize)

	var archs []ArchInfo
	err := withTempDir("buildlens-ipa-*", func(dir string) error {
		binPath := filepath.Join(dir, "UnityFramework")
		if err := pkg.extractEntry(framework.Name, binPath); err != nil {
			return detectionError("%v", err)
		}
		if err := checkMachO(binPath); err != nil {
			return detectionError("%v", err)
		}

		fileTool := cmp.Or(a.FileTool, "file")
		out, err := a.Runner.Run(ctx, fileTool, "-b", binPath)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrArchitectureDetection, err)
		}
		names := parseFileArchitectures(out)
		if len(names) == 0 {
			return detectionError("no arm architectures reported for %s", framework.Name)
		}

		sizeTool := cmp.Or(a.SizeTool, "size")
		for _, name := range names {
			out, err := a.Runner.Run(ctx, sizeTool, "-m", "-arch", name, binPath)
			if err != nil {
				return err
			}
			seg, err := parseSegments(out)
			if err != nil {
				return &ToolError{Tool: sizeTool, Output: out, Err: err}
			}
			archs = append(archs, ArchInfo{
				Name:         name,
				DownloadSize: baseSize + seg.Text + seg.Data/5,
				Segments:     seg,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return archs, nil
}

func findFramework(pkg *Package) (zipdir.Entry, bool) {
	for _, e := range pkg.Dir.Entries {
		if strings.HasSuffix(e.Name, frameworkEntrySuffix) {
			return e, true
		}
	}
	return zipdir.Entry{}, false
}

func checkMachO(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return fmt.Errorf("reading magic: %w", err)
	}
	if !slices.Contains(machOMagics, binary.BigEndian.Uint32(magic[:])) {
		return fmt.Errorf("%s is not a Mach-O binary", filepath.Base(path))
	}
	return nil
}

// parseFileArchitectures picks the arm slice names out of `file -b`
// output: the last word of each line, underscores removed, in order of
// first appearance.
func parseFileArchitectures(out string) []string {
	var names []string
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		word := strings.Trim(line[strings.LastIndexByte(line, ' ')+1:], "[]")
		if !strings.HasPrefix(word, "arm") {
			continue
		}
		name := strings.ReplaceAll(word, "_", "")
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

// parseSegments reads `size -m` output lines of the form
// "Segment __TEXT: 1234".
func parseSegments(out string) (*Segments, error) {
	seg := &Segments{}
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		rest, ok := strings.CutPrefix(line, "Segment ")
		if !ok {
			continue
		}
		name, value, ok := strings.Cut(rest, ":")
		if !ok {
			continue
		}
		var dst *int64
		switch name {
		case "__TEXT":
			dst = &seg.Text
		case "__DATA":
			dst = &seg.Data
		case "__LLVM":
			dst = &seg.LLVM
		case "__LINKEDIT":
			dst = &seg.Linkedit
		default:
			continue
		}
		fields := strings.Fields(value)
		if len(fields) == 0 {
			return nil, fmt.Errorf("segment %s has no size", name)
		}
		n, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %s size: %w", name, err)
		}
		*dst = n
	}
	return seg, nil
}
