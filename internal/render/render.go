// Package render formats analysis results as terminal tables.
package render

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/buildlens/buildlens/internal/content"
	"github.com/buildlens/buildlens/internal/duplicates"
	"github.com/buildlens/buildlens/internal/incremental"
	"github.com/buildlens/buildlens/internal/mobile"
	"github.com/dustin/go-humanize"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5A50A"))
)

// Size formats a byte count.
func Size(n uint64) string {
	return humanize.IBytes(n)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func limitRows(n, limit int) int {
	if limit > 0 && limit < n {
		return limit
	}
	return n
}

func writeTable(w io.Writer, title string, t *table.Table) error {
	if title != "" {
		if _, err := lipgloss.Fprintln(w, titleStyle.Render(title)); err != nil {
			return err
		}
	}
	_, err := lipgloss.Fprintln(w, t.String())
	return err
}

// Entries writes content rows as they are.
func Entries(w io.Writer, entries []content.Entry) error {
	return writeTable(w, "", entriesTable(entries))
}

func entriesTable(entries []content.Entry) *table.Table {
	t := newTable("Asset", "Type", "Output file", "Objects", "Size")
	for _, e := range entries {
		t.Row(e.Path, e.Type, e.OutputFile, strconv.Itoa(e.ObjectCount), Size(e.Size))
	}
	return t
}

// Content writes the largest entries followed by the per-type and
// per-output-file totals. limit caps the rows of each table.
func Content(w io.Writer, a *content.Analysis, limit int) error {
	entries := entriesTable(a.Entries[:limitRows(len(a.Entries), limit)])
	title := fmt.Sprintf("Content (%d entries, %s)", len(a.Entries), Size(a.TotalSize()))
	if err := writeTable(w, title, entries); err != nil {
		return err
	}
	if a.Truncated {
		if _, err := lipgloss.Fprintln(w, warnStyle.Render(fmt.Sprintf("Truncated at %d entries.", a.MaxEntries))); err != nil {
			return err
		}
	}
	if err := writeTable(w, "By type", totalsTable("Type", a.Types, limit)); err != nil {
		return err
	}
	return writeTable(w, "By output file", totalsTable("Output file", a.OutputFiles, limit))
}

func totalsTable(name string, totals []content.SizeTotal, limit int) *table.Table {
	t := newTable(name, "Size")
	for _, st := range totals[:limitRows(len(totals), limit)] {
		t.Row(st.Name, Size(st.Size))
	}
	return t
}

// Summary writes the build content statistics.
func Summary(w io.Writer, s *content.Statistics, limit int) error {
	overview := newTable("", "Count", "Size").
		Row("Serialized files", strconv.Itoa(s.SerializedFileCount), Size(s.TotalSerializedFileSize)).
		Row("  headers", "", Size(s.TotalHeaderSize)).
		Row("Resource files", strconv.Itoa(s.ResourceFileCount), Size(s.TotalResourceSize)).
		Row("Objects", strconv.Itoa(s.ObjectCount), "").
		Row("  internal", strconv.Itoa(s.InternalObjectCount), "").
		Row("Total", "", Size(s.TotalSize()))
	if err := writeTable(w, "Summary", overview); err != nil {
		return err
	}

	types := newTable("Type", "Objects", "Resources", "Size")
	for _, ts := range s.Types[:limitRows(len(s.Types), limit)] {
		types.Row(ts.Type, strconv.Itoa(ts.ObjectCount), strconv.Itoa(ts.ResourceCount), Size(ts.Size))
	}
	if err := writeTable(w, "By type", types); err != nil {
		return err
	}

	assets := newTable("Asset", "Objects", "Resources", "Size")
	for _, as := range s.Assets[:limitRows(len(s.Assets), limit)] {
		assets.Row(as.SourceAssetPath, strconv.Itoa(as.ObjectCount), strconv.Itoa(as.ResourceCount), Size(as.Size))
	}
	return writeTable(w, "By asset", assets)
}

// Duplicates writes the assets found in more than one archive.
func Duplicates(w io.Writer, r *duplicates.Result, limit int) error {
	if len(r.Assets) == 0 {
		_, err := lipgloss.Fprintln(w, "No duplicated assets.")
		return err
	}
	t := newTable("Asset", "Archives", "Total", "Duplicated")
	for _, a := range r.Assets[:limitRows(len(r.Assets), limit)] {
		t.Row(a.Path, strconv.Itoa(a.ArchiveCount()), Size(a.TotalSize), Size(a.DuplicateSize()))
	}
	title := fmt.Sprintf("Duplicates (%s of %s duplicated)", Size(r.DuplicateSize), Size(r.TotalSize))
	return writeTable(w, title, t)
}

// Appendix writes the architectures and largest files of a mobile
// package.
func Appendix(w io.Writer, app *mobile.Appendix, limit int) error {
	if len(app.Architectures) == 0 {
		if _, err := lipgloss.Fprintln(w, warnStyle.Render("No architecture data.")); err != nil {
			return err
		}
	} else {
		archs := newTable("Architecture", "Download size", "__TEXT", "__DATA")
		for _, a := range app.Architectures {
			text, data := "", ""
			if a.Segments != nil {
				text, data = signedSize(a.Segments.Text), signedSize(a.Segments.Data)
			}
			archs.Row(a.Name, signedSize(a.DownloadSize), text, data)
		}
		if err := writeTable(w, fmt.Sprintf("Package (%s)", Size(app.BuildSize)), archs); err != nil {
			return err
		}
	}

	files := newTable("File", "Compressed", "Uncompressed")
	for _, f := range largestFiles(app.Files, limit) {
		files.Row(f.Path, Size(f.CompressedSize), Size(f.UncompressedSize))
	}
	return writeTable(w, "Files", files)
}

// Changes writes an incremental build comparison.
func Changes(w io.Writer, changes []incremental.Change) error {
	t := newTable("Bundle", "Result").StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if col == 1 && row >= 0 && row < len(changes) && changes[row].Kind.Suspicious() {
			return cellStyle.Inherit(warnStyle)
		}
		return cellStyle
	})
	for _, c := range changes {
		t.Row(c.Path, string(c.Kind))
	}
	return writeTable(w, "Incremental build", t)
}

func signedSize(n int64) string {
	if n < 0 {
		return "-"
	}
	return Size(uint64(n))
}

func largestFiles(files []mobile.File, limit int) []mobile.File {
	sorted := slices.Clone(files)
	slices.SortStableFunc(sorted, func(a, b mobile.File) int {
		return cmp.Compare(b.CompressedSize, a.CompressedSize)
	})
	return sorted[:limitRows(len(sorted), limit)]
}
