package content

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

var csvHeader = []string{"SourceAssetPath", "OutputFile", "Type", "Size", "ObjectCount", "Extension", "ArchivePath"}

var errCSVHeader = errors.New("unexpected csv header")

// WriteCSV writes one row per entry. Fields holding a comma, quote or
// newline are quoted with inner quotes doubled.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, e := range entries {
		record := []string{
			e.Path,
			e.OutputFile,
			e.Type,
			strconv.FormatUint(e.Size, 10),
			strconv.Itoa(e.ObjectCount),
			e.Extension,
			e.InternalArchivePath,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the entries to a file.
func SaveCSV(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv file: %w", err)
	}
	if err := WriteCSV(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCSV parses a file written by WriteCSV. Source asset ids are not
// part of the export and come back empty.
func ReadCSV(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	for i, name := range csvHeader {
		if header[i] != name {
			return nil, fmt.Errorf("%w: column %d is %q", errCSVHeader, i, header[i])
		}
	}

	var entries []Entry
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row: %w", err)
		}
		size, err := strconv.ParseUint(record[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing size %q: %w", record[3], err)
		}
		count, err := strconv.Atoi(record[4])
		if err != nil {
			return nil, fmt.Errorf("parsing object count %q: %w", record[4], err)
		}
		entries = append(entries, Entry{
			Path:                record[0],
			OutputFile:          record[1],
			Type:                record[2],
			Size:                size,
			ObjectCount:         count,
			Extension:           record[5],
			InternalArchivePath: record[6],
		})
	}
}
