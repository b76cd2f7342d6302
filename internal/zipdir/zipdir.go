// Package zipdir lists the entries of a ZIP-family archive (APK, AAB, IPA)
// from its central directory without decompressing anything.
package zipdir

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"strings"
)

// ErrFormat is returned when the file is not a readable ZIP archive.
var ErrFormat = errors.New("not a valid zip archive")

const (
	eocdSignature        = 0x06054b50
	eocdLen              = 22
	maxCommentLen        = 65535
	maxEOCDScan          = eocdLen + maxCommentLen
	cdSignature          = 0x02014b50
	cdHeaderLen          = 46
	zip64LocatorSig      = 0x07064b50
	zip64LocatorLen      = 20
	zip64EOCDSig         = 0x06064b50
	zip64EOCDLen         = 56
	zip64ExtraID         = 0x0001
	saturated16          = math.MaxUint16
	saturated32          = math.MaxUint32
	maxCentralDirEntries = 1 << 24
)

// Entry is one central directory record.
type Entry struct {
	Name             string `json:"name"`
	CompressedSize   uint64 `json:"compressedSize"`
	UncompressedSize uint64 `json:"uncompressedSize"`
}

// BaseName returns the last path element of the entry name.
func (e Entry) BaseName() string {
	return path.Base(e.Name)
}

// IsDir reports whether the entry is a directory marker.
func (e Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// Directory is the parsed central directory, in archive order.
type Directory struct {
	Size    int64
	Entries []Entry
}

// Find returns the entry with exactly the given name.
func (d *Directory) Find(name string) (Entry, bool) {
	for _, e := range d.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// FindSuffix returns every entry whose name ends in suffix.
func (d *Directory) FindSuffix(suffix string) []Entry {
	var out []Entry
	for _, e := range d.Entries {
		if strings.HasSuffix(e.Name, suffix) {
			out = append(out, e)
		}
	}
	return out
}

// Open reads the central directory of the archive at name.
func Open(name string) (*Directory, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	dir, err := Read(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return dir, nil
}

// Read parses the central directory of a size-byte archive.
func Read(r io.ReaderAt, size int64) (*Directory, error) {
	eocdOff, eocd, err := findEOCD(r, size)
	if err != nil {
		return nil, err
	}

	count := uint64(binary.LittleEndian.Uint16(eocd[10:]))
	cdOffset := uint64(binary.LittleEndian.Uint32(eocd[16:]))
	if count == saturated16 || cdOffset == saturated32 {
		if count, cdOffset, err = readZip64EOCD(r, eocdOff, count, cdOffset); err != nil {
			return nil, err
		}
	}
	if count > maxCentralDirEntries || cdOffset >= uint64(size) {
		return nil, fmt.Errorf("%w: central directory out of range", ErrFormat)
	}
	if count > (uint64(size)-cdOffset)/cdHeaderLen {
		return nil, fmt.Errorf("%w: %d entries do not fit the central directory", ErrFormat, count)
	}

	entries, err := readCentralDirectory(r, size, int64(cdOffset), int(count))
	if err != nil {
		return nil, err
	}
	return &Directory{Size: size, Entries: entries}, nil
}

// findEOCD scans backward from the end of the archive for the end of
// central directory record. The record may be followed by a comment of
// up to 64KiB.
func findEOCD(r io.ReaderAt, size int64) (int64, []byte, error) {
	if size < eocdLen {
		return 0, nil, fmt.Errorf("%w: file too small", ErrFormat)
	}
	window := min(size, maxEOCDScan)
	buf := make([]byte, window)
	start := size - window
	if _, err := r.ReadAt(buf, start); err != nil && !errors.Is(err, io.EOF) {
		return 0, nil, fmt.Errorf("reading archive tail: %w", err)
	}

	for i := len(buf) - eocdLen; i >= 0; i-- {
		if binary.LittleEndian.Uint32(buf[i:]) == eocdSignature {
			return start + int64(i), buf[i : i+eocdLen], nil
		}
	}
	return 0, nil, fmt.Errorf("%w: end of central directory not found", ErrFormat)
}

func readZip64EOCD(r io.ReaderAt, eocdOff int64, count, cdOffset uint64) (uint64, uint64, error) {
	locOff := eocdOff - zip64LocatorLen
	if locOff < 0 {
		return count, cdOffset, nil
	}
	loc := make([]byte, zip64LocatorLen)
	if _, err := r.ReadAt(loc, locOff); err != nil {
		return 0, 0, fmt.Errorf("%w: reading zip64 locator: %v", ErrFormat, err)
	}
	if binary.LittleEndian.Uint32(loc) != zip64LocatorSig {
		// Saturated fields without a zip64 record are taken at face value.
		return count, cdOffset, nil
	}

	recOff := binary.LittleEndian.Uint64(loc[8:])
	if recOff > math.MaxInt64 {
		return 0, 0, fmt.Errorf("%w: zip64 record out of range", ErrFormat)
	}
	rec := make([]byte, zip64EOCDLen)
	if _, err := r.ReadAt(rec, int64(recOff)); err != nil {
		return 0, 0, fmt.Errorf("%w: reading zip64 record: %v", ErrFormat, err)
	}
	if binary.LittleEndian.Uint32(rec) != zip64EOCDSig {
		return 0, 0, fmt.Errorf("%w: bad zip64 record signature", ErrFormat)
	}
	return binary.LittleEndian.Uint64(rec[32:]), binary.LittleEndian.Uint64(rec[48:]), nil
}

func readCentralDirectory(r io.ReaderAt, size, offset int64, count int) ([]Entry, error) {
	sr := io.NewSectionReader(r, offset, size-offset)
	entries := make([]Entry, 0, count)
	header := make([]byte, cdHeaderLen)

	for i := range count {
		if _, err := io.ReadFull(sr, header); err != nil {
			return nil, fmt.Errorf("%w: entry %d: short header", ErrFormat, i)
		}
		if binary.LittleEndian.Uint32(header) != cdSignature {
			return nil, fmt.Errorf("%w: entry %d: bad signature", ErrFormat, i)
		}

		compressed := uint64(binary.LittleEndian.Uint32(header[20:]))
		uncompressed := uint64(binary.LittleEndian.Uint32(header[24:]))
		nameLen := int(binary.LittleEndian.Uint16(header[28:]))
		extraLen := int(binary.LittleEndian.Uint16(header[30:]))
		commentLen := int64(binary.LittleEndian.Uint16(header[32:]))

		variable := make([]byte, nameLen+extraLen)
		if _, err := io.ReadFull(sr, variable); err != nil {
			return nil, fmt.Errorf("%w: entry %d: short name", ErrFormat, i)
		}
		if _, err := sr.Seek(commentLen, io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrFormat, i, err)
		}

		if compressed == saturated32 || uncompressed == saturated32 {
			uncompressed, compressed = zip64Sizes(variable[nameLen:], uncompressed, compressed)
		}
		entries = append(entries, Entry{
			Name:             string(variable[:nameLen]),
			CompressedSize:   compressed,
			UncompressedSize: uncompressed,
		})
	}
	return entries, nil
}

// zip64Sizes reads the sizes that overflowed the 32-bit header fields
// from the zip64 extended information extra field. The field only lists
// the saturated values, uncompressed first.
func zip64Sizes(extra []byte, uncompressed, compressed uint64) (uint64, uint64) {
	for len(extra) >= 4 {
		id := binary.LittleEndian.Uint16(extra)
		n := int(binary.LittleEndian.Uint16(extra[2:]))
		extra = extra[4:]
		if n > len(extra) {
			break
		}
		field := extra[:n]
		extra = extra[n:]
		if id != zip64ExtraID {
			continue
		}
		if uncompressed == saturated32 && len(field) >= 8 {
			uncompressed = binary.LittleEndian.Uint64(field)
			field = field[8:]
		}
		if compressed == saturated32 && len(field) >= 8 {
			compressed = binary.LittleEndian.Uint64(field)
		}
		break
	}
	return uncompressed, compressed
}
