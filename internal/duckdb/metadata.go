package duckdb

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// StatOptional is StatFile for inputs that may be unset. An empty path
// yields the zero fingerprint.
func StatOptional(path string) (FileFingerprint, error) {
	if path == "" {
		return FileFingerprint{}, nil
	}
	return StatFile(path)
}

// Key renders the size and modification time. The path is left out so a
// moved file keeps its identity.
func (f FileFingerprint) Key() string {
	if f.Size == 0 && f.ModTime.IsZero() {
		return "-"
	}
	return strconv.FormatInt(f.Size, 10) + "@" + f.ModTime.UTC().Format(time.RFC3339Nano)
}

// InputKey hashes the fingerprints of every input file together with any
// run parameters that change results into one stable identifier.
func InputKey(files []FileFingerprint, params ...string) string {
	h := xxh3.New()
	for _, f := range files {
		h.WriteString(f.Key())
		h.WriteString("\x00")
	}
	for _, p := range params {
		h.WriteString(p)
		h.WriteString("\x00")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
