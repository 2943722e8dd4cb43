package vision

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/condosec/condowatch/internal/errors"
)

var unsafeChars = regexp.MustCompile(`[^a-z0-9_\- ]+`)
var spaces = regexp.MustCompile(`\s+`)

// safeName lowercases a snapshot prefix and strips everything that does not
// belong in a filename.
func safeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = unsafeChars.ReplaceAllString(s, "")
	s = spaces.ReplaceAllString(s, "_")
	if s == "" {
		return "x"
	}
	return s
}

// SnapshotStore writes evidence JPEGs under a base directory, one
// subdirectory per UTC day. Rows referencing the files keep day-relative
// paths so the base directory can move.
type SnapshotStore struct {
	Dir string
}

func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{Dir: dir}
}

// Save writes one JPEG and returns its path relative to the store base. The
// uuid fragment keeps same-second snapshots from colliding.
func (s *SnapshotStore) Save(jpegData []byte, prefix string, ts time.Time) (string, error) {
	ts = ts.UTC()
	day := ts.Format("2006-01-02")
	dayDir := filepath.Join(s.Dir, day)
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return "", errors.New(err).Category(errors.CategoryPersistence).Context("dir", dayDir).Build()
	}

	name := fmt.Sprintf("%s_%s_%s.jpg",
		ts.Format("2006-01-02T15-04-05"),
		safeName(prefix),
		uuid.NewString()[:8])
	rel := filepath.ToSlash(filepath.Join(day, name))

	if err := os.WriteFile(filepath.Join(s.Dir, rel), jpegData, 0o644); err != nil {
		return "", errors.New(err).Category(errors.CategoryPersistence).Context("path", rel).Build()
	}
	return rel, nil
}

// AbsPath resolves a stored relative path against the base directory.
func (s *SnapshotStore) AbsPath(rel string) string {
	return filepath.Join(s.Dir, filepath.FromSlash(rel))
}
