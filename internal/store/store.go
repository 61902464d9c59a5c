package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/youruser/thumbapp/internal/util"
)

const (
	Suffix          = "_thumbnail.jpg"
	timestampLayout = "20060102-150405"
	maxNameAttempts = 5
)

var (
	ErrNotFound     = errors.New("thumbnail not found")
	ErrPathRejected = errors.New("invalid filename")
	ErrIO           = errors.New("storage error")
)

var safeName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Summary describes a stored thumbnail.
type Summary struct {
	Filename    string    `json:"filename"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
	GeneratedAt time.Time `json:"generated_at,omitempty"`
}

// Store keeps thumbnails as flat files in one directory.
type Store struct {
	dir string
	now func() time.Time
}

func New(dir string) (*Store, error) {
	if err := util.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return &Store{dir: abs, now: time.Now}, nil
}

func (s *Store) Dir() string { return s.dir }

// Path returns the absolute path of a stored file.
func (s *Store) Path(filename string) string { return filepath.Join(s.dir, filename) }

// NewFilename returns "<timestamp>_<8 hex>_thumbnail.jpg".
func NewFilename(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s_%s%s", now.UTC().Format(timestampLayout), id[:8], Suffix)
}

// ParseGeneratedAt extracts the timestamp embedded in a generated filename.
func ParseGeneratedAt(filename string) (time.Time, bool) {
	if len(filename) < len(timestampLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(timestampLayout, filename[:len(timestampLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Save writes data under a fresh name. The file appears complete or not at
// all and never replaces an existing one.
func (s *Store) Save(data []byte) (string, error) {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: write: %v", ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: sync: %v", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: close: %v", ErrIO, err)
	}

	for i := 0; i < maxNameAttempts; i++ {
		name := NewFilename(s.now())
		err := os.Link(tmpName, filepath.Join(s.dir, name))
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: link: %v", ErrIO, err)
		}
	}
	return "", fmt.Errorf("%w: could not pick a unique filename", ErrIO)
}

// validateName rejects anything that is not a plain thumbnail filename.
func validateName(filename string) error {
	switch {
	case filename == "",
		!safeName.MatchString(filename),
		strings.HasPrefix(filename, "."),
		strings.Contains(filename, ".."),
		!strings.HasSuffix(filename, Suffix):
		return fmt.Errorf("%w: %q", ErrPathRejected, filename)
	}
	return nil
}

// Open validates filename and opens it inside the store directory.
func (s *Store) Open(filename string) (*os.File, fs.FileInfo, error) {
	if err := validateName(filename); err != nil {
		return nil, nil, err
	}
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer root.Close()

	f, err := root.Open(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	return f, info, nil
}

// Read returns the bytes of a stored thumbnail.
func (s *Store) Read(filename string) ([]byte, error) {
	f, info, err := s.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data := make([]byte, info.Size())
	if _, err := f.ReadAt(data, 0); err != nil && info.Size() > 0 {
		return nil, fmt.Errorf("%w: read: %v", ErrIO, err)
	}
	return data, nil
}

// List returns up to limit thumbnails, newest first by modification time,
// along with the number stored before the limit was applied.
func (s *Store) List(limit int) ([]Summary, int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrIO, err)
	}

	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || validateName(name) != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed since ReadDir
			continue
		}
		sum := Summary{Filename: name, SizeBytes: info.Size(), CreatedAt: info.ModTime().UTC()}
		if t, ok := ParseGeneratedAt(name); ok {
			sum.GeneratedAt = t
		}
		out = append(out, sum)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Filename > out[j].Filename
	})
	total := len(out)
	if limit > 0 && total > limit {
		out = out[:limit]
	}
	return out, total, nil
}
