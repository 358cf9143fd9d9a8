// Package storage keeps screenshot files in the assets directory.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/jmylchreest/pageshot/internal/naming"
)

// ErrInvalidName is returned for file names that are not plain
// screenshot names inside the assets directory.
var ErrInvalidName = errors.New("invalid file name")

// File describes one stored screenshot.
type File struct {
	Name    string    `json:"filename" yaml:"filename"`
	Size    int64     `json:"size" yaml:"size"`
	ModTime time.Time `json:"modified" yaml:"modified"`
}

// Store writes and reads screenshots under a single directory.
type Store struct {
	fs  afero.Fs
	dir string
}

// New creates a Store rooted at dir on fs.
func New(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: filepath.Clean(dir)}
}

// NewOS creates a Store on the host filesystem and makes sure dir exists.
func NewOS(dir string) (*Store, error) {
	s := New(afero.NewOsFs(), dir)
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the assets directory.
func (s *Store) Dir() string { return s.dir }

// Ensure creates the assets directory if it is missing.
func (s *Store) Ensure() error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create assets dir %s: %w", s.dir, err)
	}
	return nil
}

// SegmentPath returns the path of segment index for url.
func (s *Store) SegmentPath(url string, index int) (string, error) {
	if index < 0 {
		return "", fmt.Errorf("negative segment index %d", index)
	}
	return filepath.Join(s.dir, naming.SegmentName(naming.FileName(url), index)), nil
}

// WriteFile writes data to path, replacing any earlier file.
func (s *Store) WriteFile(path string, data []byte) error {
	if err := s.Ensure(); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, path, data, 0o644)
}

// List returns every screenshot in the assets directory sorted by name.
func (s *Store) List() ([]File, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}

	var files []File
	for _, info := range infos {
		if info.IsDir() || !strings.EqualFold(filepath.Ext(info.Name()), naming.Ext) {
			continue
		}
		files = append(files, File{Name: info.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return files, nil
}

// FindByURL returns the segments stored for url in index order. When no
// segments exist the un-indexed base file is returned if present. Segments
// left over from a longer earlier capture are only gone once the capturer
// has called PruneSegments.
func (s *Store) FindByURL(url string) ([]File, error) {
	base := naming.FileName(url)
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	type indexed struct {
		File
		n int
	}
	var segs []indexed
	var plain *File
	for i := range all {
		f := all[i]
		if n, ok := naming.SegmentIndex(base, f.Name); ok {
			segs = append(segs, indexed{File: f, n: n})
			continue
		}
		if f.Name == base {
			plain = &f
		}
	}

	if len(segs) == 0 {
		if plain != nil {
			return []File{*plain}, nil
		}
		return nil, nil
	}

	sort.Slice(segs, func(i, j int) bool { return segs[i].n < segs[j].n })
	files := make([]File, len(segs))
	for i, sg := range segs {
		files[i] = sg.File
	}
	return files, nil
}

// PruneSegments removes the segments of url with an index of keep or more
// and returns how many were removed.
func (s *Store) PruneSegments(url string, keep int) (int, error) {
	base := naming.FileName(url)
	all, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range all {
		n, ok := naming.SegmentIndex(base, f.Name)
		if !ok || n < keep {
			continue
		}
		if err := s.fs.Remove(filepath.Join(s.dir, f.Name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", f.Name, err)
		}
		removed++
	}
	return removed, nil
}

// Open opens a stored screenshot by bare file name. Names with path
// elements are rejected with ErrInvalidName.
func (s *Store) Open(name string) (afero.File, os.FileInfo, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	f, err := s.fs.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %q is a directory", ErrInvalidName, name)
	}
	return f, info, nil
}

// ReadFile returns the contents of a stored screenshot.
func (s *Store) ReadFile(name string) ([]byte, error) {
	f, _, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
