package pgm

import (
	"fmt"
	"os"
	"path/filepath"

	"particletriage/internal/imageproc"
)

// DefaultPattern names frames the way the camera writes them: 001.pgm, 002.pgm, ...
const DefaultPattern = "%03d.pgm"

// IOError reports a frame that could not be read or written.
type IOError struct {
	Op   string // "load" or "save"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ReadFile loads a graymap from disk.
func ReadFile(path string) (*imageproc.Grid, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "load", Path: path, Err: err}
	}
	defer file.Close()

	g, err := Decode(file)
	if err != nil {
		return nil, &IOError{Op: "load", Path: path, Err: err}
	}
	return g, nil
}

// WriteFile stores g as a binary graymap, replacing any existing file.
func WriteFile(path string, g *imageproc.Grid) error {
	file, err := os.Create(path)
	if err != nil {
		return &IOError{Op: "save", Path: path, Err: err}
	}
	if err := Encode(file, g); err != nil {
		file.Close()
		return &IOError{Op: "save", Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return &IOError{Op: "save", Path: path, Err: err}
	}
	return nil
}

// DirStore keeps numbered frames in one directory.
type DirStore struct {
	Dir     string
	Pattern string
}

// NewDirStore returns a store rooted at dir using DefaultPattern.
func NewDirStore(dir string) *DirStore {
	return &DirStore{Dir: dir, Pattern: DefaultPattern}
}

// Path returns the file path of frame index.
func (s *DirStore) Path(index int) string {
	pattern := s.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	return filepath.Join(s.Dir, fmt.Sprintf(pattern, index))
}

func (s *DirStore) Load(index int) (*imageproc.Grid, error) {
	return ReadFile(s.Path(index))
}

// Save writes frame index, creating the directory on first use.
func (s *DirStore) Save(index int, g *imageproc.Grid) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return &IOError{Op: "save", Path: s.Dir, Err: err}
	}
	return WriteFile(s.Path(index), g)
}
