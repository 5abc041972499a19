package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cleared-dev/stmtimport/internal/model"
)

// ErrEmptyResult means no record survived parsing and date filtering.
var ErrEmptyResult = errors.New("no records left after parsing and filtering")

// Parser converts a bank statement export into RawRecords.
type Parser interface {
	Parse(r io.Reader, opts Options) (Result, error)
	Format() string
}

// DateRange is an inclusive calendar date window. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether date falls inside the window.
func (w DateRange) Contains(date time.Time) bool {
	if !w.From.IsZero() && date.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && date.After(w.To) {
		return false
	}
	return true
}

// Options controls a single parse.
type Options struct {
	Window DateRange
}

// ParseError describes one record block that was skipped.
type ParseError struct {
	Block  int
	Reason string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("block %d: %s", e.Block, e.Reason)
}

// Result is the outcome of parsing one statement.
type Result struct {
	Records []model.RawRecord
	Errors  []ParseError
	Ignored int // well-formed records outside the date window
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a statement file waiting in the inbox directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// ForFile returns the parser registered for the file's extension, or nil.
func (r *Registry) ForFile(name string) Parser {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return nil
	}
	return r.Get(ext)
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&OFXParser{})
	r.Register(&OFXParser{format: "qfx"})
	return r
}

// processedDir is the inbox subdirectory committed files are moved to.
const processedDir = "processed"

// Scan returns the files in dir that a parser in reg can read.
func Scan(dir string, reg *Registry) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if reg.ForFile(e.Name()) == nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from dir to dir/processed.
func MarkProcessed(dir, fileName string) error {
	src := filepath.Join(dir, fileName)
	dstDir := filepath.Join(dir, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
