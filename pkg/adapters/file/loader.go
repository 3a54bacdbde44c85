// Package file loads test cases from a directory tree and stores run reports
// as JSON files.
//
// Test cases are YAML (.yaml, .yml), JSON (.json) or Markdown (.md) files. A
// Markdown file carries the test case as YAML front matter; its body becomes
// the description when the front matter has none. The id of a test case is
// its path relative to the root, slash separated, without extension.
package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/aretw0/tendril/internal/dto"
	"github.com/aretw0/tendril/internal/expr"
	"github.com/aretw0/tendril/pkg/domain"
)

var extensions = []string{".yaml", ".yml", ".json", ".md"}

// ErrNoFrontMatter is returned for Markdown files without a front matter block.
var ErrNoFrontMatter = errors.New("markdown file has no front matter")

// Loader implements ports.TestCaseLoader over a directory.
type Loader struct {
	root    string
	decoder *dto.Decoder
	ignore  map[string]bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithParser sets the parser used for condition and loop headers.
func WithParser(p *expr.Parser) LoaderOption {
	return func(l *Loader) {
		l.decoder = dto.NewDecoder(p)
	}
}

// WithIgnore keeps files that live next to the test cases, such as the
// tendril.yaml config, out of List. Paths are relative to the root.
func WithIgnore(paths ...string) LoaderOption {
	return func(l *Loader) {
		for _, p := range paths {
			l.ignore[filepath.ToSlash(filepath.Clean(p))] = true
		}
	}
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string, opts ...LoaderOption) *Loader {
	l := &Loader{root: dir, decoder: dto.NewDecoder(expr.NewParser()), ignore: map[string]bool{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the test case with the given id.
func (l *Loader) Load(ctx context.Context, id string) (*domain.TestCase, error) {
	for _, ext := range extensions {
		p := filepath.Join(l.root, filepath.FromSlash(id)+ext)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		tc, err := l.LoadFile(p)
		if err != nil {
			return nil, err
		}
		tc.ID = id
		return tc, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrTestCaseNotFound, id)
}

// LoadFile decodes a single file. The id is left as written in the document.
func (l *Loader) LoadFile(path string) (*domain.TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var tc *domain.TestCase
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		tc, err = l.decoder.DecodeJSON(data)
	case ".md":
		tc, err = l.decodeMarkdown(data)
	default:
		tc, err = l.decoder.DecodeYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return tc, nil
}

func (l *Loader) decodeMarkdown(data []byte) (*domain.TestCase, error) {
	front, body, err := splitFrontMatter(data)
	if err != nil {
		return nil, err
	}
	tc, err := l.decoder.DecodeYAML(front)
	if err != nil {
		return nil, err
	}
	if tc.Description == "" {
		tc.Description = strings.TrimSpace(string(body))
	}
	return tc, nil
}

func hasFrontMatter(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, 4)
	n, _ := io.ReadFull(f, head)
	return bytes.HasPrefix(head[:n], []byte("---\n")) || bytes.HasPrefix(head[:n], []byte("---\r"))
}

func splitFrontMatter(data []byte) (front, body []byte, err error) {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	rest, ok := bytes.CutPrefix(data, []byte("---\n"))
	if !ok {
		return nil, nil, ErrNoFrontMatter
	}
	front, body, ok = bytes.Cut(rest, []byte("\n---"))
	if !ok {
		return nil, nil, ErrNoFrontMatter
	}
	_, body, _ = bytes.Cut(body, []byte("\n"))
	return front, body, nil
}

// List walks the root and returns every test case id, sorted. Hidden
// directories, ignored paths and Markdown files without front matter are
// skipped.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != l.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !slices.Contains(extensions, ext) {
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		if l.ignore[filepath.ToSlash(rel)] {
			return nil
		}
		if ext == ".md" && !hasFrontMatter(path) {
			return nil
		}
		ids = append(ids, filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel))))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list test cases: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
