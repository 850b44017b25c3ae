// Package filesaver materializes generation results into per-application directories.
package filesaver

import (
	"codegen-app/internal/apperr"
	"codegen-app/internal/codegen"
	"codegen-app/internal/logger"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentWrites bounds the worker group writing a file set
const maxConcurrentWrites = 8

// Writer materializes one result into an existing, empty directory
type Writer interface {
	WriteTo(dir string) error
}

// Saver writes results below a fixed output root
type Saver struct {
	root string
}

// NewSaver creates a Saver rooted at outputRoot
func NewSaver(outputRoot string) *Saver {
	return &Saver{root: outputRoot}
}

// Dir returns the directory a result of type t for appID is written to
func (s *Saver) Dir(t codegen.Type, appID string) string {
	return filepath.Join(s.root, t.DirName(appID))
}

// Save replaces the contents of the application's directory with result and returns the directory
func (s *Saver) Save(result codegen.Result, appID string) (string, error) {
	if result == nil || result.Empty() {
		return "", fmt.Errorf("%w: nothing to save", apperr.ErrValidation)
	}
	if appID == "" {
		return "", fmt.Errorf("%w: application id is required", apperr.ErrValidation)
	}

	sel := &writerSelector{}
	if err := result.Accept(sel); err != nil {
		return "", err
	}

	dir := s.Dir(result.Type(), appID)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("%w: failed to clear %s: %w", apperr.ErrStorage, dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create %s: %w", apperr.ErrStorage, dir, err)
	}

	if err := sel.writer.WriteTo(dir); err != nil {
		return "", err
	}

	logger.Log.WithFields(logrus.Fields{
		"app_id":          appID,
		"generation_type": result.Type().String(),
		"dir":             dir,
	}).Info("Saved generated code")

	return dir, nil
}

// writerSelector picks the Writer for each result variant and validates it
type writerSelector struct {
	writer Writer
}

func (w *writerSelector) VisitSingleFile(r *codegen.SingleFile) error {
	w.writer = singleFileWriter{content: r.Content}
	return nil
}

func (w *writerSelector) VisitMultiFile(r *codegen.MultiFile) error {
	files, err := dedupe(r.Files)
	if err != nil {
		return err
	}
	w.writer = fileSetWriter{files: files}
	return nil
}

func (w *writerSelector) VisitFramework(r *codegen.FrameworkProject) error {
	files, err := dedupe(r.Files)
	if err != nil {
		return err
	}
	w.writer = fileSetWriter{files: files}
	return nil
}

// singleFileWriter writes one blob as index.html
type singleFileWriter struct {
	content string
}

func (s singleFileWriter) WriteTo(dir string) error {
	return writeFile(dir, codegen.SingleFileName, s.content)
}

// fileSetWriter writes every file concurrently, creating parent directories
type fileSetWriter struct {
	files []codegen.File
}

func (f fileSetWriter) WriteTo(dir string) error {
	var g errgroup.Group
	g.SetLimit(maxConcurrentWrites)

	for _, file := range f.files {
		g.Go(func() error {
			return writeFile(dir, file.Path, file.Content)
		})
	}

	return g.Wait()
}

// dedupe validates paths and keeps the last occurrence of each
func dedupe(files []codegen.File) ([]codegen.File, error) {
	index := make(map[string]int, len(files))
	var out []codegen.File

	for _, file := range files {
		rel := filepath.Clean(filepath.FromSlash(file.Path))
		if rel == "." || !filepath.IsLocal(rel) {
			return nil, fmt.Errorf("%w: file path %q escapes the project directory", apperr.ErrValidation, file.Path)
		}
		if i, ok := index[rel]; ok {
			out[i].Content = file.Content
			continue
		}
		index[rel] = len(out)
		out = append(out, codegen.File{Path: rel, Content: file.Content})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: nothing to save", apperr.ErrValidation)
	}
	return out, nil
}

func writeFile(dir, rel, content string) error {
	target := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: failed to create directory for %s: %w", apperr.ErrStorage, rel, err)
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return fmt.Errorf("%w: failed to write %s: %w", apperr.ErrStorage, rel, err)
	}
	return nil
}
