// Package sync adds notebooks to the store and keeps stored files in step
// with the documents on disk.
package sync

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/conorfennell/nbflash/internal/domain"
	"github.com/conorfennell/nbflash/internal/gitsource"
	"github.com/conorfennell/nbflash/internal/ingest"
	"github.com/conorfennell/nbflash/internal/parser"
	"github.com/conorfennell/nbflash/internal/query"
	"github.com/conorfennell/nbflash/internal/source"
)

// Store is the subset of storage a sync pass writes through.
type Store interface {
	ingest.Store
	InsertFile(f domain.File) error
	DeleteFile(id int64) error
	UpdateFileChecksum(id int64, checksum string, updated time.Time) error
}

// Failure records one document that could not be synced.
type Failure struct {
	Path string
	Err  error
}

// Report summarises a sync pass.
type Report struct {
	Added      int
	Updated    int
	Unchanged  int
	Removed    int
	Cells      int
	Flashcards int
	Failures   []Failure
}

// Err joins the per-document failures, or returns nil when there were none.
func (r Report) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.Path, f.Err))
	}
	return errors.Join(errs...)
}

func (r *Report) fail(path string, err error) {
	r.Failures = append(r.Failures, Failure{Path: path, Err: err})
}

func (r *Report) record(res ingest.Result) {
	r.Cells += res.Created + res.Updated
	r.Flashcards += len(res.Flashcards)
}

// Syncer adds and updates notebooks found on a filesystem.
type Syncer struct {
	fs       billy.Filesystem
	store    Store
	files    *query.Engine
	ingestor *ingest.Ingestor
	reposDir string
	progress io.Writer
	now      func() time.Time
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithReposDir sets where git sources are checked out.
func WithReposDir(dir string) Option {
	return func(s *Syncer) { s.reposDir = dir }
}

// WithProgress sends git clone and pull progress to w.
func WithProgress(w io.Writer) Option {
	return func(s *Syncer) { s.progress = w }
}

// WithClock overrides the time source for file and cell timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// New returns a Syncer reading documents from fs. files is used to select
// the stored files an update pass visits.
func New(fs billy.Filesystem, store Store, files *query.Engine, opts ...Option) *Syncer {
	s := &Syncer{
		fs:       fs,
		store:    store,
		files:    files,
		reposDir: "repos",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ingestor = ingest.New(store, ingest.WithClock(s.now))
	return s
}

// Add ingests a notebook, every notebook under a directory, or every
// notebook in a git repository. Documents whose identity is already stored
// fail with domain.ErrAlreadyExists. Failures are collected in the report
// and the pass carries on; the returned error is reserved for a path that
// cannot be read at all.
func (s *Syncer) Add(path string) (Report, error) {
	var report Report

	if gitsource.IsURL(path) {
		local, err := s.checkout(path)
		if err != nil {
			return report, err
		}
		path = local
	} else if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	info, err := s.fs.Stat(path)
	if err != nil {
		return report, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	paths := []string{path}
	if info.IsDir() {
		slog.Info("Scanning directory for notebooks", "path", path)
		if paths, err = source.Notebooks(s.fs, path); err != nil {
			return report, err
		}
	}

	for _, p := range paths {
		if err := s.addFile(p, &report); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				slog.Info("Notebook already added, skipping", "path", p)
			} else {
				slog.Error("Failed to add notebook", "path", p, "error", err)
			}
			report.fail(p, err)
		}
	}

	slog.Info("Add complete",
		"path", path,
		"added", report.Added,
		"cells", report.Cells,
		"flashcards", report.Flashcards,
		"errors", len(report.Failures),
	)
	return report, nil
}

func (s *Syncer) checkout(repoURL string) (string, error) {
	local, err := gitsource.LocalPath(s.reposDir, repoURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(local), os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create repos directory: %w", err)
	}
	if err := gitsource.Sync(repoURL, local, s.progress); err != nil {
		return "", err
	}
	return filepath.Abs(local)
}

func (s *Syncer) addFile(path string, report *Report) error {
	doc, err := source.Read(s.fs, path)
	if err != nil {
		return err
	}
	existing, err := s.store.GetFile(doc.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: stored as %s", domain.ErrAlreadyExists, existing.Path)
	}

	contents, parseErr := parse(doc.Data)
	if contents == nil && parseErr != nil {
		return parseErr
	}

	// The checksum is only recorded once ingestion succeeds, so a file that
	// stopped part way is retried by the next update.
	file := domain.File{ID: doc.ID, Path: doc.Path, Updated: s.now(), Tags: source.DirTags(doc.Path)}
	if err := s.store.InsertFile(file); err != nil {
		return err
	}
	report.Added++

	res, err := s.ingestor.Ingest(file, contents)
	report.record(res)
	if err != nil {
		return err
	}
	if parseErr != nil {
		return parseErr
	}
	return s.store.UpdateFileChecksum(file.ID, doc.Checksum, s.now())
}

// parse reads a notebook's contents. A malformed output stops parsing but the
// cells before it are still returned, non-nil, alongside the error.
func parse(data []byte) ([]string, error) {
	contents, err := parser.ParseBytes(data)
	if err != nil && !errors.Is(err, domain.ErrMalformedOutput) {
		return nil, err
	}
	if contents == nil {
		contents = []string{}
	}
	return contents, err
}

// Update re-ingests every stored file matching filter whose document changed
// on disk. Files whose document is gone, or whose path now holds a different
// document, are deleted.
func (s *Syncer) Update(filter query.FileFilter) (Report, error) {
	var report Report

	files, err := query.Collect(s.files.Files(filter))
	if err != nil {
		return report, err
	}

	for _, f := range files {
		if err := s.updateFile(f, &report); err != nil {
			slog.Error("Failed to update notebook", "path", f.Path, "error", err)
			report.fail(f.Path, err)
		}
	}

	slog.Info("Update complete",
		"files", len(files),
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"removed", report.Removed,
		"errors", len(report.Failures),
	)
	return report, nil
}

func (s *Syncer) updateFile(f domain.File, report *Report) error {
	id, ok, err := source.Identify(s.fs, f.Path)
	if err != nil {
		return err
	}
	if !ok || id != f.ID {
		slog.Info("Removing file", "path", f.Path, "file_id", f.ID, "reason", domain.ErrStaleOrMissing)
		if err := s.store.DeleteFile(f.ID); err != nil {
			return err
		}
		report.Removed++
		return nil
	}

	doc, err := source.Read(s.fs, f.Path)
	if err != nil {
		return err
	}
	if doc.Checksum == f.Checksum {
		report.Unchanged++
		return nil
	}

	contents, parseErr := parse(doc.Data)
	if contents == nil && parseErr != nil {
		return parseErr
	}
	res, err := s.ingestor.Ingest(f, contents)
	report.record(res)
	if err != nil {
		return err
	}
	if parseErr != nil {
		return parseErr
	}
	if err := s.store.UpdateFileChecksum(f.ID, doc.Checksum, s.now()); err != nil {
		return err
	}
	report.Updated++
	return nil
}
