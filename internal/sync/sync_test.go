package sync

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/conorfennell/nbflash/internal/domain"
	"github.com/conorfennell/nbflash/internal/query"
	"github.com/conorfennell/nbflash/internal/storage"
)

// notebook renders markdown cells as nbformat JSON.
func notebook(t *testing.T, sources ...string) []byte {
	t.Helper()
	cells := make([]map[string]any, 0, len(sources))
	for _, src := range sources {
		cells = append(cells, map[string]any{"cell_type": "markdown", "source": src})
	}
	data, err := json.Marshal(map[string]any{"cells": cells})
	if err != nil {
		t.Fatalf("json.Marshal() failed: %v", err)
	}
	return data
}

func write(t *testing.T, fs billy.Filesystem, path string, data []byte) {
	t.Helper()
	if err := util.WriteFile(fs, path, data, 0o644); err != nil {
		t.Fatalf("WriteFile(%s) failed: %v", path, err)
	}
}

func setup(t *testing.T) (*Syncer, *storage.DB, billy.Filesystem) {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	fs := memfs.New()
	return New(fs, db, query.New(db, 9)), db, fs
}

func TestAddDirectory(t *testing.T) {
	s, db, fs := setup(t)
	write(t, fs, "/notes/math/a.ipynb", notebook(t, "# A", "x", "# B", "y", "# C"))
	write(t, fs, "/notes/bio.ipynb", notebook(t, "# Cell", "membrane", "# End"))
	write(t, fs, "/notes/.ipynb_checkpoints/a.ipynb", notebook(t, "# Hidden", "h", "# H2"))

	report, err := s.Add("/notes")
	if err != nil {
		t.Fatalf("Add() returned an unexpected error: %v", err)
	}
	if report.Added != 2 || report.Flashcards != 3 || len(report.Failures) != 0 {
		t.Errorf("Expected 2 files and 3 flashcards, but got %+v", report)
	}

	files, _ := db.ListFiles()
	for _, f := range files {
		if f.Checksum == "" {
			t.Errorf("Expected a checksum to be stored for %s", f.Path)
		}
		if f.Path == "/notes/math/a.ipynb" && !f.Tags.Has("math") {
			t.Errorf("Expected directory tags on %s, but got %v", f.Path, f.Tags)
		}
	}
}

func TestAddExistingFile(t *testing.T) {
	s, _, fs := setup(t)
	write(t, fs, "/notes/a.ipynb", notebook(t, "# A", "x", "# B"))

	if _, err := s.Add("/notes/a.ipynb"); err != nil {
		t.Fatalf("Add() returned an unexpected error: %v", err)
	}
	report, err := s.Add("/notes/a.ipynb")
	if err != nil {
		t.Fatalf("Add() returned an unexpected error: %v", err)
	}
	if report.Added != 0 || !errors.Is(report.Err(), domain.ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists and no additions, but got %+v", report)
	}
}

func TestAddMissingPath(t *testing.T) {
	s, _, _ := setup(t)

	if _, err := s.Add("/nope"); err == nil {
		t.Error("Expected an error for a missing path")
	}
}

func TestAddDuplicateContinuesBatch(t *testing.T) {
	s, db, fs := setup(t)
	write(t, fs, "/notes/a.ipynb", notebook(t, "# Shared", "x", "# A2"))
	write(t, fs, "/notes/b.ipynb", notebook(t, "# Shared", "y", "# B2"))
	write(t, fs, "/notes/c.ipynb", notebook(t, "# Third", "z", "# Fourth"))

	report, err := s.Add("/notes")
	if err != nil {
		t.Fatalf("Add() returned an unexpected error: %v", err)
	}
	if len(report.Failures) != 1 || report.Failures[0].Path != "/notes/b.ipynb" {
		t.Fatalf("Expected b.ipynb to fail, but got %+v", report.Failures)
	}
	if !errors.Is(report.Err(), domain.ErrDuplicateCell) {
		t.Errorf("Expected ErrDuplicateCell, but got %v", report.Err())
	}
	if report.Added != 3 || report.Flashcards != 2 {
		t.Errorf("Expected the batch to continue past the duplicate, but got %+v", report)
	}

	files, _ := db.ListFiles()
	for _, f := range files {
		if f.Path == "/notes/b.ipynb" && f.Checksum != "" {
			t.Errorf("Expected no checksum for a file that failed ingestion, but got %s", f.Checksum)
		}
	}
}

func TestUpdate(t *testing.T) {
	s, db, fs := setup(t)
	write(t, fs, "/notes/a.ipynb", notebook(t, "# A", "x", "# B"))
	write(t, fs, "/notes/b.ipynb", notebook(t, "# Q", "answer", "# R"))
	write(t, fs, "/notes/c.ipynb", notebook(t, "# Gone", "soon", "# G2"))
	if _, err := s.Add("/notes"); err != nil {
		t.Fatalf("Add() returned an unexpected error: %v", err)
	}

	// Only new cells are grouped, so the appended headings form the new flashcard.
	write(t, fs, "/notes/a.ipynb", notebook(t, "# A", "x", "# B", "# C", "z", "# D"))
	if err := fs.Remove("/notes/c.ipynb"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}

	report, err := s.Update(query.FileFilter{})
	if err != nil {
		t.Fatalf("Update() returned an unexpected error: %v", err)
	}
	if report.Updated != 1 || report.Unchanged != 1 || report.Removed != 1 {
		t.Errorf("Expected 1 updated, 1 unchanged and 1 removed, but got %+v", report)
	}
	if report.Flashcards != 1 {
		t.Errorf("Expected the new group to become a flashcard, but got %d", report.Flashcards)
	}

	files, _ := db.ListFiles()
	if len(files) != 2 {
		t.Errorf("Expected 2 files to remain, but got %d", len(files))
	}
	cards, _ := db.ListFlashcards()
	if len(cards) != 3 {
		t.Errorf("Expected 3 flashcards, but got %d", len(cards))
	}

	again, _ := s.Update(query.FileFilter{})
	if again.Unchanged != 2 || again.Updated != 0 {
		t.Errorf("Expected a second update to change nothing, but got %+v", again)
	}
}

func TestUpdateFilter(t *testing.T) {
	s, _, fs := setup(t)
	write(t, fs, "/notes/math/a.ipynb", notebook(t, "# A", "x", "# B"))
	write(t, fs, "/notes/bio/b.ipynb", notebook(t, "# Q", "answer", "# R"))
	if _, err := s.Add("/notes"); err != nil {
		t.Fatalf("Add() returned an unexpected error: %v", err)
	}

	report, err := s.Update(query.FileFilter{Tags: []string{"math"}})
	if err != nil {
		t.Fatalf("Update() returned an unexpected error: %v", err)
	}
	if report.Unchanged != 1 {
		t.Errorf("Expected only the math notebook to be visited, but got %+v", report)
	}
}

// imageOnly is a code cell whose only output has no html or plain text.
const imageOnly = `{"cell_type":"code","source":"plot()","outputs":[
	{"output_type":"display_data","data":{"image/png":"iVBORw0KGgo="}}
]}`

const plainY = `{"cell_type":"code","source":"print('y')","outputs":[
	{"output_type":"display_data","data":{"text/plain":"y"}}
]}`

func rawNotebook(cells ...string) []byte {
	return []byte(`{"cells":[` + strings.Join(cells, ",") + `]}`)
}

func markdown(src string) string {
	return `{"cell_type":"markdown","source":"` + src + `"}`
}

func TestMalformedOutputKeepsEarlierCells(t *testing.T) {
	s, db, fs := setup(t)
	write(t, fs, "/notes/a.ipynb", rawNotebook(markdown("# A"), markdown("x"), markdown("# B"), imageOnly))

	report, err := s.Add("/notes/a.ipynb")
	if err != nil {
		t.Fatalf("Add() returned an unexpected error: %v", err)
	}
	if len(report.Failures) != 1 || !errors.Is(report.Failures[0].Err, domain.ErrMalformedOutput) {
		t.Fatalf("Expected one ErrMalformedOutput failure, but got %+v", report.Failures)
	}

	files, _ := db.ListFiles()
	if len(files) != 1 {
		t.Fatalf("Expected the file to be stored, but got %d files", len(files))
	}
	if files[0].Checksum != "" {
		t.Errorf("Expected no checksum for a partly ingested file, but got %q", files[0].Checksum)
	}
	cells, _ := db.CellsByFile(files[0].ID)
	if len(cells) != 3 {
		t.Errorf("Expected the 3 cells before the bad output to be kept, but got %d", len(cells))
	}
	cards, _ := db.ListFlashcards()
	if len(cards) != 1 {
		t.Errorf("Expected 1 flashcard, but got %d", len(cards))
	}

	// Fixed on disk: the next update retries the file and records its checksum.
	write(t, fs, "/notes/a.ipynb", rawNotebook(markdown("# A"), markdown("x"), markdown("# B"), plainY, markdown("# C")))
	report, err = s.Update(query.FileFilter{})
	if err != nil {
		t.Fatalf("Update() returned an unexpected error: %v", err)
	}
	if report.Updated != 1 || len(report.Failures) != 0 {
		t.Errorf("Expected the file to be re-ingested, but got %+v", report)
	}
	fixed, _ := db.GetFile(files[0].ID)
	if fixed.Checksum == "" {
		t.Error("Expected a checksum once the file ingested cleanly")
	}

	// Broken again during an update: new cells before the bad output are kept
	// and the stored checksum is left alone.
	write(t, fs, "/notes/a.ipynb", rawNotebook(markdown("# A"), markdown("x"), markdown("# B"), plainY, markdown("# C"), markdown("w"), imageOnly))
	report, _ = s.Update(query.FileFilter{})
	if len(report.Failures) != 1 || !errors.Is(report.Failures[0].Err, domain.ErrMalformedOutput) {
		t.Errorf("Expected one ErrMalformedOutput failure, but got %+v", report.Failures)
	}
	after, _ := db.GetFile(files[0].ID)
	if after.Checksum != fixed.Checksum {
		t.Error("Expected the checksum not to change after a failed update")
	}
	cells, _ = db.CellsByFile(files[0].ID)
	if len(cells) != 6 {
		t.Errorf("Expected 6 cells after the partial update, but got %d", len(cells))
	}
}
