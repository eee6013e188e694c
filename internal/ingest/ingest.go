// Package ingest reconciles a notebook's parsed content with the store and
// groups new cells into flashcards.
package ingest

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/conorfennell/nbflash/internal/domain"
)

// Store is the subset of storage the ingestor writes through.
type Store interface {
	GetFile(id int64) (*domain.File, error)
	CellsByFile(fileID int64) ([]domain.Cell, error)
	FindCellByContent(content string) (*domain.Cell, error)
	InsertCell(c domain.Cell) (int64, error)
	UpdateCellContent(id int64, content string, modified time.Time) error
	InsertFlashcard(f domain.Flashcard) (int64, error)
}

// Result summarises one ingestion pass.
type Result struct {
	Created    int
	Updated    int
	Unchanged  int
	Flashcards []int64
}

// Ingestor turns parsed notebook content into cells and flashcards.
type Ingestor struct {
	store Store
	now   func() time.Time
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithClock overrides the time stamped on new cells and flashcards.
func WithClock(now func() time.Time) Option {
	return func(in *Ingestor) { in.now = now }
}

// New returns an Ingestor writing to store.
func New(store Store, opts ...Option) *Ingestor {
	in := &Ingestor{store: store, now: time.Now}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// group is the flashcard being assembled from consecutive new cells.
type group struct {
	front []int64
	back  []int64
}

func (g *group) complete() bool {
	return len(g.front) > 0 && len(g.back) > 0
}

// Ingest reconciles contents, in document order, with the cells already
// stored for file.
//
// Content equal to an existing cell of the file is left alone. Content that
// extends an existing cell (the old content is a substring) updates that
// cell in place. Anything else becomes a new cell, unless another file
// already holds the same content, in which case ingestion stops with a
// *domain.DuplicateCellError. Work committed before the error is kept.
//
// New cells starting with '#' open a flashcard group; the group collected so
// far is saved as a flashcard once it has a front and a back. Other new cells
// join the back of the open group. A group still open at the end of contents
// is not saved.
func (in *Ingestor) Ingest(file domain.File, contents []string) (Result, error) {
	var res Result

	existing, err := in.store.CellsByFile(file.ID)
	if err != nil {
		return res, err
	}

	var g group
	for _, content := range contents {
		if content == "" {
			continue
		}

		if i, exact := reconcile(existing, content); i >= 0 {
			if exact {
				res.Unchanged++
				continue
			}
			if err := in.store.UpdateCellContent(existing[i].ID, content, in.now()); err != nil {
				return res, err
			}
			slog.Debug("Cell content grew, updated in place", "file", file.Path, "cell_id", existing[i].ID)
			existing[i].Content = content
			res.Updated++
			continue
		}

		dup, err := in.store.FindCellByContent(content)
		if err != nil {
			return res, err
		}
		if dup != nil {
			return res, in.duplicate(file, dup, content)
		}

		cell := domain.Cell{FileID: file.ID, Content: content, Modified: in.now()}
		cell.ID, err = in.store.InsertCell(cell)
		if err != nil {
			return res, err
		}
		existing = append(existing, cell)
		res.Created++

		if cell.IsHeading() {
			if g.complete() {
				id, err := in.flush(g)
				if err != nil {
					return res, err
				}
				res.Flashcards = append(res.Flashcards, id)
				g = group{}
			}
			g.front = append(g.front, cell.ID)
		} else if len(g.front) > 0 {
			g.back = append(g.back, cell.ID)
		}
	}

	if len(g.front) > 0 {
		slog.Debug("Trailing group left open", "file", file.Path, "front", len(g.front), "back", len(g.back))
	}
	return res, nil
}

// reconcile finds the existing cell matching content. It prefers an exact
// match anywhere in the file over the first cell whose content is a strict
// substring of content. It returns -1 when content is new.
func reconcile(existing []domain.Cell, content string) (index int, exact bool) {
	for i, c := range existing {
		if c.Content == content {
			return i, true
		}
	}
	for i, c := range existing {
		if c.Content != "" && strings.Contains(content, c.Content) {
			return i, false
		}
	}
	return -1, false
}

func (in *Ingestor) flush(g group) (int64, error) {
	links, err := domain.NewLinks(g.front, g.back, nil)
	if err != nil {
		return 0, err
	}
	now := in.now()
	id, err := in.store.InsertFlashcard(domain.Flashcard{NextReview: now, Modified: now, Links: links})
	if err != nil {
		return 0, fmt.Errorf("failed to create flashcard: %w", err)
	}
	slog.Debug("Flashcard created", "flashcard_id", id, "front", len(g.front), "back", len(g.back))
	return id, nil
}

func (in *Ingestor) duplicate(file domain.File, dup *domain.Cell, content string) error {
	e := &domain.DuplicateCellError{FileID: file.ID, ConflictFileID: dup.FileID, Content: content}
	owner, err := in.store.GetFile(dup.FileID)
	if err != nil {
		return err
	}
	if owner != nil {
		e.ConflictPath = owner.Path
	}
	return e
}
