// Package tags resolves effective tags along the file → cell → flashcard
// hierarchy and edits the tags an entity owns.
package tags

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/conorfennell/nbflash/internal/domain"
)

// File returns a file's effective tags, which are its own tags.
func File(f domain.File) domain.Tags {
	return domain.Tags{}.Union(f.Tags)
}

// Cell returns a cell's effective tags given its owning file.
func Cell(c domain.Cell, owner domain.File) domain.Tags {
	return domain.Tags{}.Union(c.Tags, File(owner))
}

// Flashcard returns a flashcard's effective tags given the effective tags of
// its linked cells.
func Flashcard(f domain.Flashcard, cellTags ...domain.Tags) domain.Tags {
	return domain.Tags{}.Union(f.Tags).Union(cellTags...)
}

// Store is the subset of storage the resolver reads and edits.
type Store interface {
	GetFile(id int64) (*domain.File, error)
	GetCell(id int64) (*domain.Cell, error)
	GetFlashcard(id int64) (*domain.Flashcard, error)
	CellsByFile(fileID int64) ([]domain.Cell, error)
	UpdateFileTags(id int64, tags domain.Tags) error
	UpdateCellTags(id int64, tags domain.Tags) error
	UpdateFlashcardTags(id int64, tags domain.Tags) error
}

// Resolver reads and edits tags through a Store.
type Resolver struct {
	store Store
}

// NewResolver returns a Resolver backed by store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Effective returns the effective tags of the referenced entity.
func (r *Resolver) Effective(ref domain.Ref) (domain.Tags, error) {
	switch ref.Kind {
	case domain.KindFile:
		f, err := r.file(ref.ID)
		if err != nil {
			return nil, err
		}
		return File(*f), nil
	case domain.KindCell:
		c, err := r.cell(ref.ID)
		if err != nil {
			return nil, err
		}
		return r.cellTags(*c)
	case domain.KindFlashcard:
		f, err := r.flashcard(ref.ID)
		if err != nil {
			return nil, err
		}
		var cellTags []domain.Tags
		for _, id := range f.CellIDs("") {
			c, err := r.cell(id)
			if err != nil {
				return nil, err
			}
			t, err := r.cellTags(*c)
			if err != nil {
				return nil, err
			}
			cellTags = append(cellTags, t)
		}
		return Flashcard(*f, cellTags...), nil
	}
	return nil, fmt.Errorf("unknown entity kind %q", ref.Kind)
}

func (r *Resolver) cellTags(c domain.Cell) (domain.Tags, error) {
	owner, err := r.file(c.FileID)
	if err != nil {
		return nil, err
	}
	return Cell(c, *owner), nil
}

// Own returns the tags the referenced entity holds itself.
func (r *Resolver) Own(ref domain.Ref) (domain.Tags, error) {
	switch ref.Kind {
	case domain.KindFile:
		f, err := r.file(ref.ID)
		if err != nil {
			return nil, err
		}
		return f.Tags, nil
	case domain.KindCell:
		c, err := r.cell(ref.ID)
		if err != nil {
			return nil, err
		}
		return c.Tags, nil
	case domain.KindFlashcard:
		f, err := r.flashcard(ref.ID)
		if err != nil {
			return nil, err
		}
		return f.Tags, nil
	}
	return nil, fmt.Errorf("unknown entity kind %q", ref.Kind)
}

// AddTag adds tag to the entity's own tags. It reports whether anything
// changed.
func (r *Resolver) AddTag(ref domain.Ref, tag string) (bool, error) {
	own, err := r.Own(ref)
	if err != nil {
		return false, err
	}
	if tag == "" || own.Has(tag) {
		return false, nil
	}
	return true, r.save(ref, own.Add(tag))
}

// RemoveOwnTag removes tag from the entity's own tags only. It reports
// whether anything changed.
func (r *Resolver) RemoveOwnTag(ref domain.Ref, tag string) (bool, error) {
	own, err := r.Own(ref)
	if err != nil {
		return false, err
	}
	if !own.Has(tag) {
		return false, nil
	}
	return true, r.save(ref, own.Remove(tag))
}

// RemoveEffectiveTag removes tag from the entity's own tags, or, when the
// entity does not own it, from the entities one step away: a cell falls back
// to its file, a flashcard to its linked cells, and a file to its cells. A
// flashcard never reaches through its cells to their file. It returns every
// entity whose own tags changed. Each change is committed on its own.
func (r *Resolver) RemoveEffectiveTag(ref domain.Ref, tag string) ([]domain.Ref, error) {
	changed, err := r.RemoveOwnTag(ref, tag)
	if err != nil {
		return nil, err
	}
	if changed {
		return []domain.Ref{ref}, nil
	}

	var related []domain.Ref
	switch ref.Kind {
	case domain.KindCell:
		c, err := r.cell(ref.ID)
		if err != nil {
			return nil, err
		}
		related = append(related, domain.FileRef(c.FileID))
	case domain.KindFlashcard:
		f, err := r.flashcard(ref.ID)
		if err != nil {
			return nil, err
		}
		for _, id := range f.CellIDs("") {
			related = append(related, domain.CellRef(id))
		}
	case domain.KindFile:
		cells, err := r.store.CellsByFile(ref.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range cells {
			related = append(related, domain.CellRef(c.ID))
		}
	}

	var out []domain.Ref
	for _, rel := range related {
		ok, err := r.RemoveOwnTag(rel, tag)
		if err != nil {
			slog.Warn("Failed to remove inherited tag", "tag", tag, "from", rel, "error", err)
			continue
		}
		if ok && !slices.Contains(out, rel) {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (r *Resolver) save(ref domain.Ref, t domain.Tags) error {
	switch ref.Kind {
	case domain.KindFile:
		return r.store.UpdateFileTags(ref.ID, t)
	case domain.KindCell:
		return r.store.UpdateCellTags(ref.ID, t)
	case domain.KindFlashcard:
		return r.store.UpdateFlashcardTags(ref.ID, t)
	}
	return fmt.Errorf("unknown entity kind %q", ref.Kind)
}

func (r *Resolver) file(id int64) (*domain.File, error) {
	f, err := r.store.GetFile(id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("file %d: %w", id, domain.ErrNotFound)
	}
	return f, nil
}

func (r *Resolver) cell(id int64) (*domain.Cell, error) {
	c, err := r.store.GetCell(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("cell %d: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

func (r *Resolver) flashcard(id int64) (*domain.Flashcard, error) {
	f, err := r.store.GetFlashcard(id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("flashcard %d: %w", id, domain.ErrNotFound)
	}
	return f, nil
}
