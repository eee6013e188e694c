// Package query filters files, cells and flashcards by content, tag, level,
// due date and source file, and draws shuffled quizzes from the due set.
package query

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/conorfennell/nbflash/internal/domain"
	"github.com/conorfennell/nbflash/internal/tags"
)

// Store is the subset of storage the engine reads.
type Store interface {
	ListFiles() ([]domain.File, error)
	ListCells() ([]domain.Cell, error)
	ListFlashcards() ([]domain.Flashcard, error)
	GetFlashcard(id int64) (*domain.Flashcard, error)
}

// Engine runs searches against a Store. Every search reads a fresh snapshot
// each time its sequence is ranged over.
type Engine struct {
	store  Store
	levels int
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for due filtering.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an Engine. levels is the size of the review interval table;
// it bounds the default maximum level of flashcard searches.
func New(store Store, levels int, opts ...Option) *Engine {
	e := &Engine{store: store, levels: levels, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FileFilter selects files. Every tag must be a substring of some effective tag.
type FileFilter struct {
	Filename string
	Tags     []string
}

// CellFilter selects cells. Any tag may match.
type CellFilter struct {
	Content  string
	Filename string
	Tags     []string
}

// Due bounds a flashcard's next review time. The zero value disables the
// filter.
type Due struct {
	at     time.Time
	within time.Duration
	set    bool
	rel    bool
}

// DueBy matches flashcards due at or before t.
func DueBy(t time.Time) Due {
	return Due{at: t, set: true}
}

// DueWithin matches flashcards due within d from now.
func DueWithin(d time.Duration) Due {
	return Due{within: d, set: true, rel: true}
}

// DueNow matches flashcards that are due.
func DueNow() Due {
	return DueWithin(0)
}

// IsZero reports whether the due filter is disabled.
func (d Due) IsZero() bool {
	return !d.set
}

func (d Due) deadline(now time.Time) time.Time {
	if d.rel {
		return now.Add(d.within)
	}
	return d.at
}

// FlashcardFilter selects flashcards. Levels are inclusive and a MaxLevel of
// 0 means one past the last table level. Any tag may match.
type FlashcardFilter struct {
	Content  string
	MinLevel int
	MaxLevel int
	Due      Due
	Tags     []string
	Filename string
}

// Card is a flashcard with its linked cells resolved.
type Card struct {
	domain.Flashcard
	Fronts        []domain.Cell
	Backs         []domain.Cell
	Extras        []domain.Cell
	EffectiveTags domain.Tags
	Filenames     []string
}

// Cells returns every linked cell in link order.
func (c Card) Cells() []domain.Cell {
	out := make([]domain.Cell, 0, len(c.Fronts)+len(c.Backs)+len(c.Extras))
	out = append(out, c.Fronts...)
	out = append(out, c.Backs...)
	return append(out, c.Extras...)
}

// snapshot is one consistent read of the store, indexed for lookups.
type snapshot struct {
	files map[int64]domain.File
	cells map[int64]domain.Cell
}

func (e *Engine) snapshot(withCells bool) (*snapshot, []domain.File, []domain.Cell, error) {
	files, err := e.store.ListFiles()
	if err != nil {
		return nil, nil, nil, err
	}
	s := &snapshot{files: make(map[int64]domain.File, len(files))}
	for _, f := range files {
		s.files[f.ID] = f
	}
	if !withCells {
		return s, files, nil, nil
	}

	cells, err := e.store.ListCells()
	if err != nil {
		return nil, nil, nil, err
	}
	s.cells = make(map[int64]domain.Cell, len(cells))
	for _, c := range cells {
		s.cells[c.ID] = c
	}
	return s, files, cells, nil
}

func (s *snapshot) cellTags(c domain.Cell) domain.Tags {
	return tags.Cell(c, s.files[c.FileID])
}

// card resolves a flashcard's links. Links to cells missing from the
// snapshot are skipped.
func (s *snapshot) card(f domain.Flashcard) Card {
	card := Card{Flashcard: f}
	var cellTags []domain.Tags
	for _, l := range f.Links {
		c, ok := s.cells[l.CellID]
		if !ok {
			continue
		}
		switch l.Role {
		case domain.Front:
			card.Fronts = append(card.Fronts, c)
		case domain.Back:
			card.Backs = append(card.Backs, c)
		case domain.Extra:
			card.Extras = append(card.Extras, c)
		}
		cellTags = append(cellTags, s.cellTags(c))
		if file, ok := s.files[c.FileID]; ok && !slices.Contains(card.Filenames, file.Path) {
			card.Filenames = append(card.Filenames, file.Path)
		}
	}
	card.EffectiveTags = tags.Flashcard(f, cellTags...)
	return card
}

// Files yields the files matching filter in store order.
func (e *Engine) Files(filter FileFilter) iter.Seq2[domain.File, error] {
	return func(yield func(domain.File, error) bool) {
		_, files, _, err := e.snapshot(false)
		if err != nil {
			yield(domain.File{}, err)
			return
		}
		for _, f := range files {
			if !strings.Contains(f.Path, filter.Filename) {
				continue
			}
			if !tags.File(f).MatchAll(filter.Tags) {
				continue
			}
			if !yield(f, nil) {
				return
			}
		}
	}
}

// Cells yields the cells matching filter in store order.
func (e *Engine) Cells(filter CellFilter) iter.Seq2[domain.Cell, error] {
	return func(yield func(domain.Cell, error) bool) {
		s, _, cells, err := e.snapshot(true)
		if err != nil {
			yield(domain.Cell{}, err)
			return
		}
		for _, c := range cells {
			if !strings.Contains(c.Content, filter.Content) {
				continue
			}
			if filter.Filename != "" && !strings.Contains(s.files[c.FileID].Path, filter.Filename) {
				continue
			}
			if len(filter.Tags) > 0 && !s.cellTags(c).MatchAny(filter.Tags) {
				continue
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

// Flashcards yields the flashcards matching filter in store order.
func (e *Engine) Flashcards(filter FlashcardFilter) iter.Seq2[Card, error] {
	return func(yield func(Card, error) bool) {
		s, _, _, err := e.snapshot(true)
		if err != nil {
			yield(Card{}, err)
			return
		}
		cards, err := e.store.ListFlashcards()
		if err != nil {
			yield(Card{}, err)
			return
		}

		maxLevel := filter.MaxLevel
		if maxLevel == 0 {
			maxLevel = e.levels + 1
		}
		var deadline time.Time
		if !filter.Due.IsZero() {
			deadline = filter.Due.deadline(e.now())
		}

		for _, f := range cards {
			if f.Level < filter.MinLevel || f.Level > maxLevel {
				continue
			}
			if !filter.Due.IsZero() && f.NextReview.After(deadline) {
				continue
			}
			card := s.card(f)
			if !card.matches(filter) {
				continue
			}
			if !yield(card, nil) {
				return
			}
		}
	}
}

func (c Card) matches(filter FlashcardFilter) bool {
	if filter.Content != "" {
		found := false
		for _, cell := range c.Cells() {
			if strings.Contains(cell.Content, filter.Content) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.Tags) > 0 && !c.EffectiveTags.MatchAny(filter.Tags) {
		return false
	}
	if filter.Filename != "" {
		found := false
		for _, name := range c.Filenames {
			if strings.Contains(name, filter.Filename) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Card returns the resolved view of one flashcard.
func (e *Engine) Card(id int64) (*Card, error) {
	f, err := e.store.GetFlashcard(id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("flashcard %d: %w", id, domain.ErrNotFound)
	}
	s, _, _, err := e.snapshot(true)
	if err != nil {
		return nil, err
	}
	card := s.card(*f)
	return &card, nil
}

// Collect drains a search into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}
