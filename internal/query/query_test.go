package query

import (
	"errors"
	"testing"
	"time"

	"github.com/conorfennell/nbflash/internal/domain"
	"github.com/conorfennell/nbflash/internal/storage"
)

type fixture struct {
	engine  *Engine
	now     time.Time
	algebra int64
	biology int64
}

// newFixture stores two files, each with one flashcard. The algebra card is
// overdue by a second and the biology card is due in an hour.
func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	db.InsertFile(domain.File{ID: 1, Path: "/nb/math/a.ipynb", Checksum: "a", Updated: now, Tags: domain.Tags{"math-algebra"}})
	db.InsertFile(domain.File{ID: 2, Path: "/nb/bio/b.ipynb", Checksum: "b", Updated: now, Tags: domain.Tags{"bio", "cells"}})

	insert := func(fileID int64, level int, due time.Time, contents ...string) int64 {
		var ids []int64
		for _, content := range contents {
			id, err := db.InsertCell(domain.Cell{FileID: fileID, Content: content, Modified: now})
			if err != nil {
				t.Fatalf("InsertCell() failed: %v", err)
			}
			ids = append(ids, id)
		}
		links, _ := domain.NewLinks(ids[:1], ids[1:2], ids[2:])
		id, err := db.InsertFlashcard(domain.Flashcard{Level: level, NextReview: due, Modified: now, Links: links})
		if err != nil {
			t.Fatalf("InsertFlashcard() failed: %v", err)
		}
		return id
	}

	algebra := insert(1, 0, now.Add(-time.Second), "# Quadratic formula", "x = ...", "extra note")
	biology := insert(2, 3, now.Add(time.Hour), "# Mitochondria", "powerhouse")

	engine := New(db, 9, WithClock(func() time.Time { return now }))
	return fixture{engine: engine, now: now, algebra: algebra, biology: biology}
}

func ids(t *testing.T, cards []Card, err error) []int64 {
	t.Helper()
	if err != nil {
		t.Fatalf("search returned an unexpected error: %v", err)
	}
	var out []int64
	for _, c := range cards {
		out = append(out, c.ID)
	}
	return out
}

func TestFlashcardFilters(t *testing.T) {
	fx := newFixture(t)

	testCases := []struct {
		name     string
		filter   FlashcardFilter
		expected []int64
	}{
		{"No filter", FlashcardFilter{}, []int64{fx.algebra, fx.biology}},
		{"Due by now", FlashcardFilter{Due: DueBy(fx.now)}, []int64{fx.algebra}},
		{"Due within two hours", FlashcardFilter{Due: DueWithin(2 * time.Hour)}, []int64{fx.algebra, fx.biology}},
		{"Tag substring", FlashcardFilter{Tags: []string{"alg"}}, []int64{fx.algebra}},
		{"Tags are OR", FlashcardFilter{Tags: []string{"alg", "bio"}}, []int64{fx.algebra, fx.biology}},
		{"Content in back", FlashcardFilter{Content: "powerhouse"}, []int64{fx.biology}},
		{"Content in extra", FlashcardFilter{Content: "extra"}, []int64{fx.algebra}},
		{"Filename", FlashcardFilter{Filename: "bio/"}, []int64{fx.biology}},
		{"Min level", FlashcardFilter{MinLevel: 1}, []int64{fx.biology}},
		{"Max level", FlashcardFilter{MaxLevel: 2}, []int64{fx.algebra}},
		{"No match", FlashcardFilter{Content: "nothing like this"}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cards, err := Collect(fx.engine.Flashcards(tc.filter))
			got := ids(t, cards, err)
			if len(got) != len(tc.expected) {
				t.Fatalf("Expected %v, but got %v", tc.expected, got)
			}
			for i := range got {
				if got[i] != tc.expected[i] {
					t.Errorf("Expected %v, but got %v", tc.expected, got)
				}
			}
		})
	}
}

func TestFlashcardSearchIsRestartable(t *testing.T) {
	fx := newFixture(t)
	seq := fx.engine.Flashcards(FlashcardFilter{})

	first, _ := Collect(seq)
	second, _ := Collect(seq)
	if len(first) != 2 || len(second) != 2 {
		t.Errorf("Expected both passes to yield 2 flashcards, but got %d and %d", len(first), len(second))
	}
}

func TestCardView(t *testing.T) {
	fx := newFixture(t)

	card, err := fx.engine.Card(fx.algebra)
	if err != nil {
		t.Fatalf("Card() returned an unexpected error: %v", err)
	}
	if len(card.Fronts) != 1 || card.Fronts[0].Content != "# Quadratic formula" {
		t.Errorf("Unexpected fronts %+v", card.Fronts)
	}
	if len(card.Backs) != 1 || len(card.Extras) != 1 {
		t.Errorf("Expected one back and one extra, but got %d and %d", len(card.Backs), len(card.Extras))
	}
	if !card.EffectiveTags.Has("math-algebra") {
		t.Errorf("Expected the file tag to be inherited, but got %v", card.EffectiveTags)
	}
	if len(card.Filenames) != 1 || card.Filenames[0] != "/nb/math/a.ipynb" {
		t.Errorf("Expected one filename, but got %v", card.Filenames)
	}

	if _, err := fx.engine.Card(999); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, but got %v", err)
	}
}

func TestFileFilters(t *testing.T) {
	fx := newFixture(t)

	testCases := []struct {
		name     string
		filter   FileFilter
		expected int
	}{
		{"All", FileFilter{}, 2},
		{"Filename", FileFilter{Filename: "math"}, 1},
		{"Tags are AND", FileFilter{Tags: []string{"bio", "cell"}}, 1},
		{"AND with a missing tag", FileFilter{Tags: []string{"bio", "alg"}}, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			files, err := Collect(fx.engine.Files(tc.filter))
			if err != nil {
				t.Fatalf("Files() returned an unexpected error: %v", err)
			}
			if len(files) != tc.expected {
				t.Errorf("Expected %d files, but got %d", tc.expected, len(files))
			}
		})
	}
}

func TestCellFilters(t *testing.T) {
	fx := newFixture(t)

	testCases := []struct {
		name     string
		filter   CellFilter
		expected int
	}{
		{"All", CellFilter{}, 5},
		{"Content", CellFilter{Content: "#"}, 2},
		{"Filename", CellFilter{Filename: "bio"}, 2},
		{"Inherited tag", CellFilter{Tags: []string{"alg"}}, 3},
		{"Tags are OR", CellFilter{Tags: []string{"alg", "bio"}}, 5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cells, err := Collect(fx.engine.Cells(tc.filter))
			if err != nil {
				t.Fatalf("Cells() returned an unexpected error: %v", err)
			}
			if len(cells) != tc.expected {
				t.Errorf("Expected %d cells, but got %d", tc.expected, len(cells))
			}
		})
	}
}

func TestQuiz(t *testing.T) {
	fx := newFixture(t)

	q, err := fx.engine.IterQuiz(nil)
	if err != nil {
		t.Fatalf("IterQuiz() returned an unexpected error: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("Expected one due flashcard, but got %d", q.Len())
	}
	card, err := q.Next()
	if err != nil || card.ID != fx.algebra {
		t.Errorf("Expected flashcard %d, but got %d (%v)", fx.algebra, card.ID, err)
	}
	if _, err := q.Next(); !errors.Is(err, domain.ErrExhausted) {
		t.Errorf("Expected ErrExhausted, but got %v", err)
	}

	if _, err := fx.engine.Quiz([]string{"bio"}); !errors.Is(err, domain.ErrExhausted) {
		t.Errorf("Expected ErrExhausted for a tag with nothing due, but got %v", err)
	}
	if card, err := fx.engine.Quiz([]string{"math"}); err != nil || card.ID != fx.algebra {
		t.Errorf("Expected flashcard %d, but got %d (%v)", fx.algebra, card.ID, err)
	}
}
