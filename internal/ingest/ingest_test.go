package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/conorfennell/nbflash/internal/domain"
	"github.com/conorfennell/nbflash/internal/storage"
)

func setup(t *testing.T, files ...domain.File) (*storage.DB, *Ingestor) {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	for _, f := range files {
		f.Updated = time.Now()
		if err := db.InsertFile(f); err != nil {
			t.Fatalf("InsertFile() failed: %v", err)
		}
	}
	return db, New(db)
}

// contentsOf resolves cell ids into their content.
func contentsOf(t *testing.T, db *storage.DB, ids []int64) []string {
	t.Helper()
	var out []string
	for _, id := range ids {
		c, err := db.GetCell(id)
		if err != nil || c == nil {
			t.Fatalf("GetCell(%d) = %v, %v", id, c, err)
		}
		out = append(out, c.Content)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestIngestGrouping(t *testing.T) {
	testCases := []struct {
		name           string
		contents       []string
		expectedFronts [][]string
		expectedBacks  [][]string
	}{
		{
			name:           "Heading boundaries",
			contents:       []string{"# A", "x", "y", "# B", "z", "# C"},
			expectedFronts: [][]string{{"# A"}, {"# B"}},
			expectedBacks:  [][]string{{"x", "y"}, {"z"}},
		},
		{
			name:     "Trailing group is never flushed",
			contents: []string{"# A", "x"},
		},
		{
			name:           "Dangling content before the first heading",
			contents:       []string{"intro", "# A", "x", "# B"},
			expectedFronts: [][]string{{"# A"}},
			expectedBacks:  [][]string{{"x"}},
		},
		{
			name:           "Consecutive headings share a front",
			contents:       []string{"# A", "## Sub", "x", "# B"},
			expectedFronts: [][]string{{"# A", "## Sub"}},
			expectedBacks:  [][]string{{"x"}},
		},
		{
			name:     "No headings",
			contents: []string{"x", "y"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			file := domain.File{ID: 1, Path: "/nb/a.ipynb", Checksum: "c"}
			db, in := setup(t, file)

			res, err := in.Ingest(file, tc.contents)
			if err != nil {
				t.Fatalf("Ingest() returned an unexpected error: %v", err)
			}
			if res.Created != len(tc.contents) {
				t.Errorf("Expected %d cells created, but got %d", len(tc.contents), res.Created)
			}
			if len(res.Flashcards) != len(tc.expectedFronts) {
				t.Fatalf("Expected %d flashcards, but got %d", len(tc.expectedFronts), len(res.Flashcards))
			}

			for i, id := range res.Flashcards {
				fc, err := db.GetFlashcard(id)
				if err != nil || fc == nil {
					t.Fatalf("GetFlashcard(%d) = %v, %v", id, fc, err)
				}
				if fc.Level != 0 {
					t.Errorf("Expected new flashcard at level 0, but got %d", fc.Level)
				}
				fronts := contentsOf(t, db, fc.CellIDs(domain.Front))
				backs := contentsOf(t, db, fc.CellIDs(domain.Back))
				if !equal(fronts, tc.expectedFronts[i]) {
					t.Errorf("Expected fronts %q, but got %q", tc.expectedFronts[i], fronts)
				}
				if !equal(backs, tc.expectedBacks[i]) {
					t.Errorf("Expected backs %q, but got %q", tc.expectedBacks[i], backs)
				}
			}
		})
	}
}

func TestIngestIdempotent(t *testing.T) {
	file := domain.File{ID: 1, Path: "/nb/a.ipynb", Checksum: "c"}
	db, in := setup(t, file)
	contents := []string{"# A", "x", "# B", "y", "# C"}

	if _, err := in.Ingest(file, contents); err != nil {
		t.Fatalf("first Ingest() returned an unexpected error: %v", err)
	}
	res, err := in.Ingest(file, contents)
	if err != nil {
		t.Fatalf("second Ingest() returned an unexpected error: %v", err)
	}

	if res.Created != 0 || res.Updated != 0 || len(res.Flashcards) != 0 {
		t.Errorf("Expected no changes on re-ingestion, but got %+v", res)
	}
	if res.Unchanged != len(contents) {
		t.Errorf("Expected %d unchanged cells, but got %d", len(contents), res.Unchanged)
	}
	cards, _ := db.ListFlashcards()
	if len(cards) != 2 {
		t.Errorf("Expected 2 flashcards in total, but got %d", len(cards))
	}
}

func TestIngestGrownOutputUpdatesInPlace(t *testing.T) {
	file := domain.File{ID: 1, Path: "/nb/a.ipynb", Checksum: "c"}
	db, in := setup(t, file)

	if _, err := in.Ingest(file, []string{"# A", "<pre>line 1</pre>"}); err != nil {
		t.Fatalf("Ingest() returned an unexpected error: %v", err)
	}
	before, _ := db.CellsByFile(1)

	res, err := in.Ingest(file, []string{"# A", "<pre>line 1</pre><pre>line 2</pre>"})
	if err != nil {
		t.Fatalf("Ingest() returned an unexpected error: %v", err)
	}
	if res.Updated != 1 || res.Created != 0 {
		t.Errorf("Expected one in-place update and no new cells, but got %+v", res)
	}

	after, _ := db.CellsByFile(1)
	if len(after) != len(before) {
		t.Fatalf("Expected %d cells, but got %d", len(before), len(after))
	}
	if after[1].ID != before[1].ID || after[1].Content != "<pre>line 1</pre><pre>line 2</pre>" {
		t.Errorf("Expected cell %d to hold the grown output, but got %+v", before[1].ID, after[1])
	}
}

func TestIngestDuplicateAcrossFiles(t *testing.T) {
	first := domain.File{ID: 1, Path: "/nb/first.ipynb", Checksum: "c"}
	second := domain.File{ID: 2, Path: "/nb/second.ipynb", Checksum: "d"}
	db, in := setup(t, first, second)

	if _, err := in.Ingest(first, []string{"# Shared", "body"}); err != nil {
		t.Fatalf("Ingest() returned an unexpected error: %v", err)
	}

	res, err := in.Ingest(second, []string{"# Own", "own body", "# Shared", "after"})
	if !errors.Is(err, domain.ErrDuplicateCell) {
		t.Fatalf("Expected ErrDuplicateCell, but got %v", err)
	}
	var dupErr *domain.DuplicateCellError
	if !errors.As(err, &dupErr) {
		t.Fatalf("Expected a *DuplicateCellError, but got %T", err)
	}
	if dupErr.FileID != 2 || dupErr.ConflictFileID != 1 || dupErr.ConflictPath != "/nb/first.ipynb" {
		t.Errorf("Unexpected duplicate error details: %+v", *dupErr)
	}
	if res.Created != 2 {
		t.Errorf("Expected the 2 cells before the duplicate to be created, but got %d", res.Created)
	}

	cells, _ := db.CellsByFile(2)
	if len(cells) != 2 {
		t.Fatalf("Expected earlier cells of the file to stay committed, but got %d cells", len(cells))
	}
	for _, c := range cells {
		if c.Content == "after" {
			t.Error("Expected ingestion to stop at the duplicate")
		}
	}
}

func TestIngestSkipsEmptyContent(t *testing.T) {
	file := domain.File{ID: 1, Path: "/nb/a.ipynb", Checksum: "c"}
	_, in := setup(t, file)

	res, err := in.Ingest(file, []string{"# A", "", "x", "# B"})
	if err != nil {
		t.Fatalf("Ingest() returned an unexpected error: %v", err)
	}
	if res.Created != 3 || len(res.Flashcards) != 1 {
		t.Errorf("Expected 3 cells and 1 flashcard, but got %+v", res)
	}
}

func TestReconcilePrefersExactMatch(t *testing.T) {
	existing := []domain.Cell{{ID: 1, Content: "ab"}, {ID: 2, Content: "abc"}}

	if i, exact := reconcile(existing, "abc"); i != 1 || !exact {
		t.Errorf("Expected exact match at 1, but got %d (exact=%v)", i, exact)
	}
	if i, exact := reconcile(existing, "abcd"); i != 0 || exact {
		t.Errorf("Expected substring match at 0, but got %d (exact=%v)", i, exact)
	}
	if i, _ := reconcile(existing, "zzz"); i != -1 {
		t.Errorf("Expected no match, but got %d", i)
	}
}
