package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/conorfennell/nbflash/internal/domain"
	"github.com/conorfennell/nbflash/internal/query"
	nbsync "github.com/conorfennell/nbflash/internal/sync"
)

type fileJSON struct {
	ID       int64     `json:"id"`
	Path     string    `json:"path"`
	Checksum string    `json:"checksum"`
	Updated  time.Time `json:"updated"`
	Tags     []string  `json:"tags"`
}

func newFile(f domain.File) fileJSON {
	return fileJSON{ID: f.ID, Path: f.Path, Checksum: f.Checksum, Updated: f.Updated, Tags: nonNil(f.Tags)}
}

type cellJSON struct {
	ID       int64     `json:"id"`
	FileID   int64     `json:"file_id"`
	Content  string    `json:"content"`
	Modified time.Time `json:"modified"`
	Tags     []string  `json:"tags"`
}

func newCell(c domain.Cell) cellJSON {
	return cellJSON{ID: c.ID, FileID: c.FileID, Content: c.Content, Modified: c.Modified, Tags: nonNil(c.Tags)}
}

type cardJSON struct {
	ID         int64      `json:"id"`
	Level      int        `json:"level"`
	NextReview time.Time  `json:"next_review"`
	Modified   time.Time  `json:"modified"`
	Tags       []string   `json:"tags"`
	Fronts     []cellJSON `json:"fronts"`
	Backs      []cellJSON `json:"backs"`
	Extras     []cellJSON `json:"extras"`
	Filenames  []string   `json:"filenames"`
}

func newCard(c query.Card) cardJSON {
	cells := func(in []domain.Cell) []cellJSON {
		out := make([]cellJSON, 0, len(in))
		for _, cell := range in {
			out = append(out, newCell(cell))
		}
		return out
	}
	return cardJSON{
		ID:         c.ID,
		Level:      c.Level,
		NextReview: c.NextReview,
		Modified:   c.Modified,
		Tags:       nonNil(c.EffectiveTags),
		Fronts:     cells(c.Fronts),
		Backs:      cells(c.Backs),
		Extras:     cells(c.Extras),
		Filenames:  nonNil(c.Filenames),
	}
}

type refJSON struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

type failureJSON struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type reportJSON struct {
	Added      int           `json:"added"`
	Updated    int           `json:"updated"`
	Unchanged  int           `json:"unchanged"`
	Removed    int           `json:"removed"`
	Cells      int           `json:"cells"`
	Flashcards int           `json:"flashcards"`
	Failures   []failureJSON `json:"failures"`
}

func newReport(r nbsync.Report) reportJSON {
	out := reportJSON{
		Added:      r.Added,
		Updated:    r.Updated,
		Unchanged:  r.Unchanged,
		Removed:    r.Removed,
		Cells:      r.Cells,
		Flashcards: r.Flashcards,
		Failures:   make([]failureJSON, 0, len(r.Failures)),
	}
	for _, f := range r.Failures {
		out.Failures = append(out.Failures, failureJSON{Path: f.Path, Error: f.Err.Error()})
	}
	return out
}

func nonNil[T ~[]string](s T) []string {
	if len(s) == 0 {
		return []string{}
	}
	return []string(s)
}

// writeSeq drains a search into a JSON array.
func writeSeq[T, J any](w http.ResponseWriter, seq iter.Seq2[T, error], conv func(T) J) {
	out := []J{}
	for v, err := range seq {
		if err != nil {
			serverError(w, "Error running search", err)
			return
		}
		out = append(out, conv(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func httpError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]any{"error": fmt.Sprintf(format, args...)})
}

func serverError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	httpError(w, http.StatusInternalServerError, "Internal Server Error")
}

// domainError maps domain errors to client errors and anything else to a 500.
func domainError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrExhausted):
		httpError(w, http.StatusNotFound, "%v", err)
	case errors.Is(err, domain.ErrInvalidFlashcard):
		httpError(w, http.StatusBadRequest, "%v", err)
	default:
		serverError(w, msg, err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid %s", name)
		return 0, false
	}
	return id, true
}

func pathRef(w http.ResponseWriter, r *http.Request) (domain.Ref, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return domain.Ref{}, false
	}
	kind := domain.Kind(chi.URLParam(r, "kind"))
	switch kind {
	case domain.KindFile, domain.KindCell, domain.KindFlashcard:
		return domain.Ref{Kind: kind, ID: id}, true
	}
	httpError(w, http.StatusBadRequest, "unknown kind %q", kind)
	return domain.Ref{}, false
}
