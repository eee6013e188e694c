// Package web serves nbflash over a JSON HTTP API.
package web

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/conorfennell/nbflash/internal/domain"
	"github.com/conorfennell/nbflash/internal/query"
	nbsync "github.com/conorfennell/nbflash/internal/sync"
)

const maxBodySize = 1 << 20

// Service is the part of the application the server exposes.
type Service interface {
	Add(path string) (nbsync.Report, error)
	Update(filter query.FileFilter) (nbsync.Report, error)
	SearchFiles(filter query.FileFilter) iter.Seq2[domain.File, error]
	SearchCells(filter query.CellFilter) iter.Seq2[domain.Cell, error]
	SearchFlashcards(filter query.FlashcardFilter) iter.Seq2[query.Card, error]
	IterQuiz(tags []string) (*query.Quiz, error)
	Card(id int64) (*query.Card, error)
	CreateFlashcard(front, back, extra []int64) (int64, error)
	MarkCorrect(id int64) (*domain.Flashcard, error)
	MarkIncorrect(id int64) (*domain.Flashcard, error)
	Bury(id int64, d time.Duration) (*domain.Flashcard, error)
	Tags(ref domain.Ref) (domain.Tags, error)
	AddTag(ref domain.Ref, tag string) (bool, error)
	RemoveTag(ref domain.Ref, tag string, recursive bool) ([]domain.Ref, error)
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	app    Service
	router chi.Router

	mu      sync.Mutex
	quizzes map[uuid.UUID]*query.Quiz
}

// NewServer creates and configures a new server.
func NewServer(app Service) *Server {
	s := &Server{
		app:     app,
		router:  chi.NewRouter(),
		quizzes: make(map[uuid.UUID]*query.Quiz),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/files", func(r chi.Router) {
		r.Get("/", s.handleSearchFiles())
		r.Post("/", s.handleAddFiles())
		r.Post("/update", s.handleUpdateFiles())
	})
	s.router.Get("/cells", s.handleSearchCells())

	s.router.Route("/flashcards", func(r chi.Router) {
		r.Get("/", s.handleSearchFlashcards())
		r.Post("/", s.handleCreateFlashcard())
		r.Get("/{id}", s.handleGetFlashcard())
		r.Post("/{id}/correct", s.handleReview(s.app.MarkCorrect))
		r.Post("/{id}/incorrect", s.handleReview(s.app.MarkIncorrect))
		r.Post("/{id}/bury", s.handleBury())
	})

	s.router.Route("/tags/{kind}/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetTags())
		r.Post("/", s.handleAddTag())
		r.Delete("/{tag}", s.handleRemoveTag())
	})

	s.router.Route("/quizzes", func(r chi.Router) {
		r.Post("/", s.handleStartQuiz())
		r.Get("/{quiz}/next", s.handleNextQuestion())
		r.Delete("/{quiz}", s.handleEndQuiz())
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Web server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Web server shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleSearchFiles() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := query.FileFilter{Filename: q.Get("filename"), Tags: q["tag"]}
		writeSeq(w, s.app.SearchFiles(filter), newFile)
	}
}

func (s *Server) handleAddFiles() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Path string `json:"path"`
		}
		if !decode(w, r, &req) {
			return
		}
		if req.Path == "" {
			httpError(w, http.StatusBadRequest, "path cannot be empty")
			return
		}

		report, err := s.app.Add(req.Path)
		if err != nil {
			httpError(w, http.StatusBadRequest, "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, newReport(report))
	}
}

func (s *Server) handleUpdateFiles() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Filename string   `json:"filename"`
			Tags     []string `json:"tags"`
		}
		if r.ContentLength != 0 && !decode(w, r, &req) {
			return
		}

		report, err := s.app.Update(query.FileFilter{Filename: req.Filename, Tags: req.Tags})
		if err != nil {
			serverError(w, "Error updating files", err)
			return
		}
		writeJSON(w, http.StatusOK, newReport(report))
	}
}

func (s *Server) handleSearchCells() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := query.CellFilter{Content: q.Get("content"), Filename: q.Get("filename"), Tags: q["tag"]}
		writeSeq(w, s.app.SearchCells(filter), newCell)
	}
}

func (s *Server) handleSearchFlashcards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := flashcardFilter(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "%v", err)
			return
		}
		writeSeq(w, s.app.SearchFlashcards(filter), newCard)
	}
}

// flashcardFilter reads a FlashcardFilter from query parameters. "due" is a
// duration from now and "due_by" an RFC 3339 time.
func flashcardFilter(r *http.Request) (query.FlashcardFilter, error) {
	q := r.URL.Query()
	filter := query.FlashcardFilter{
		Content:  q.Get("content"),
		Filename: q.Get("filename"),
		Tags:     q["tag"],
	}

	var err error
	if v := q.Get("min_level"); v != "" {
		if filter.MinLevel, err = strconv.Atoi(v); err != nil {
			return filter, fmt.Errorf("invalid min_level: %w", err)
		}
	}
	if v := q.Get("max_level"); v != "" {
		if filter.MaxLevel, err = strconv.Atoi(v); err != nil {
			return filter, fmt.Errorf("invalid max_level: %w", err)
		}
	}
	if v := q.Get("due"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return filter, fmt.Errorf("invalid due: %w", err)
		}
		filter.Due = query.DueWithin(d)
	}
	if v := q.Get("due_by"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid due_by: %w", err)
		}
		filter.Due = query.DueBy(t)
	}
	return filter, nil
}

func (s *Server) handleCreateFlashcard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Front []int64 `json:"front"`
			Back  []int64 `json:"back"`
			Extra []int64 `json:"extra"`
		}
		if !decode(w, r, &req) {
			return
		}

		id, err := s.app.CreateFlashcard(req.Front, req.Back, req.Extra)
		if err != nil {
			domainError(w, "Error creating flashcard", err)
			return
		}
		s.writeCard(w, http.StatusCreated, id)
	}
}

func (s *Server) handleGetFlashcard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		s.writeCard(w, http.StatusOK, id)
	}
}

func (s *Server) writeCard(w http.ResponseWriter, status int, id int64) {
	card, err := s.app.Card(id)
	if err != nil {
		domainError(w, "Error loading flashcard", err)
		return
	}
	writeJSON(w, status, newCard(*card))
}

func (s *Server) handleReview(review func(int64) (*domain.Flashcard, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if _, err := review(id); err != nil {
			domainError(w, "Error reviewing flashcard", err)
			return
		}
		s.writeCard(w, http.StatusOK, id)
	}
}

func (s *Server) handleBury() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var d time.Duration
		if v := r.URL.Query().Get("for"); v != "" {
			var err error
			if d, err = time.ParseDuration(v); err != nil {
				httpError(w, http.StatusBadRequest, "invalid duration: %v", err)
				return
			}
		}
		if _, err := s.app.Bury(id, d); err != nil {
			domainError(w, "Error burying flashcard", err)
			return
		}
		s.writeCard(w, http.StatusOK, id)
	}
}

func (s *Server) handleGetTags() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, ok := pathRef(w, r)
		if !ok {
			return
		}
		tags, err := s.app.Tags(ref)
		if err != nil {
			domainError(w, "Error loading tags", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tags": nonNil(tags)})
	}
}

func (s *Server) handleAddTag() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, ok := pathRef(w, r)
		if !ok {
			return
		}
		var req struct {
			Tag string `json:"tag"`
		}
		if !decode(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Tag) == "" {
			httpError(w, http.StatusBadRequest, "tag cannot be empty")
			return
		}

		changed, err := s.app.AddTag(ref, strings.TrimSpace(req.Tag))
		if err != nil {
			domainError(w, "Error adding tag", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"changed": changed})
	}
}

func (s *Server) handleRemoveTag() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, ok := pathRef(w, r)
		if !ok {
			return
		}
		recursive := r.URL.Query().Get("recursive") == "true"

		changed, err := s.app.RemoveTag(ref, chi.URLParam(r, "tag"), recursive)
		if err != nil {
			domainError(w, "Error removing tag", err)
			return
		}
		refs := make([]refJSON, 0, len(changed))
		for _, c := range changed {
			refs = append(refs, refJSON{Kind: string(c.Kind), ID: c.ID})
		}
		writeJSON(w, http.StatusOK, map[string]any{"changed": refs})
	}
}

func (s *Server) handleStartQuiz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Tags []string `json:"tags"`
		}
		if r.ContentLength != 0 && !decode(w, r, &req) {
			return
		}

		quiz, err := s.app.IterQuiz(req.Tags)
		if err != nil {
			serverError(w, "Error starting quiz", err)
			return
		}

		id := uuid.New()
		s.mu.Lock()
		s.quizzes[id] = quiz
		s.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"id": id.String(), "remaining": quiz.Len()})
	}
}

func (s *Server) handleNextQuestion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "quiz"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid quiz id")
			return
		}

		s.mu.Lock()
		quiz, ok := s.quizzes[id]
		var card query.Card
		if ok {
			card, err = quiz.Next()
			if errors.Is(err, domain.ErrExhausted) {
				delete(s.quizzes, id)
			}
		}
		s.mu.Unlock()

		if !ok {
			httpError(w, http.StatusNotFound, "quiz not found")
			return
		}
		if err != nil {
			domainError(w, "Error drawing flashcard", err)
			return
		}
		writeJSON(w, http.StatusOK, newCard(card))
	}
}

func (s *Server) handleEndQuiz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "quiz"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid quiz id")
			return
		}
		s.mu.Lock()
		delete(s.quizzes, id)
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
}
