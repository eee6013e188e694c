// Package app wires the store and the nbflash services together behind one
// context object shared by the CLI and the web server.
package app

import (
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/conorfennell/nbflash/internal/config"
	"github.com/conorfennell/nbflash/internal/domain"
	"github.com/conorfennell/nbflash/internal/query"
	"github.com/conorfennell/nbflash/internal/srs"
	"github.com/conorfennell/nbflash/internal/storage"
	"github.com/conorfennell/nbflash/internal/sync"
	"github.com/conorfennell/nbflash/internal/tags"
)

// App is an open nbflash store with its services.
type App struct {
	Config *config.Config

	db        *storage.DB
	fs        billy.Filesystem
	tags      *tags.Resolver
	scheduler *srs.Scheduler
	query     *query.Engine
	syncer    *sync.Syncer
	now       func() time.Time
}

// Option configures an App.
type Option func(*App)

// WithFilesystem reads notebooks from fs instead of the host filesystem.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(a *App) { a.fs = fs }
}

// WithClock overrides the time source of every service.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// Open connects to the configured store and builds the services.
func Open(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{Config: cfg, fs: osfs.New("/"), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}

	db, err := storage.Open(cfg.Engine)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.db = db

	table := cfg.Table()
	a.tags = tags.NewResolver(db)
	a.scheduler = srs.NewScheduler(db,
		srs.WithTable(table),
		srs.WithIncorrectBury(cfg.Bury),
		srs.WithClock(a.now),
	)
	a.query = query.New(db, table.Levels(), query.WithClock(a.now))
	a.syncer = sync.New(a.fs, db, a.query, sync.WithReposDir(cfg.Repos), sync.WithClock(a.now))

	slog.Debug("Store opened", "engine", cfg.Engine, "levels", table.Levels())
	return a, nil
}

// Close closes the store.
func (a *App) Close() error {
	return a.db.Close()
}

// Add ingests a notebook, a directory of notebooks or a git repository.
func (a *App) Add(path string) (sync.Report, error) {
	return a.syncer.Add(path)
}

// Update re-ingests changed notebooks and drops missing ones.
func (a *App) Update(filter query.FileFilter) (sync.Report, error) {
	return a.syncer.Update(filter)
}

// SearchFiles yields the stored files matching filter.
func (a *App) SearchFiles(filter query.FileFilter) iter.Seq2[domain.File, error] {
	return a.query.Files(filter)
}

// SearchCells yields the stored cells matching filter.
func (a *App) SearchCells(filter query.CellFilter) iter.Seq2[domain.Cell, error] {
	return a.query.Cells(filter)
}

// SearchFlashcards yields resolved flashcards matching filter.
func (a *App) SearchFlashcards(filter query.FlashcardFilter) iter.Seq2[query.Card, error] {
	return a.query.Flashcards(filter)
}

// Quiz returns one random due flashcard matching any of tags.
func (a *App) Quiz(tags []string) (query.Card, error) {
	return a.query.Quiz(tags)
}

// IterQuiz returns every due flashcard matching any of tags, shuffled.
func (a *App) IterQuiz(tags []string) (*query.Quiz, error) {
	return a.query.IterQuiz(tags)
}

// Card returns the resolved view of one flashcard.
func (a *App) Card(id int64) (*query.Card, error) {
	return a.query.Card(id)
}

// MarkCorrect records a correct answer and moves the flashcard up a level.
func (a *App) MarkCorrect(id int64) (*domain.Flashcard, error) {
	return a.scheduler.MarkCorrect(id)
}

// MarkIncorrect records an incorrect answer and brings the flashcard back soon.
func (a *App) MarkIncorrect(id int64) (*domain.Flashcard, error) {
	return a.scheduler.MarkIncorrect(id)
}

// Bury postpones a flashcard by d, or srs.DefaultBury when d is not positive.
func (a *App) Bury(id int64, d time.Duration) (*domain.Flashcard, error) {
	return a.scheduler.Bury(id, d)
}

// Tags returns the effective tags of an entity.
func (a *App) Tags(ref domain.Ref) (domain.Tags, error) {
	return a.tags.Effective(ref)
}

// AddTag adds tag to an entity's own tags.
func (a *App) AddTag(ref domain.Ref, tag string) (bool, error) {
	return a.tags.AddTag(ref, tag)
}

// RemoveTag removes tag from an entity. With recursive set, a tag the entity
// only inherits is removed where it is owned, and every changed entity is
// returned.
func (a *App) RemoveTag(ref domain.Ref, tag string, recursive bool) ([]domain.Ref, error) {
	if recursive {
		return a.tags.RemoveEffectiveTag(ref, tag)
	}
	changed, err := a.tags.RemoveOwnTag(ref, tag)
	if err != nil || !changed {
		return nil, err
	}
	return []domain.Ref{ref}, nil
}

// CreateFlashcard builds a flashcard from existing cells. It needs at least
// one front and one back cell.
func (a *App) CreateFlashcard(front, back, extra []int64) (int64, error) {
	links, err := domain.NewLinks(front, back, extra)
	if err != nil {
		return 0, err
	}
	for _, l := range links {
		c, err := a.db.GetCell(l.CellID)
		if err != nil {
			return 0, err
		}
		if c == nil {
			return 0, fmt.Errorf("cell %d: %w", l.CellID, domain.ErrNotFound)
		}
	}

	now := a.now()
	id, err := a.db.InsertFlashcard(domain.Flashcard{NextReview: now, Modified: now, Links: links})
	if err != nil {
		return 0, err
	}
	slog.Info("Flashcard created", "flashcard_id", id, "cells", len(links))
	return id, nil
}
