// Package srs implements the level-table spaced-repetition schedule.
package srs

import (
	"fmt"
	"time"

	"github.com/conorfennell/nbflash/internal/domain"
)

// Rating is the user's response to a flashcard review.
type Rating int

const (
	Incorrect Rating = iota
	Correct
)

// DefaultBury is how long Bury postpones a flashcard when no duration is given.
const DefaultBury = 4 * time.Hour

// DefaultIncorrectBury is how long an incorrect answer postpones a flashcard.
const DefaultIncorrectBury = time.Minute

// Table holds the review interval for levels 1..N.
type Table []time.Duration

// DefaultTable returns the stock nine-level table.
func DefaultTable() Table {
	return Table{
		10 * time.Minute,
		4 * time.Hour,
		8 * time.Hour,
		24 * time.Hour,
		3 * 24 * time.Hour,
		7 * 24 * time.Hour,
		14 * 24 * time.Hour,
		28 * 24 * time.Hour,
		16 * 7 * 24 * time.Hour,
	}
}

// Interval returns the interval for level. Levels past the end of the table
// use the last interval and levels below 1 use the first.
func (t Table) Interval(level int) time.Duration {
	if len(t) == 0 {
		return 0
	}
	switch {
	case level < 1:
		level = 1
	case level > len(t):
		level = len(t)
	}
	return t[level-1]
}

// Levels is the highest level the table distinguishes.
func (t Table) Levels() int {
	return len(t)
}

// NextLevel computes the level after a review with the given rating.
func NextLevel(level int, rating Rating) int {
	if rating == Correct {
		return level + 1
	}
	if level > 1 {
		return level - 1
	}
	return level
}

// Store is the subset of storage the scheduler needs.
type Store interface {
	GetFlashcard(id int64) (*domain.Flashcard, error)
	SaveReview(f domain.Flashcard) error
}

// Scheduler applies review outcomes to stored flashcards.
type Scheduler struct {
	store Store
	table Table
	bury  time.Duration
	now   func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTable overrides the interval table.
func WithTable(t Table) Option {
	return func(s *Scheduler) {
		if len(t) > 0 {
			s.table = t
		}
	}
}

// WithIncorrectBury overrides how long an incorrect answer postpones a card.
func WithIncorrectBury(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.bury = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler returns a Scheduler using the default table unless overridden.
func NewScheduler(store Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		store: store,
		table: DefaultTable(),
		bury:  DefaultIncorrectBury,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Table returns the interval table in use.
func (s *Scheduler) Table() Table {
	return s.table
}

// MarkCorrect raises the flashcard's level by one and schedules it one level
// interval from now.
func (s *Scheduler) MarkCorrect(id int64) (*domain.Flashcard, error) {
	return s.review(id, func(f *domain.Flashcard, now time.Time) {
		f.Level = NextLevel(f.Level, Correct)
		f.NextReview = now.Add(s.table.Interval(f.Level))
	})
}

// MarkIncorrect lowers the flashcard's level, never below 1, and brings it
// back shortly.
func (s *Scheduler) MarkIncorrect(id int64) (*domain.Flashcard, error) {
	return s.review(id, func(f *domain.Flashcard, now time.Time) {
		f.Level = NextLevel(f.Level, Incorrect)
		f.NextReview = now.Add(s.bury)
	})
}

// Bury postpones the flashcard by d, or DefaultBury when d is not positive.
// The level is unchanged.
func (s *Scheduler) Bury(id int64, d time.Duration) (*domain.Flashcard, error) {
	if d <= 0 {
		d = DefaultBury
	}
	return s.review(id, func(f *domain.Flashcard, now time.Time) {
		f.NextReview = now.Add(d)
	})
}

func (s *Scheduler) review(id int64, apply func(*domain.Flashcard, time.Time)) (*domain.Flashcard, error) {
	f, err := s.store.GetFlashcard(id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("flashcard %d: %w", id, domain.ErrNotFound)
	}

	now := s.now()
	apply(f, now)
	f.Modified = now
	if err := s.store.SaveReview(*f); err != nil {
		return nil, err
	}
	return f, nil
}
