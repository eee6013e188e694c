package query

import (
	"math/rand/v2"

	"github.com/conorfennell/nbflash/internal/domain"
)

// Quiz is a shuffled, one-shot sequence of due flashcards.
type Quiz struct {
	cards []Card
}

// Len returns how many flashcards remain.
func (q *Quiz) Len() int {
	return len(q.cards)
}

// Next returns the next flashcard, or domain.ErrExhausted once none remain.
func (q *Quiz) Next() (Card, error) {
	if len(q.cards) == 0 {
		return Card{}, domain.ErrExhausted
	}
	c := q.cards[0]
	q.cards = q.cards[1:]
	return c, nil
}

// IterQuiz collects the flashcards due now whose effective tags match any of
// the given tags, in random order.
func (e *Engine) IterQuiz(tags []string) (*Quiz, error) {
	cards, err := Collect(e.Flashcards(FlashcardFilter{Due: DueNow(), Tags: tags}))
	if err != nil {
		return nil, err
	}
	rand.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	return &Quiz{cards: cards}, nil
}

// Quiz returns one random due flashcard matching tags.
func (e *Engine) Quiz(tags []string) (Card, error) {
	q, err := e.IterQuiz(tags)
	if err != nil {
		return Card{}, err
	}
	return q.Next()
}
