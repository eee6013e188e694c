package domain

import "time"

// Role is the part a linked cell plays on a flashcard.
type Role string

const (
	Front Role = "front"
	Back  Role = "back"
	Extra Role = "extra"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case Front, Back, Extra:
		return true
	}
	return false
}

// Flashcard is a reviewable item built from front, back and extra cells.
// Level 0 means the card has never been reviewed.
type Flashcard struct {
	ID         int64
	Level      int
	NextReview time.Time
	Modified   time.Time
	Tags       Tags
	Links      []Link
}

// Link ties one cell to a flashcard in a given role. Links are kept in
// insertion order.
type Link struct {
	ID          int64
	FlashcardID int64
	CellID      int64
	Role        Role
}

// CellIDs returns the linked cell ids with the given role, in link order.
// An empty role returns every linked cell id.
func (f *Flashcard) CellIDs(role Role) []int64 {
	var ids []int64
	for _, l := range f.Links {
		if role == "" || l.Role == role {
			ids = append(ids, l.CellID)
		}
	}
	return ids
}

// NewLinks builds the ordered link list for a new flashcard: fronts, then
// backs, then extras.
func NewLinks(front, back, extra []int64) ([]Link, error) {
	if len(front) == 0 || len(back) == 0 {
		return nil, ErrInvalidFlashcard
	}
	links := make([]Link, 0, len(front)+len(back)+len(extra))
	for _, group := range []struct {
		role Role
		ids  []int64
	}{{Front, front}, {Back, back}, {Extra, extra}} {
		for _, id := range group.ids {
			links = append(links, Link{CellID: id, Role: group.role})
		}
	}
	return links, nil
}
