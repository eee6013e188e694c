package storage

import (
	"database/sql"
	"fmt"

	"github.com/conorfennell/nbflash/internal/domain"
)

const flashcardColumns = `id, level, next_review, modified, tags`

func scanFlashcard(s scanner) (domain.Flashcard, error) {
	var f domain.Flashcard
	var tags string
	if err := s.Scan(&f.ID, &f.Level, &f.NextReview, &f.Modified, &tags); err != nil {
		return domain.Flashcard{}, err
	}
	f.Tags = domain.ParseTags(tags)
	return f, nil
}

// InsertFlashcard inserts a flashcard and its links in one transaction and
// returns the new id. Links are stored in the order given.
func (db *DB) InsertFlashcard(f domain.Flashcard) (int64, error) {
	var id int64
	err := db.inTx(func(t tx) error {
		err := t.queryRow(`
			INSERT INTO flashcards (level, next_review, modified, tags)
			VALUES (?, ?, ?, ?)
			RETURNING id
		`, f.Level, f.NextReview.UTC(), f.Modified.UTC(), f.Tags.String()).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to insert flashcard: %w", err)
		}
		for _, l := range f.Links {
			if _, err := t.exec(`
				INSERT INTO links (flashcard_id, cell_id, role) VALUES (?, ?, ?)
			`, id, l.CellID, string(l.Role)); err != nil {
				return fmt.Errorf("failed to link cell %d to flashcard %d: %w", l.CellID, id, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetFlashcard retrieves a flashcard with its links. It returns nil, nil when
// none exists.
func (db *DB) GetFlashcard(id int64) (*domain.Flashcard, error) {
	f, err := scanFlashcard(db.queryRow(`SELECT `+flashcardColumns+` FROM flashcards WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Flashcard not found
		}
		return nil, fmt.Errorf("failed to find flashcard %d: %w", id, err)
	}

	links, err := db.links(`WHERE flashcard_id = ?`, id)
	if err != nil {
		return nil, err
	}
	f.Links = links[id]
	return &f, nil
}

// ListFlashcards retrieves all flashcards with their links, in id order.
func (db *DB) ListFlashcards() ([]domain.Flashcard, error) {
	rows, err := db.query(`SELECT ` + flashcardColumns + ` FROM flashcards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list flashcards: %w", err)
	}

	var cards []domain.Flashcard
	for rows.Next() {
		f, err := scanFlashcard(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan flashcard row: %w", err)
		}
		cards = append(cards, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list flashcards: %w", err)
	}

	// Read links only after the flashcard rows are closed; sqlite runs on a
	// single connection.
	links, err := db.links(``)
	if err != nil {
		return nil, err
	}
	for i := range cards {
		cards[i].Links = links[cards[i].ID]
	}
	return cards, nil
}

// links loads links matching the where clause, grouped by flashcard id and
// ordered by insertion.
func (db *DB) links(where string, args ...any) (map[int64][]domain.Link, error) {
	rows, err := db.query(`SELECT id, flashcard_id, cell_id, role FROM links `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]domain.Link)
	for rows.Next() {
		var l domain.Link
		var role string
		if err := rows.Scan(&l.ID, &l.FlashcardID, &l.CellID, &role); err != nil {
			return nil, fmt.Errorf("failed to scan link row: %w", err)
		}
		l.Role = domain.Role(role)
		out[l.FlashcardID] = append(out[l.FlashcardID], l)
	}
	return out, rows.Err()
}

// UpdateFlashcardTags replaces a flashcard's own tags.
func (db *DB) UpdateFlashcardTags(id int64, tags domain.Tags) error {
	_, err := db.exec(`UPDATE flashcards SET tags = ? WHERE id = ?`, tags.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update tags for flashcard %d: %w", id, err)
	}
	return nil
}

// SaveReview stores a flashcard's review state and touches the modified time
// of every linked cell, atomically.
func (db *DB) SaveReview(f domain.Flashcard) error {
	return db.inTx(func(t tx) error {
		if _, err := t.exec(`
			UPDATE flashcards SET level = ?, next_review = ?, modified = ? WHERE id = ?
		`, f.Level, f.NextReview.UTC(), f.Modified.UTC(), f.ID); err != nil {
			return fmt.Errorf("failed to update review state for flashcard %d: %w", f.ID, err)
		}
		if _, err := t.exec(`
			UPDATE cells SET modified = ?
			WHERE id IN (SELECT cell_id FROM links WHERE flashcard_id = ?)
		`, f.Modified.UTC(), f.ID); err != nil {
			return fmt.Errorf("failed to touch cells of flashcard %d: %w", f.ID, err)
		}
		return nil
	})
}
