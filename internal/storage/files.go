package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/conorfennell/nbflash/internal/domain"
)

const fileColumns = `id, path, checksum, updated, tags`

func scanFile(s scanner) (domain.File, error) {
	var f domain.File
	var tags string
	if err := s.Scan(&f.ID, &f.Path, &f.Checksum, &f.Updated, &tags); err != nil {
		return domain.File{}, err
	}
	f.Tags = domain.ParseTags(tags)
	return f, nil
}

// InsertFile inserts a new file. The caller supplies the identity.
func (db *DB) InsertFile(f domain.File) error {
	_, err := db.exec(`
		INSERT INTO files (id, path, checksum, updated, tags)
		VALUES (?, ?, ?, ?, ?)
	`, f.ID, f.Path, f.Checksum, f.Updated.UTC(), f.Tags.String())
	if err != nil {
		return fmt.Errorf("failed to insert file %s: %w", f.Path, err)
	}
	return nil
}

// GetFile retrieves a file by id. It returns nil, nil when none exists.
func (db *DB) GetFile(id int64) (*domain.File, error) {
	f, err := scanFile(db.queryRow(`SELECT `+fileColumns+` FROM files WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // File not found
		}
		return nil, fmt.Errorf("failed to find file %d: %w", id, err)
	}
	return &f, nil
}

// ListFiles retrieves all files in id order.
func (db *DB) ListFiles() ([]domain.File, error) {
	rows, err := db.query(`SELECT ` + fileColumns + ` FROM files ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []domain.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// UpdateFileChecksum records a new checksum after a successful re-ingestion.
func (db *DB) UpdateFileChecksum(id int64, checksum string, updated time.Time) error {
	_, err := db.exec(`UPDATE files SET checksum = ?, updated = ? WHERE id = ?`, checksum, updated.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update checksum for file %d: %w", id, err)
	}
	return nil
}

// UpdateFileTags replaces a file's own tags.
func (db *DB) UpdateFileTags(id int64, tags domain.Tags) error {
	_, err := db.exec(`UPDATE files SET tags = ? WHERE id = ?`, tags.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update tags for file %d: %w", id, err)
	}
	return nil
}

// DeleteFile removes a file together with its cells and their links.
// Flashcards left without any link are removed as well.
func (db *DB) DeleteFile(id int64) error {
	return db.inTx(func(t tx) error {
		stmts := []string{
			`DELETE FROM links WHERE cell_id IN (SELECT id FROM cells WHERE file_id = ?)`,
			`DELETE FROM cells WHERE file_id = ?`,
			`DELETE FROM files WHERE id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := t.exec(stmt, id); err != nil {
				return fmt.Errorf("failed to delete file %d: %w", id, err)
			}
		}
		if _, err := t.exec(`DELETE FROM flashcards WHERE id NOT IN (SELECT flashcard_id FROM links)`); err != nil {
			return fmt.Errorf("failed to delete orphaned flashcards: %w", err)
		}
		return nil
	})
}
