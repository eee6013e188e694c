package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/conorfennell/nbflash/internal/domain"
	"github.com/conorfennell/nbflash/internal/knol"
)

const cellColumns = `id, file_id, content, modified, tags`

func scanCell(s scanner) (domain.Cell, error) {
	var c domain.Cell
	var tags string
	if err := s.Scan(&c.ID, &c.FileID, &c.Content, &c.Modified, &tags); err != nil {
		return domain.Cell{}, err
	}
	c.Tags = domain.ParseTags(tags)
	return c, nil
}

func (db *DB) queryCells(query string, args ...any) ([]domain.Cell, error) {
	rows, err := db.query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cells []domain.Cell
	for rows.Next() {
		c, err := scanCell(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cell row: %w", err)
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// InsertCell inserts a new cell and returns its id.
func (db *DB) InsertCell(c domain.Cell) (int64, error) {
	var id int64
	err := db.queryRow(`
		INSERT INTO cells (file_id, content, content_hash, modified, tags)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`, c.FileID, c.Content, knol.Hash(c.Content), c.Modified.UTC(), c.Tags.String()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert cell for file %d: %w", c.FileID, err)
	}
	return id, nil
}

// GetCell retrieves a cell by id. It returns nil, nil when none exists.
func (db *DB) GetCell(id int64) (*domain.Cell, error) {
	c, err := scanCell(db.queryRow(`SELECT `+cellColumns+` FROM cells WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Cell not found
		}
		return nil, fmt.Errorf("failed to find cell %d: %w", id, err)
	}
	return &c, nil
}

// ListCells retrieves all cells in id order.
func (db *DB) ListCells() ([]domain.Cell, error) {
	cells, err := db.queryCells(`SELECT ` + cellColumns + ` FROM cells ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cells: %w", err)
	}
	return cells, nil
}

// CellsByFile retrieves the cells owned by a file in id order.
func (db *DB) CellsByFile(fileID int64) ([]domain.Cell, error) {
	cells, err := db.queryCells(`SELECT `+cellColumns+` FROM cells WHERE file_id = ? ORDER BY id`, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cells for file %d: %w", fileID, err)
	}
	return cells, nil
}

// FindCellByContent returns the cell holding exactly content, anywhere in the
// store. It returns nil, nil when there is none.
func (db *DB) FindCellByContent(content string) (*domain.Cell, error) {
	cells, err := db.queryCells(`SELECT `+cellColumns+` FROM cells WHERE content_hash = ? ORDER BY id`, knol.Hash(content))
	if err != nil {
		return nil, fmt.Errorf("failed to find cell by content: %w", err)
	}
	for _, c := range cells {
		if c.Content == content {
			return &c, nil
		}
	}
	return nil, nil
}

// UpdateCellContent replaces a cell's content in place.
func (db *DB) UpdateCellContent(id int64, content string, modified time.Time) error {
	_, err := db.exec(`
		UPDATE cells SET content = ?, content_hash = ?, modified = ? WHERE id = ?
	`, content, knol.Hash(content), modified.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update content for cell %d: %w", id, err)
	}
	return nil
}

// UpdateCellTags replaces a cell's own tags.
func (db *DB) UpdateCellTags(id int64, tags domain.Tags) error {
	_, err := db.exec(`UPDATE cells SET tags = ? WHERE id = ?`, tags.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update tags for cell %d: %w", id, err)
	}
	return nil
}
