package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Check with errors.Is.
var (
	ErrMalformedOutput  = errors.New("malformed output: no html or plain text representation")
	ErrDuplicateCell    = errors.New("duplicate cell")
	ErrAlreadyExists    = errors.New("file already exists")
	ErrStaleOrMissing   = errors.New("file is stale or missing")
	ErrExhausted        = errors.New("no flashcards due")
	ErrNotFound         = errors.New("not found")
	ErrInvalidFlashcard = errors.New("flashcard needs at least one front and one back cell")
)

// DuplicateCellError reports content that already belongs to another file.
type DuplicateCellError struct {
	FileID         int64
	ConflictFileID int64
	ConflictPath   string
	Content        string
}

func (e *DuplicateCellError) Error() string {
	return fmt.Sprintf("duplicate cell in file %d: content already owned by file %d (%s)",
		e.FileID, e.ConflictFileID, e.ConflictPath)
}

func (e *DuplicateCellError) Is(target error) bool {
	return target == ErrDuplicateCell
}
