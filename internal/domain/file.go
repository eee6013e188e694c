package domain

import "time"

// File is a tracked notebook document. Its ID comes from the document's
// on-disk identity, so a renamed notebook keeps its cells.
type File struct {
	ID       int64
	Path     string
	Checksum string
	Updated  time.Time
	Tags     Tags
}

// Cell is one piece of extracted notebook content: a markdown block or a
// rendered code output. Content is unique across the store.
type Cell struct {
	ID       int64
	FileID   int64
	Content  string
	Modified time.Time
	Tags     Tags
}

// IsHeading reports whether the cell opens a new flashcard group.
func (c Cell) IsHeading() bool {
	return IsHeading(c.Content)
}

// IsHeading reports whether content starts with a markdown heading marker.
func IsHeading(content string) bool {
	return len(content) > 0 && content[0] == '#'
}

// Kind names the entity type a Ref points at.
type Kind string

const (
	KindFile      Kind = "file"
	KindCell      Kind = "cell"
	KindFlashcard Kind = "flashcard"
)

// Ref addresses a single tagged entity.
type Ref struct {
	Kind Kind
	ID   int64
}

func FileRef(id int64) Ref      { return Ref{Kind: KindFile, ID: id} }
func CellRef(id int64) Ref      { return Ref{Kind: KindCell, ID: id} }
func FlashcardRef(id int64) Ref { return Ref{Kind: KindFlashcard, ID: id} }
