package storage

const sqliteSchema = `
-- 'files' tracks each notebook by its on-disk identity.
CREATE TABLE IF NOT EXISTS files (
    id INTEGER PRIMARY KEY,
    path TEXT NOT NULL,
    checksum TEXT NOT NULL,
    updated DATETIME NOT NULL,
    tags TEXT NOT NULL DEFAULT ''
);

-- 'cells' holds extracted notebook content. content_hash backs the global
-- duplicate lookup.
CREATE TABLE IF NOT EXISTS cells (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id INTEGER NOT NULL,
    content TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    modified DATETIME NOT NULL,
    tags TEXT NOT NULL DEFAULT '',

    FOREIGN KEY(file_id) REFERENCES files(id)
);
CREATE INDEX IF NOT EXISTS idx_cells_file_id ON cells(file_id);
CREATE INDEX IF NOT EXISTS idx_cells_content_hash ON cells(content_hash);

CREATE TABLE IF NOT EXISTS flashcards (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    level INTEGER NOT NULL DEFAULT 0,
    next_review DATETIME NOT NULL,
    modified DATETIME NOT NULL,
    tags TEXT NOT NULL DEFAULT ''
);

-- 'links' ties cells to flashcards. Insertion order (id) is display order.
CREATE TABLE IF NOT EXISTS links (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    flashcard_id INTEGER NOT NULL,
    cell_id INTEGER NOT NULL,
    role TEXT NOT NULL CHECK (role IN ('front', 'back', 'extra')),

    FOREIGN KEY(flashcard_id) REFERENCES flashcards(id),
    FOREIGN KEY(cell_id) REFERENCES cells(id)
);
CREATE INDEX IF NOT EXISTS idx_links_flashcard_id ON links(flashcard_id);
CREATE INDEX IF NOT EXISTS idx_links_cell_id ON links(cell_id);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS files (
    id BIGINT PRIMARY KEY,
    path TEXT NOT NULL,
    checksum TEXT NOT NULL,
    updated TIMESTAMPTZ NOT NULL,
    tags TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS cells (
    id BIGSERIAL PRIMARY KEY,
    file_id BIGINT NOT NULL REFERENCES files(id),
    content TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    modified TIMESTAMPTZ NOT NULL,
    tags TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_cells_file_id ON cells(file_id);
CREATE INDEX IF NOT EXISTS idx_cells_content_hash ON cells(content_hash);

CREATE TABLE IF NOT EXISTS flashcards (
    id BIGSERIAL PRIMARY KEY,
    level INTEGER NOT NULL DEFAULT 0,
    next_review TIMESTAMPTZ NOT NULL,
    modified TIMESTAMPTZ NOT NULL,
    tags TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS links (
    id BIGSERIAL PRIMARY KEY,
    flashcard_id BIGINT NOT NULL REFERENCES flashcards(id),
    cell_id BIGINT NOT NULL REFERENCES cells(id),
    role TEXT NOT NULL CHECK (role IN ('front', 'back', 'extra'))
);
CREATE INDEX IF NOT EXISTS idx_links_flashcard_id ON links(flashcard_id);
CREATE INDEX IF NOT EXISTS idx_links_cell_id ON links(cell_id);
`
