package store

// Schema is the complete folio schema, idempotent to apply.
const Schema = `
-- Books: one row per uploaded document, doubles as its processing state
CREATE TABLE IF NOT EXISTS books (
    id                TEXT PRIMARY KEY,
    title             TEXT NOT NULL DEFAULT '',
    authors           TEXT NOT NULL DEFAULT '',
    edition           TEXT NOT NULL DEFAULT '',
    page_count        INTEGER NOT NULL DEFAULT 0,
    source_path       TEXT NOT NULL,
    original_filename TEXT NOT NULL DEFAULT '',
    processing_status TEXT NOT NULL DEFAULT 'pending',
    error_message     TEXT NOT NULL DEFAULT '',
    metadata_json     TEXT NOT NULL DEFAULT '{}',
    created_at        INTEGER NOT NULL,
    updated_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_books_status ON books(processing_status, created_at);

-- Chapters: the pipeline's primary output
CREATE TABLE IF NOT EXISTS chapters (
    id                   TEXT PRIMARY KEY,
    book_id              TEXT REFERENCES books(id),
    source_type          TEXT NOT NULL,
    chapter_number       INTEGER,
    chapter_title        TEXT NOT NULL DEFAULT '',
    start_page           INTEGER NOT NULL,
    end_page             INTEGER NOT NULL,
    page_count           INTEGER NOT NULL,
    extracted_text       TEXT NOT NULL,
    word_count           INTEGER NOT NULL DEFAULT 0,
    has_images           INTEGER NOT NULL DEFAULT 0,
    image_count          INTEGER NOT NULL DEFAULT 0,
    content_hash         TEXT NOT NULL,
    detection_method     TEXT NOT NULL,
    detection_confidence REAL NOT NULL DEFAULT 0,
    is_duplicate         INTEGER NOT NULL DEFAULT 0,
    duplicate_of_id      TEXT REFERENCES chapters(id),
    duplicate_group_id   TEXT NOT NULL DEFAULT '',
    preference_score     REAL NOT NULL DEFAULT 0,
    quality_score        REAL NOT NULL DEFAULT 0,
    embedding            BLOB,
    created_at           INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chapters_book ON chapters(book_id);
CREATE INDEX IF NOT EXISTS idx_chapters_hash ON chapters(content_hash);
CREATE INDEX IF NOT EXISTS idx_chapters_group ON chapters(duplicate_group_id);

-- FTS5 over chapter title and text
CREATE VIRTUAL TABLE IF NOT EXISTS chapters_fts USING fts5(
    chapter_title, extracted_text, content='chapters', content_rowid='rowid',
    tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS chapters_ai AFTER INSERT ON chapters BEGIN
    INSERT INTO chapters_fts(rowid, chapter_title, extracted_text) VALUES (new.rowid, new.chapter_title, new.extracted_text);
END;
CREATE TRIGGER IF NOT EXISTS chapters_ad AFTER DELETE ON chapters BEGIN
    INSERT INTO chapters_fts(chapters_fts, rowid, chapter_title, extracted_text) VALUES('delete', old.rowid, old.chapter_title, old.extracted_text);
END;
CREATE TRIGGER IF NOT EXISTS chapters_au AFTER UPDATE ON chapters BEGIN
    INSERT INTO chapters_fts(chapters_fts, rowid, chapter_title, extracted_text) VALUES('delete', old.rowid, old.chapter_title, old.extracted_text);
    INSERT INTO chapters_fts(rowid, chapter_title, extracted_text) VALUES (new.rowid, new.chapter_title, new.extracted_text);
END;

-- Chunks: only materialized for overlong chapters
CREATE TABLE IF NOT EXISTS chunks (
    id           TEXT PRIMARY KEY,
    chapter_id   TEXT NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
    chunk_index  INTEGER NOT NULL,
    chunk_text   TEXT NOT NULL,
    start_offset INTEGER NOT NULL,
    end_offset   INTEGER NOT NULL,
    heading      TEXT NOT NULL DEFAULT '',
    word_count   INTEGER NOT NULL DEFAULT 0,
    embedding    BLOB,
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_chapter ON chunks(chapter_id, chunk_index);
`
