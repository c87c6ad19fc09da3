package store

// schemaSQL is the DDL for the pipeline state database. batch_state is a
// single-row table: the batch counter must survive crashes, so every
// mutation is written through immediately. documents journals per-document
// outcomes for resumability audits.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS batch_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    batch_number INTEGER NOT NULL DEFAULT 1,
    total_archives INTEGER NOT NULL DEFAULT 0,
    last_archive_at DATETIME
);

CREATE TABLE IF NOT EXISTS documents (
    doc_id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    outcome TEXT,
    batch_number INTEGER,
    detail TEXT,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

INSERT OR IGNORE INTO batch_state (id, batch_number, total_archives) VALUES (1, 1, 0);
`
