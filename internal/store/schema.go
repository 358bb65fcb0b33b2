package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS chats (
    chat_id              TEXT PRIMARY KEY,
    source               TEXT NOT NULL DEFAULT '',
    created_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
    chat_id              TEXT NOT NULL REFERENCES chats(chat_id) ON DELETE CASCADE,
    seq                  INTEGER NOT NULL,
    role                 TEXT NOT NULL,
    content              TEXT NOT NULL,
    created_at           TEXT NOT NULL,
    PRIMARY KEY (chat_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_chats_created ON chats(created_at);
`
