package store

const createTableSQL = `
CREATE TABLE IF NOT EXISTS snapshots (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid             TEXT NOT NULL UNIQUE,
    hostname         TEXT NOT NULL,
    vendor           TEXT NOT NULL DEFAULT '',
    brand            TEXT NOT NULL DEFAULT '',
    capabilities     INTEGER NOT NULL DEFAULT 0,
    backend_version  TEXT NOT NULL DEFAULT '',
    complete         INTEGER NOT NULL DEFAULT 1,
    collected_at     TEXT NOT NULL,
    stored_at        TEXT NOT NULL,
    payload          BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_hostname ON snapshots(hostname);
CREATE INDEX IF NOT EXISTS idx_snapshots_vendor ON snapshots(vendor);
CREATE INDEX IF NOT EXISTS idx_snapshots_collected_at ON snapshots(collected_at);
`
