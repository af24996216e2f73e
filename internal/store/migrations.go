package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create snapshots",
		SQL: `
			CREATE TABLE snapshots (
				id            TEXT PRIMARY KEY,
				generated_at  TEXT NOT NULL,
				agents        INTEGER NOT NULL DEFAULT 0,
				healthy       INTEGER NOT NULL DEFAULT 0,
				health        REAL NOT NULL DEFAULT 0,
				doc           TEXT NOT NULL,
				created_at    TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_snapshots_generated ON snapshots (generated_at);

			CREATE TABLE snapshot_latest (
				slot         INTEGER PRIMARY KEY CHECK (slot = 1),
				snapshot_id  TEXT NOT NULL REFERENCES snapshots(id),
				updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
	{
		Version: 2,
		Name:    "create routing decisions",
		SQL: `
			CREATE TABLE routing_decisions (
				id              TEXT PRIMARY KEY,
				task_id         TEXT NOT NULL DEFAULT '',
				category        TEXT NOT NULL DEFAULT 'general',
				selected_agent  TEXT NOT NULL DEFAULT '',
				confidence      REAL NOT NULL DEFAULT 0,
				candidates      INTEGER NOT NULL DEFAULT 0,
				doc             TEXT NOT NULL,
				recorded_at     TEXT NOT NULL
			);

			CREATE INDEX idx_decisions_task ON routing_decisions (task_id);
			CREATE INDEX idx_decisions_agent ON routing_decisions (selected_agent);
		`,
	},
}
