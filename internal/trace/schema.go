package trace

import (
	"context"
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS task_events (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id     INTEGER NOT NULL,
	name        TEXT    NOT NULL DEFAULT '',
	kind        TEXT    NOT NULL,
	priority    TEXT    NOT NULL,
	expiration  TEXT    NOT NULL,
	at          TEXT    NOT NULL,
	elapsed_us  INTEGER NOT NULL DEFAULT 0,
	did_timeout INTEGER NOT NULL DEFAULT 0,
	continued   INTEGER NOT NULL DEFAULT 0,
	error       TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_task_events_task ON task_events(task_id);
`

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
