package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/cinedata/filmset-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Payloads are stored
// as JSON blobs; the upsert makes overwrites idempotent and atomic.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "checkpoint: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS checkpoints (
	group_name TEXT NOT NULL,
	step       TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (group_name, step)
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "checkpoint: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, group string, step model.Step, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "checkpoint: marshal %s/%s", group, step)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (group_name, step, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (group_name, step) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		group, string(step), string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "checkpoint: save %s/%s", group, step)
}

func (s *SQLiteStore) Load(ctx context.Context, group string, step model.Step, out any) error {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM checkpoints WHERE group_name = ? AND step = ?`,
		group, string(step),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrapf(err, "checkpoint: load %s/%s", group, step)
	}

	if err := json.Unmarshal([]byte(data), out); err != nil {
		return eris.Wrapf(err, "checkpoint: unmarshal %s/%s", group, step)
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, group string, step model.Step) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM checkpoints WHERE group_name = ? AND step = ?`,
		group, string(step),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "checkpoint: exists %s/%s", group, step)
	}
	return true, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, group string, step model.Step) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE group_name = ? AND step = ?`,
		group, string(step),
	)
	return eris.Wrapf(err, "checkpoint: delete %s/%s", group, step)
}

func (s *SQLiteStore) List(ctx context.Context) ([]Key, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT group_name, step, updated_at FROM checkpoints ORDER BY group_name, step`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "checkpoint: list")
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		var step string
		if err := rows.Scan(&k.Group, &step, &k.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "checkpoint: scan key")
		}
		k.Step = model.Step(step)
		keys = append(keys, k)
	}
	return keys, eris.Wrap(rows.Err(), "checkpoint: iterate keys")
}
