package kvstore

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
)
`

const upsertSql = `
INSERT INTO kv (key, value)
VALUES ($1, $2)
ON CONFLICT (key)
DO UPDATE SET value = $2;
`

type kvRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// SqliteStore persists entries in a single SQLite table.
type SqliteStore struct {
	db *sqlx.DB
}

// NewSqliteStore opens (creating if needed) the database at dataSourceName.
func NewSqliteStore(dataSourceName string) (*SqliteStore, error) {
	db, err := sqlx.Connect("sqlite3", dataSourceName)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite store %s", dataSourceName)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(kvSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create kv table")
	}
	return &SqliteStore{db: db}, nil
}

func (ss *SqliteStore) Set(key, value string) error {
	if _, err := ss.db.Exec(upsertSql, key, value); err != nil {
		return errors.Wrapf(err, "set key %s", key)
	}
	return nil
}

func (ss *SqliteStore) Get(key string) (string, bool, error) {
	var value string
	err := ss.db.Get(&value, "SELECT value FROM kv WHERE key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "get key %s", key)
	}
	return value, true, nil
}

func (ss *SqliteStore) Delete(key string) error {
	if _, err := ss.db.Exec("DELETE FROM kv WHERE key = $1", key); err != nil {
		return errors.Wrapf(err, "delete key %s", key)
	}
	return nil
}

func (ss *SqliteStore) Dump() (map[string]string, error) {
	var rows []kvRow
	if err := ss.db.Select(&rows, "SELECT key, value FROM kv"); err != nil {
		return nil, errors.Wrap(err, "dump kv table")
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

func (ss *SqliteStore) Restore(data map[string]string) error {
	tx, err := ss.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "begin restore")
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM kv"); err != nil {
		return errors.Wrap(err, "clear kv table")
	}
	for k, v := range data {
		if _, err := tx.Exec(upsertSql, k, v); err != nil {
			return errors.Wrapf(err, "restore key %s", k)
		}
	}
	return errors.Wrap(tx.Commit(), "commit restore")
}

func (ss *SqliteStore) Close() error {
	return ss.db.Close()
}
