package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS collections (
	name       TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	version    INTEGER NOT NULL,
	updated_ts BIGINT NOT NULL
)`

// SQLiteBackend stores each collection as one row of an embedded database.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the database at dsn.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteBackend, error) {
	if dsn == "" {
		return nil, errors.New("dsn required")
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", dsn+sep+"_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", dsn)
	}
	// SQLite allows a single writer; one connection keeps
	// read-your-writes across Load and Save.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create collections table")
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func (b *SQLiteBackend) Load(ctx context.Context, collection string) (Snapshot, error) {
	var (
		body    string
		version int64
	)
	err := b.db.QueryRowContext(ctx, "SELECT body, version FROM collections WHERE name = ?", collection).Scan(&body, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "failed to load collection %s", collection)
	}
	return Snapshot{Body: []byte(body), Version: version}, nil
}

func (b *SQLiteBackend) Save(ctx context.Context, collection string, body []byte, prevVersion int64) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	var res sql.Result
	if prevVersion == 0 {
		res, err = tx.ExecContext(ctx,
			"INSERT INTO collections (name, body, version, updated_ts) VALUES (?, ?, 1, ?) ON CONFLICT(name) DO NOTHING",
			collection, string(body), now)
	} else {
		res, err = tx.ExecContext(ctx,
			"UPDATE collections SET body = ?, version = version + 1, updated_ts = ? WHERE name = ? AND version = ?",
			string(body), now, collection, prevVersion)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to save collection %s", collection)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return ErrConflict
	}
	return errors.Wrap(tx.Commit(), "failed to commit collection")
}
