package sweep

import (
	"github.com/carbocation/pfx"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const resultsSchema = `
CREATE TABLE IF NOT EXISTS experiment_rows (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	case_id   TEXT NOT NULL,
	kind      TEXT NOT NULL,
	params    TEXT NOT NULL,
	dice      TEXT NOT NULL,
	classes   INTEGER NOT NULL,
	aggregate REAL NOT NULL,
	ok        INTEGER NOT NULL,
	reason    TEXT NOT NULL
)`

// DB mirrors experiment rows into a SQLite table so finished sweeps can be
// queried without re-parsing TSV files.
type DB struct {
	conn *sqlx.DB
}

func OpenDB(path string) (*DB, error) {
	conn, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	// SQLite permits one writer; a single connection avoids lock errors
	// when cases run concurrently.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(resultsSchema); err != nil {
		conn.Close()

		return nil, pfx.Err(err)
	}

	return &DB{conn: conn}, nil
}

func (db *DB) Insert(row Row) error {
	_, err := db.conn.Exec(
		`INSERT INTO experiment_rows (case_id, kind, params, dice, classes, aggregate, ok, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Case, row.Kind, row.Params, row.Dice, row.Classes, row.Aggregate, row.OK, row.Reason,
	)

	return pfx.Err(err)
}

func (db *DB) Close() error {
	return pfx.Err(db.conn.Close())
}
