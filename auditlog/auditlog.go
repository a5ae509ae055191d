// auditlog.go — dispatch-history audit log.
//
// Not part of the scheduling algorithm itself: a supplemental,
// best-effort record of every dispatch event (tid, quantum number,
// sequence number) for post-mortem queries, grounded on
// syncharvester.go's sql.Open("sqlite3", ...) + database/sql usage. The
// table lives in an in-memory database so enabling the log never
// touches the filesystem.

package auditlog

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Record is one row of dispatch history.
type Record struct {
	TID      int
	NQuantum int
	Seq      int // monotonic position in the global dispatch sequence (totalQuantums at record time)
}

// Log wraps an in-memory sqlite3 database recording dispatch events.
type Log struct {
	db *sql.DB
}

// Open creates a fresh in-memory audit log.
func Open() (*Log, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("auditlog: open: %w", err)
	}
	const schema = `CREATE TABLE dispatch_log (
		tid INTEGER NOT NULL,
		nquantum INTEGER NOT NULL,
		seq INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("auditlog: create schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Record inserts one dispatch event. Errors are the caller's to decide
// whether to treat as fatal; the scheduler itself never blocks dispatch
// on audit-log availability.
func (l *Log) Record(tid, nQuantum, seq int) error {
	_, err := l.db.Exec(`INSERT INTO dispatch_log (tid, nquantum, seq) VALUES (?, ?, ?)`, tid, nQuantum, seq)
	return err
}

// History returns every recorded dispatch of tid, in dispatch order.
func (l *Log) History(tid int) ([]Record, error) {
	rows, err := l.db.Query(`SELECT tid, nquantum, seq FROM dispatch_log WHERE tid = ? ORDER BY seq ASC`, tid)
	if err != nil {
		return nil, fmt.Errorf("auditlog: query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.TID, &r.NQuantum, &r.Seq); err != nil {
			return nil, fmt.Errorf("auditlog: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the in-memory database.
func (l *Log) Close() error {
	return l.db.Close()
}
