package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/topica/pkg/topica/internalerr"
	"github.com/cognicore/topica/pkg/topica/result"
	"github.com/cognicore/topica/pkg/topica/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// connPragmas are applied by the driver to every pooled connection. A
// PRAGMA run through db.Exec only reaches whichever connection served it.
const connPragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// dsn appends connPragmas to path, keeping any query the caller supplied.
func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + connPragmas
	}
	return path + "?" + connPragmas
}

// OpenSQLite opens a SQLite database with WAL mode and foreign keys enabled
// on every connection.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	k INTEGER NOT NULL,
	vocab_size INTEGER NOT NULL,
	num_docs INTEGER NOT NULL,
	passes INTEGER NOT NULL,
	termination TEXT,
	measure TEXT,
	coherence REAL,
	bundle BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS topic_terms (
	run_id TEXT NOT NULL,
	topic INTEGER NOT NULL,
	rank INTEGER NOT NULL,
	term TEXT NOT NULL,
	weight REAL NOT NULL,
	PRIMARY KEY(run_id, topic, rank),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveRun stores the msgpack bundle together with its listing columns and
// the per-topic term index.
func (s *sqliteStore) SaveRun(ctx context.Context, r *result.TrainingResult) error {
	if err := r.Validate(); err != nil {
		return err
	}
	var bundle bytes.Buffer
	if err := result.Encode(&bundle, r, result.FormatMsgpack); err != nil {
		return fmt.Errorf("encode run %s: %w", r.Meta.RunID, err)
	}
	info := store.Info(r)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const stmt = `
INSERT INTO runs (id, created_at, k, vocab_size, num_docs, passes, termination, measure, coherence, bundle)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	created_at=excluded.created_at,
	k=excluded.k,
	vocab_size=excluded.vocab_size,
	num_docs=excluded.num_docs,
	passes=excluded.passes,
	termination=excluded.termination,
	measure=excluded.measure,
	coherence=excluded.coherence,
	bundle=excluded.bundle;
`
	_, err = tx.ExecContext(ctx, stmt,
		info.RunID,
		info.CreatedAt.UTC().Format(time.RFC3339Nano),
		info.K,
		info.VocabSize,
		info.NumDocs,
		info.Passes,
		info.Termination,
		info.Measure,
		info.Coherence,
		bundle.Bytes(),
	)
	if err != nil {
		return err
	}

	if err := replaceTopicTerms(ctx, tx, r); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceTopicTerms(ctx context.Context, tx *sql.Tx, r *result.TrainingResult) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM topic_terms WHERE run_id = ?`, r.Meta.RunID); err != nil {
		return err
	}
	ins, err := tx.PrepareContext(ctx, `INSERT INTO topic_terms (run_id, topic, rank, term, weight) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer ins.Close()

	for k := 0; k < r.Meta.K; k++ {
		terms, err := r.TopicTerms(k, store.TopTermsStored)
		if err != nil {
			return err
		}
		for rank, w := range terms {
			if _, err := ins.ExecContext(ctx, r.Meta.RunID, k, rank, w.Term, w.Weight); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetRun decodes the stored bundle.
func (s *sqliteStore) GetRun(ctx context.Context, runID string) (*result.TrainingResult, error) {
	var bundle []byte
	err := s.db.QueryRowContext(ctx, `SELECT bundle FROM runs WHERE id = ?`, runID).Scan(&bundle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return result.Decode(bytes.NewReader(bundle), result.FormatMsgpack)
}

// ListRuns returns the listing columns, newest first.
func (s *sqliteStore) ListRuns(ctx context.Context) ([]store.RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, created_at, k, vocab_size, num_docs, passes, termination, measure, coherence
FROM runs
ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.RunInfo
	for rows.Next() {
		var (
			info    store.RunInfo
			created string
			term    sql.NullString
			measure sql.NullString
			score   sql.NullFloat64
		)
		if err := rows.Scan(&info.RunID, &created, &info.K, &info.VocabSize, &info.NumDocs,
			&info.Passes, &term, &measure, &score); err != nil {
			return nil, err
		}
		info.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("run %s: bad created_at %q: %w", info.RunID, created, err)
		}
		info.Termination = term.String
		info.Measure = measure.String
		info.Coherence = score.Float64
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its term index in one transaction. The term
// rows are deleted explicitly so the result does not depend on the
// connection's foreign key setting.
func (s *sqliteStore) DeleteRun(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM topic_terms WHERE run_id = ?`, runID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}
	return tx.Commit()
}

// TopicTerms reads the term index.
func (s *sqliteStore) TopicTerms(ctx context.Context, runID string, topic, n int) ([]result.WordWeight, error) {
	var k int
	err := s.db.QueryRowContext(ctx, `SELECT k FROM runs WHERE id = ?`, runID).Scan(&k)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if topic < 0 || topic >= k {
		return nil, fmt.Errorf("%w: topic %d out of range [0, %d)", internalerr.ErrInvalidInput, topic, k)
	}
	if n <= 0 || n > store.TopTermsStored {
		n = store.TopTermsStored
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT term, weight FROM topic_terms
WHERE run_id = ? AND topic = ?
ORDER BY rank
LIMIT ?`, runID, topic, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []result.WordWeight
	for rows.Next() {
		var w result.WordWeight
		if err := rows.Scan(&w.Term, &w.Weight); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
