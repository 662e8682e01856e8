package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/tradeprep/pkg/tradeprep/internalerr"
	"github.com/cognicore/tradeprep/pkg/tradeprep/scrape"
	"github.com/cognicore/tradeprep/pkg/tradeprep/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema if needed.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
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

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS publications (
	pub_number TEXT NOT NULL,
	title TEXT NOT NULL,
	date TEXT,
	subject TEXT,
	type TEXT,
	link TEXT,
	pub_file_link TEXT,
	seq INTEGER NOT NULL,
	PRIMARY KEY(pub_number, title)
);

CREATE TABLE IF NOT EXISTS classifications (
	pub_number TEXT NOT NULL,
	title TEXT NOT NULL,
	clean_title TEXT,
	date TEXT,
	subject TEXT,
	type TEXT,
	link TEXT,
	naics TEXT,
	industry TEXT,
	sector TEXT,
	sector_name TEXT,
	confidence REAL NOT NULL DEFAULT 0,
	is_priority INTEGER NOT NULL DEFAULT 0,
	alternatives TEXT,
	matched TEXT,
	unmatched TEXT,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	seq INTEGER NOT NULL,
	PRIMARY KEY(pub_number, title)
);

CREATE INDEX IF NOT EXISTS idx_classifications_priority ON classifications(is_priority);

CREATE TABLE IF NOT EXISTS adjudications (
	id TEXT PRIMARY KEY,
	case_title TEXT NOT NULL,
	naics TEXT,
	reasoning TEXT,
	candidates TEXT,
	model TEXT,
	error TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS summaries (
	path TEXT PRIMARY KEY,
	doc_key TEXT NOT NULL,
	run_id TEXT NOT NULL,
	model TEXT,
	text TEXT,
	note_path TEXT,
	direct INTEGER NOT NULL DEFAULT 0,
	chunks INTEGER NOT NULL DEFAULT 0,
	failed_chunks INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stage_cache (
	doc_key TEXT NOT NULL,
	stage TEXT NOT NULL,
	payload TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY(doc_key, stage)
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// UpsertPublications inserts or updates publications in listing order.
func (s *sqliteStore) UpsertPublications(ctx context.Context, pubs []scrape.Publication) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	base, err := nextSeq(ctx, tx, "publications")
	if err != nil {
		return err
	}
	const stmt = `
INSERT INTO publications (pub_number, title, date, subject, type, link, pub_file_link, seq)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(pub_number, title) DO UPDATE SET
	date=excluded.date,
	subject=excluded.subject,
	type=excluded.type,
	link=excluded.link,
	pub_file_link=excluded.pub_file_link;
`
	for i, p := range pubs {
		if _, err := tx.ExecContext(ctx, stmt,
			p.PubNumber, p.Title, p.Date, p.Subject, p.Type, p.Link, p.PubFileLink, base+int64(i),
		); err != nil {
			return fmt.Errorf("upsert publication %s: %w", p.PubNumber, err)
		}
	}
	return tx.Commit()
}

// ListPublications returns publications in first-seen order.
func (s *sqliteStore) ListPublications(ctx context.Context) ([]scrape.Publication, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT pub_number, title, date, subject, type, link, pub_file_link
FROM publications ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scrape.Publication
	for rows.Next() {
		var p scrape.Publication
		if err := rows.Scan(&p.PubNumber, &p.Title, &p.Date, &p.Subject, &p.Type, &p.Link, &p.PubFileLink); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertClassifications stores classification records, replacing earlier
// results for the same publication.
func (s *sqliteStore) UpsertClassifications(ctx context.Context, recs []store.Classification) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	base, err := nextSeq(ctx, tx, "classifications")
	if err != nil {
		return err
	}
	const stmt = `
INSERT INTO classifications (
	pub_number, title, clean_title, date, subject, type, link,
	naics, industry, sector, sector_name, confidence, is_priority,
	alternatives, matched, unmatched, total_tokens, seq
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(pub_number, title) DO UPDATE SET
	clean_title=excluded.clean_title,
	date=excluded.date,
	subject=excluded.subject,
	type=excluded.type,
	link=excluded.link,
	naics=excluded.naics,
	industry=excluded.industry,
	sector=excluded.sector,
	sector_name=excluded.sector_name,
	confidence=excluded.confidence,
	is_priority=excluded.is_priority,
	alternatives=excluded.alternatives,
	matched=excluded.matched,
	unmatched=excluded.unmatched,
	total_tokens=excluded.total_tokens;
`
	for i, r := range recs {
		alts, err := json.Marshal(r.Alternatives)
		if err != nil {
			return err
		}
		matched, err := json.Marshal(r.MatchedKeywords)
		if err != nil {
			return err
		}
		unmatched, err := json.Marshal(r.UnmatchedKeywords)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt,
			r.PubNumber, r.Title, r.CleanTitle, r.Date, r.Subject, r.Type, r.Link,
			r.Code, r.IndustryTitle, r.Sector, r.SectorName, r.Confidence, boolToInt(r.IsPrioritySector),
			string(alts), string(matched), string(unmatched), r.TotalTokens, base+int64(i),
		); err != nil {
			return fmt.Errorf("upsert classification %s: %w", r.PubNumber, err)
		}
	}
	return tx.Commit()
}

// ListClassifications returns stored records in first-seen order.
func (s *sqliteStore) ListClassifications(ctx context.Context, priorityOnly bool) ([]store.Classification, error) {
	query := `
SELECT pub_number, title, clean_title, date, subject, type, link,
	naics, industry, sector, sector_name, confidence, is_priority,
	alternatives, matched, unmatched, total_tokens
FROM classifications`
	if priorityOnly {
		query += " WHERE is_priority = 1"
	}
	query += " ORDER BY seq"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Classification
	for rows.Next() {
		var (
			r                        store.Classification
			priority                 int
			alts, matched, unmatched string
		)
		if err := rows.Scan(
			&r.PubNumber, &r.Title, &r.CleanTitle, &r.Date, &r.Subject, &r.Type, &r.Link,
			&r.Code, &r.IndustryTitle, &r.Sector, &r.SectorName, &r.Confidence, &priority,
			&alts, &matched, &unmatched, &r.TotalTokens,
		); err != nil {
			return nil, err
		}
		r.IsPrioritySector = priority == 1
		if err := decodeJSON(alts, &r.Alternatives); err != nil {
			return nil, err
		}
		if err := decodeJSON(matched, &r.MatchedKeywords); err != nil {
			return nil, err
		}
		if err := decodeJSON(unmatched, &r.UnmatchedKeywords); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertAdjudication stores one adjudication.
func (s *sqliteStore) InsertAdjudication(ctx context.Context, a store.Adjudication) error {
	if a.ID == "" {
		return fmt.Errorf("%w: adjudication id required", internalerr.ErrInvalidInput)
	}
	cands, err := json.Marshal(a.Candidates)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO adjudications (id, case_title, naics, reasoning, candidates, model, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CaseTitle, a.Code, a.Reasoning, string(cands), a.Model, a.Err, formatTime(a.CreatedAt))
	return err
}

// ListAdjudications returns adjudications oldest first.
func (s *sqliteStore) ListAdjudications(ctx context.Context) ([]store.Adjudication, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, case_title, naics, reasoning, candidates, model, error, created_at
FROM adjudications ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Adjudication
	for rows.Next() {
		var (
			a              store.Adjudication
			cands, created string
		)
		if err := rows.Scan(&a.ID, &a.CaseTitle, &a.Code, &a.Reasoning, &cands, &a.Model, &a.Err, &created); err != nil {
			return nil, err
		}
		if err := decodeJSON(cands, &a.Candidates); err != nil {
			return nil, err
		}
		a.CreatedAt = parseTime(created)
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertSummary stores the latest summary of a document.
func (s *sqliteStore) UpsertSummary(ctx context.Context, sum store.Summary) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO summaries (path, doc_key, run_id, model, text, note_path, direct, chunks, failed_chunks, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
	doc_key=excluded.doc_key,
	run_id=excluded.run_id,
	model=excluded.model,
	text=excluded.text,
	note_path=excluded.note_path,
	direct=excluded.direct,
	chunks=excluded.chunks,
	failed_chunks=excluded.failed_chunks,
	created_at=excluded.created_at`,
		sum.Path, sum.Key, sum.RunID, sum.Model, sum.Text, sum.NotePath,
		boolToInt(sum.Direct), sum.Chunks, sum.FailedChunks, formatTime(sum.CreatedAt))
	return err
}

// GetSummary returns the stored summary for path.
func (s *sqliteStore) GetSummary(ctx context.Context, path string) (store.Summary, bool, error) {
	var (
		sum     store.Summary
		direct  int
		created string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT path, doc_key, run_id, model, text, note_path, direct, chunks, failed_chunks, created_at
FROM summaries WHERE path = ?`, path).Scan(
		&sum.Path, &sum.Key, &sum.RunID, &sum.Model, &sum.Text, &sum.NotePath,
		&direct, &sum.Chunks, &sum.FailedChunks, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Summary{}, false, nil
	}
	if err != nil {
		return store.Summary{}, false, err
	}
	sum.Direct = direct == 1
	sum.CreatedAt = parseTime(created)
	return sum, true, nil
}

// Load implements the summarize stage cache.
func (s *sqliteStore) Load(ctx context.Context, key, stage string, v any) (bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM stage_cache WHERE doc_key = ? AND stage = ?`, key, stage).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return false, fmt.Errorf("decode stage %s: %w", stage, err)
	}
	return true, nil
}

// Save implements the summarize stage cache.
func (s *sqliteStore) Save(ctx context.Context, key, stage string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO stage_cache (doc_key, stage, payload, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(doc_key, stage) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at`,
		key, stage, string(payload), formatTime(time.Now()))
	return err
}

func nextSeq(ctx context.Context, tx *sql.Tx, table string) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), -1) + 1 FROM "+table).Scan(&seq)
	return seq, err
}

func decodeJSON(raw string, v any) error {
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
