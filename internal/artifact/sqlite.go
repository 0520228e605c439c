package artifact

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgallion1/codebook/internal/classify"
	"github.com/dgallion1/codebook/internal/parser"
	"github.com/dgallion1/codebook/internal/toc"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
PRAGMA journal_mode = WAL;
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS documents (
    doc_id TEXT PRIMARY KEY,
    filename TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL DEFAULT '',
    stats_json TEXT NOT NULL,
    toc_json TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS relevance (
    doc_id TEXT NOT NULL,
    target_key TEXT NOT NULL,
    target TEXT NOT NULL,
    sections_json TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (doc_id, target_key),
    FOREIGN KEY (doc_id) REFERENCES documents(doc_id) ON DELETE CASCADE
);
`

// SQLiteStore keeps artifacts in a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path (":memory:" works).
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveTOC(ctx context.Context, doc *Document) error {
	if err := checkID(doc.DocID); err != nil {
		return err
	}
	nodes := doc.TableOfContents
	if nodes == nil {
		nodes = []*toc.Node{}
	}
	tocJSON, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("marshal toc: %w", err)
	}
	statsJSON, err := json.Marshal(doc.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (doc_id, filename, content_hash, stats_json, toc_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			filename = excluded.filename,
			content_hash = excluded.content_hash,
			stats_json = excluded.stats_json,
			toc_json = excluded.toc_json,
			created_at = excluded.created_at`,
		doc.DocID, doc.Filename, doc.ContentHash, string(statsJSON), string(tocJSON), doc.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save toc: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadTOC(ctx context.Context, docID string) (*Document, error) {
	if err := checkID(docID); err != nil {
		return nil, err
	}
	var (
		doc       Document
		statsJSON string
		tocJSON   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT doc_id, filename, content_hash, stats_json, toc_json, created_at
		FROM documents WHERE doc_id = ?`, docID).
		Scan(&doc.DocID, &doc.Filename, &doc.ContentHash, &statsJSON, &tocJSON, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	if err != nil {
		return nil, fmt.Errorf("load toc: %w", err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &doc.Stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	if err := json.Unmarshal([]byte(tocJSON), &doc.TableOfContents); err != nil {
		return nil, fmt.Errorf("decode toc: %w", err)
	}
	return &doc, nil
}

func (s *SQLiteStore) exists(ctx context.Context, docID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE doc_id = ?`, docID).Scan(&n)
	return n > 0, err
}

func (s *SQLiteStore) SaveRelevance(ctx context.Context, rel *Relevance) error {
	if err := checkID(rel.DocID); err != nil {
		return err
	}
	ok, err := s.exists(ctx, rel.DocID)
	if err != nil {
		return fmt.Errorf("save relevance: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, rel.DocID)
	}
	sections := rel.RelevantSections
	if sections == nil {
		sections = []classify.RelevantSection{}
	}
	sectionsJSON, err := json.Marshal(sections)
	if err != nil {
		return fmt.Errorf("marshal sections: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO relevance (doc_id, target_key, target, sections_json, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(doc_id, target_key) DO UPDATE SET
			target = excluded.target,
			sections_json = excluded.sections_json,
			created_at = excluded.created_at`,
		rel.DocID, targetKey(rel.TargetDataType), rel.TargetDataType, string(sectionsJSON), rel.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save relevance: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadRelevance(ctx context.Context, docID, target string) (*Relevance, error) {
	if err := checkID(docID); err != nil {
		return nil, err
	}
	var (
		rel          Relevance
		sectionsJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT doc_id, target, sections_json, created_at
		FROM relevance WHERE doc_id = ? AND target_key = ?`, docID, targetKey(target)).
		Scan(&rel.DocID, &rel.TargetDataType, &sectionsJSON, &rel.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, docID, target)
	}
	if err != nil {
		return nil, fmt.Errorf("load relevance: %w", err)
	}
	if err := json.Unmarshal([]byte(sectionsJSON), &rel.RelevantSections); err != nil {
		return nil, fmt.Errorf("decode sections: %w", err)
	}
	return &rel, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, filename, content_hash, stats_json, created_at
		FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Summary
	index := make(map[string]int)
	for rows.Next() {
		var (
			sum       Summary
			statsJSON string
		)
		if err := rows.Scan(&sum.DocID, &sum.Filename, &sum.ContentHash, &statsJSON, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var stats parser.Stats
		if err := json.Unmarshal([]byte(statsJSON), &stats); err == nil {
			sum.Stats = stats
		}
		sum.Targets = []string{}
		index[sum.DocID] = len(out)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	trows, err := s.db.QueryContext(ctx, `SELECT doc_id, target FROM relevance ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer trows.Close()
	for trows.Next() {
		var docID, target string
		if err := trows.Scan(&docID, &target); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		if i, ok := index[docID]; ok {
			out[i].Targets = append(out[i].Targets, target)
		}
	}
	if err := trows.Err(); err != nil {
		return nil, err
	}

	if out == nil {
		out = []Summary{}
	}
	sortSummaries(out)
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, docID string) error {
	if err := checkID(docID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM relevance WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("delete relevance: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE doc_id = ?`, docID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
