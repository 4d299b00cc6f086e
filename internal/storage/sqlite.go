package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"tgscan/internal/model"
	"tgscan/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateScan inserts a new scan and populates its ID and CreatedAt.
func (s *SQLite) CreateScan(ctx context.Context, scan *model.Scan) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (chat_id, target, title, group_id, message_limit, interval_minutes,
		                    case_sensitive, allow_duplicates, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scan.ChatID, scan.Target, scan.Title, scan.GroupID, scan.MessageLimit, scan.IntervalMinutes,
		boolToInt(scan.CaseSensitive), boolToInt(scan.AllowDuplicates), boolToInt(scan.IsActive), now,
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	scan.ID = id
	scan.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

const scanColumns = `id, chat_id, target, title, group_id, message_limit, interval_minutes,
                     case_sensitive, allow_duplicates, is_active, last_run_at, created_at`

// GetScan returns a single scan by its ID.
func (s *SQLite) GetScan(ctx context.Context, id int64) (*model.Scan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scanColumns+` FROM scans WHERE id = ?`, id,
	)
	return scanScan(row)
}

// ListScans returns all scans belonging to the given chat.
func (s *SQLite) ListScans(ctx context.Context, chatID int64) ([]model.Scan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scanColumns+` FROM scans WHERE chat_id = ? ORDER BY id`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanScans(rows)
}

// ListDueScans returns all active scans with a check interval that are
// due for a periodic run.
func (s *SQLite) ListDueScans(ctx context.Context) ([]model.Scan, error) {
	now := time.Now().UTC().Format(timeLayout)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scanColumns+` FROM scans
		 WHERE is_active = 1
		   AND interval_minutes > 0
		   AND (last_run_at IS NULL
		        OR datetime(last_run_at, '+' || interval_minutes || ' minutes') <= datetime(?))`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("query due scans: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanScans(rows)
}

// UpdateScan persists changes to an existing scan.
func (s *SQLite) UpdateScan(ctx context.Context, scan *model.Scan) error {
	var lastRun *string
	if scan.LastRunAt != nil {
		v := scan.LastRunAt.UTC().Format(timeLayout)
		lastRun = &v
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE scans SET target = ?, title = ?, group_id = ?, message_limit = ?, interval_minutes = ?,
		                  case_sensitive = ?, allow_duplicates = ?, is_active = ?, last_run_at = ?
		 WHERE id = ?`,
		scan.Target, scan.Title, scan.GroupID, scan.MessageLimit, scan.IntervalMinutes,
		boolToInt(scan.CaseSensitive), boolToInt(scan.AllowDuplicates), boolToInt(scan.IsActive),
		lastRun, scan.ID,
	)
	if err != nil {
		return fmt.Errorf("update scan: %w", err)
	}
	return nil
}

// DeleteScan removes a scan together with its keywords, matches, and
// seen-message records.
func (s *SQLite) DeleteScan(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM seen_messages WHERE scan_id = ?`, id); err != nil {
		return fmt.Errorf("delete seen_messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM matches WHERE scan_id = ?`, id); err != nil {
		return fmt.Errorf("delete matches: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM keywords WHERE scan_id = ?`, id); err != nil {
		return fmt.Errorf("delete keywords: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete scan: %w", err)
	}
	return tx.Commit()
}

// CreateKeyword inserts a new keyword and populates its ID and CreatedAt.
func (s *SQLite) CreateKeyword(ctx context.Context, k *model.Keyword) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO keywords (scan_id, kind, term, created_at) VALUES (?, ?, ?, ?)`,
		k.ScanID, string(k.Kind), k.Term, now,
	)
	if err != nil {
		return fmt.Errorf("insert keyword: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	k.ID = id
	k.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListKeywords returns all keywords for the given scan in the order
// they were added; that order is the matched-term tie-break order.
func (s *SQLite) ListKeywords(ctx context.Context, scanID int64) ([]model.Keyword, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scan_id, kind, term, created_at FROM keywords WHERE scan_id = ? ORDER BY id`, scanID,
	)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keywords []model.Keyword
	for rows.Next() {
		k, err := scanKeyword(rows)
		if err != nil {
			return nil, err
		}
		keywords = append(keywords, k)
	}
	return keywords, rows.Err()
}

// GetKeyword returns a single keyword by its ID.
func (s *SQLite) GetKeyword(ctx context.Context, id int64) (*model.Keyword, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, scan_id, kind, term, created_at FROM keywords WHERE id = ?`, id,
	)
	k, err := scanKeyword(row)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// DeleteKeyword removes a keyword by its ID.
func (s *SQLite) DeleteKeyword(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM keywords WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete keyword: %w", err)
	}
	return nil
}

// InsertMatch stores one matching message and populates the match ID.
func (s *SQLite) InsertMatch(ctx context.Context, m *model.Match) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO matches (scan_id, author_id, author_handle, term, message_id, link, sent_at, preview)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ScanID, m.AuthorID, m.AuthorHandle, m.Term, m.MessageID, m.Link,
		m.SentAt.UTC().Format(timeLayout), m.Preview,
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id
	return nil
}

// ListMatches returns all matches for a scan in the order the matching
// messages were recorded.
func (s *SQLite) ListMatches(ctx context.Context, scanID int64) ([]model.Match, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scan_id, author_id, author_handle, term, message_id, link, sent_at, preview
		 FROM matches WHERE scan_id = ? ORDER BY id`, scanID,
	)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []model.Match
	for rows.Next() {
		var m model.Match
		var sentStr string
		if err := rows.Scan(&m.ID, &m.ScanID, &m.AuthorID, &m.AuthorHandle, &m.Term,
			&m.MessageID, &m.Link, &sentStr, &m.Preview); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.SentAt, _ = time.Parse(timeLayout, sentStr)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ClearMatches resets the stored results of a scan: its match rows and
// the seen-message records that shield old messages from rescanning.
func (s *SQLite) ClearMatches(ctx context.Context, scanID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM matches WHERE scan_id = ?`, scanID); err != nil {
		return fmt.Errorf("clear matches: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM seen_messages WHERE scan_id = ?`, scanID); err != nil {
		return fmt.Errorf("clear seen_messages: %w", err)
	}
	return tx.Commit()
}

// MarkSeen records that a message has been processed for a scan.
func (s *SQLite) MarkSeen(ctx context.Context, scanID, messageID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_messages (scan_id, message_id) VALUES (?, ?)`,
		scanID, messageID,
	)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// IsSeen checks whether a message has already been processed for a scan.
func (s *SQLite) IsSeen(ctx context.Context, scanID, messageID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seen_messages WHERE scan_id = ? AND message_id = ?`,
		scanID, messageID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check seen: %w", err)
	}
	return count > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanScan(row scannable) (*model.Scan, error) {
	var sc model.Scan
	var caseSensitive, allowDup, isActive int
	var lastRun, created sql.NullString
	err := row.Scan(&sc.ID, &sc.ChatID, &sc.Target, &sc.Title, &sc.GroupID, &sc.MessageLimit,
		&sc.IntervalMinutes, &caseSensitive, &allowDup, &isActive, &lastRun, &created)
	if err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	sc.CaseSensitive = caseSensitive == 1
	sc.AllowDuplicates = allowDup == 1
	sc.IsActive = isActive == 1
	if lastRun.Valid {
		t, _ := time.Parse(timeLayout, lastRun.String)
		sc.LastRunAt = &t
	}
	if created.Valid {
		sc.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &sc, nil
}

func scanScans(rows *sql.Rows) ([]model.Scan, error) {
	var scans []model.Scan
	for rows.Next() {
		sc, err := scanScan(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, *sc)
	}
	return scans, rows.Err()
}

func scanKeyword(row scannable) (model.Keyword, error) {
	var k model.Keyword
	var kindStr, createdStr string
	err := row.Scan(&k.ID, &k.ScanID, &kindStr, &k.Term, &createdStr)
	if err != nil {
		return k, fmt.Errorf("scan keyword: %w", err)
	}
	k.Kind = model.KeywordKind(kindStr)
	k.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return k, nil
}
