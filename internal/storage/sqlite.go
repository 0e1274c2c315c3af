package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"pressbot/internal/model"
	"pressbot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
//
// All writes funnel through a single connection: the pool is capped at
// one open connection so concurrent scheduler and worker writes
// serialize instead of hitting SQLITE_BUSY.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
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

// InsertSeen records a newly ingested feed item. Inserting the same
// (source_id, external_id) twice returns the original row unchanged.
func (s *SQLite) InsertSeen(ctx context.Context, item model.FeedItem) (*model.SeenArticle, bool, error) {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_articles (source_id, external_id, title, status, inserted_at)
		 VALUES (?, ?, ?, ?, ?)`,
		item.SourceID, item.ExternalID, item.Title, string(model.StatusNew), now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert seen article: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_id, external_id, title, status, inserted_at, fail_reason
		 FROM seen_articles WHERE source_id = ? AND external_id = ?`,
		item.SourceID, item.ExternalID,
	)
	art, err := scanSeen(row)
	if err != nil {
		return nil, false, err
	}
	return art, affected > 0, nil
}

// GetSeen returns a seen article by its ID.
func (s *SQLite) GetSeen(ctx context.Context, id int64) (*model.SeenArticle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_id, external_id, title, status, inserted_at, fail_reason
		 FROM seen_articles WHERE id = ?`, id,
	)
	return scanSeen(row)
}

// IsSeen checks whether an item has already been ingested.
func (s *SQLite) IsSeen(ctx context.Context, sourceID, externalID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seen_articles WHERE source_id = ? AND external_id = ?`,
		sourceID, externalID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check seen: %w", err)
	}
	return count > 0, nil
}

// SetStatus transitions a seen article to the given status. The fail
// reason is stored verbatim and cleared on non-failure transitions when
// empty.
func (s *SQLite) SetStatus(ctx context.Context, id int64, status model.Status, failReason string) error {
	var reason *string
	if failReason != "" {
		reason = &failReason
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE seen_articles SET status = ?, fail_reason = ? WHERE id = ?`,
		string(status), reason, id,
	)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// ListByStatus returns up to limit articles in the given status,
// oldest first.
func (s *SQLite) ListByStatus(ctx context.Context, status model.Status, limit int) ([]model.SeenArticle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, external_id, title, status, inserted_at, fail_reason
		 FROM seen_articles WHERE status = ? ORDER BY id LIMIT ?`,
		string(status), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var articles []model.SeenArticle
	for rows.Next() {
		art, err := scanSeen(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *art)
	}
	return articles, rows.Err()
}

// CountByStatus returns the number of seen articles per status.
func (s *SQLite) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM seen_articles GROUP BY status`,
	)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := map[model.Status]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[model.Status(status)] = n
	}
	return counts, rows.Err()
}

// RecordPost links a seen article to the WordPress post created from it.
func (s *SQLite) RecordPost(ctx context.Context, seenArticleID, wpPostID int64) (*model.Post, error) {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (seen_article_id, wp_post_id, created_at) VALUES (?, ?, ?)`,
		seenArticleID, wpPostID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	created, _ := time.Parse(timeLayout, now)
	return &model.Post{ID: id, SeenArticleID: seenArticleID, WPPostID: wpPostID, CreatedAt: created}, nil
}

// FeedFailures returns the consecutive failure count for a source.
func (s *SQLite) FeedFailures(ctx context.Context, sourceID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT consecutive_failures FROM feed_status WHERE source_id = ?`, sourceID,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query feed status: %w", err)
	}
	return count, nil
}

// IncrementFeedFailures bumps the consecutive failure counter and
// returns the new value.
func (s *SQLite) IncrementFeedFailures(ctx context.Context, sourceID string) (int, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feed_status (source_id, consecutive_failures) VALUES (?, 1)
		 ON CONFLICT (source_id) DO UPDATE SET consecutive_failures = consecutive_failures + 1`,
		sourceID,
	)
	if err != nil {
		return 0, fmt.Errorf("increment feed failures: %w", err)
	}
	return s.FeedFailures(ctx, sourceID)
}

// ResetFeedFailures clears the consecutive failure counter.
func (s *SQLite) ResetFeedFailures(ctx context.Context, sourceID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feed_status (source_id, consecutive_failures) VALUES (?, 0)
		 ON CONFLICT (source_id) DO UPDATE SET consecutive_failures = 0`,
		sourceID,
	)
	if err != nil {
		return fmt.Errorf("reset feed failures: %w", err)
	}
	return nil
}

// RecordFailure appends an audit row for a failed work unit.
func (s *SQLite) RecordFailure(ctx context.Context, f model.Failure) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failures (source_id, article_url, error_message, failed_at) VALUES (?, ?, ?, ?)`,
		f.SourceID, f.ArticleURL, f.Error, now,
	)
	if err != nil {
		return fmt.Errorf("insert failure: %w", err)
	}
	return nil
}

// RecentFailures returns the most recent failure rows, newest first.
func (s *SQLite) RecentFailures(ctx context.Context, limit int) ([]model.Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, article_url, error_message, failed_at
		 FROM failures ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var failures []model.Failure
	for rows.Next() {
		var f model.Failure
		var failedAt string
		if err := rows.Scan(&f.ID, &f.SourceID, &f.ArticleURL, &f.Error, &failedAt); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.FailedAt, _ = time.Parse(timeLayout, failedAt)
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSeen(row scannable) (*model.SeenArticle, error) {
	var art model.SeenArticle
	var status, insertedAt string
	var failReason sql.NullString
	err := row.Scan(&art.ID, &art.SourceID, &art.ExternalID, &art.Title, &status, &insertedAt, &failReason)
	if err != nil {
		return nil, fmt.Errorf("scan seen article: %w", err)
	}
	art.Status = model.Status(status)
	if failReason.Valid {
		art.FailReason = failReason.String
	}
	art.InsertedAt, _ = time.Parse(timeLayout, insertedAt)
	return &art, nil
}
