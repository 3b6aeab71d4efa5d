package database

import (
	"database/sql"
	"errors"

	"github.com/bryan-buckman/frontpage/internal/model"
)

// --- Helper functions shared by the SQL backends ---

type rowScanner interface {
	Scan(dest ...any) error
}

func nullLimit(limit int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(limit), Valid: limit > 0}
}

func scanFeedRow(row rowScanner, extra ...any) (model.FeedConfig, error) {
	var f model.FeedConfig
	var limit sql.NullInt64
	dest := append([]any{&f.ID, &f.Title, &f.URL, &f.Description, &limit}, extra...)
	if err := row.Scan(dest...); err != nil {
		return f, err
	}
	if limit.Valid {
		f.Limit = int(limit.Int64)
	}
	return withDefaultLimit(f), nil
}

func scanFeed(row *sql.Row) (*model.FeedConfig, error) {
	f, err := scanFeedRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func scanFeeds(rows *sql.Rows) ([]model.FeedConfig, error) {
	feeds := []model.FeedConfig{}
	for rows.Next() {
		f, err := scanFeedRow(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

func scanStatuses(rows *sql.Rows) ([]model.SourceStatus, error) {
	var statuses []model.SourceStatus
	for rows.Next() {
		var s model.SourceStatus
		var checkedAt sql.NullTime
		f, err := scanFeedRow(rows, &s.OK, &s.ItemCount, &s.LastUpdated, &s.Message, &checkedAt)
		if err != nil {
			return nil, err
		}
		s.Feed = f
		if checkedAt.Valid {
			s.CheckedAt = checkedAt.Time.UTC()
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

func notFoundIfUnchanged(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func duplicateIfUnchanged(res sql.Result) error {
	err := notFoundIfUnchanged(res)
	if errors.Is(err, ErrNotFound) {
		return ErrDuplicateFeed
	}
	return err
}
