// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"pressbot/internal/model"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	// InsertSeen records a newly ingested item with status NEW. If the
	// (source_id, external_id) pair already exists the call is a no-op
	// and the existing row is returned with inserted=false.
	InsertSeen(ctx context.Context, item model.FeedItem) (article *model.SeenArticle, inserted bool, err error)
	GetSeen(ctx context.Context, id int64) (*model.SeenArticle, error)
	IsSeen(ctx context.Context, sourceID, externalID string) (bool, error)
	SetStatus(ctx context.Context, id int64, status model.Status, failReason string) error
	ListByStatus(ctx context.Context, status model.Status, limit int) ([]model.SeenArticle, error)
	CountByStatus(ctx context.Context) (map[model.Status]int, error)

	RecordPost(ctx context.Context, seenArticleID, wpPostID int64) (*model.Post, error)

	FeedFailures(ctx context.Context, sourceID string) (int, error)
	IncrementFeedFailures(ctx context.Context, sourceID string) (int, error)
	ResetFeedFailures(ctx context.Context, sourceID string) error

	RecordFailure(ctx context.Context, f model.Failure) error
	RecentFailures(ctx context.Context, limit int) ([]model.Failure, error)

	Close() error
}
