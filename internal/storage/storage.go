// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"tgscan/internal/model"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateScan(ctx context.Context, scan *model.Scan) error
	GetScan(ctx context.Context, id int64) (*model.Scan, error)
	ListScans(ctx context.Context, chatID int64) ([]model.Scan, error)
	ListDueScans(ctx context.Context) ([]model.Scan, error)
	UpdateScan(ctx context.Context, scan *model.Scan) error
	DeleteScan(ctx context.Context, id int64) error

	CreateKeyword(ctx context.Context, k *model.Keyword) error
	ListKeywords(ctx context.Context, scanID int64) ([]model.Keyword, error)
	GetKeyword(ctx context.Context, id int64) (*model.Keyword, error)
	DeleteKeyword(ctx context.Context, id int64) error

	InsertMatch(ctx context.Context, m *model.Match) error
	ListMatches(ctx context.Context, scanID int64) ([]model.Match, error)
	ClearMatches(ctx context.Context, scanID int64) error

	MarkSeen(ctx context.Context, scanID, messageID int64) error
	IsSeen(ctx context.Context, scanID, messageID int64) (bool, error)

	Close() error
}
