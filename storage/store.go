package storage

import (
	"context"
	"errors"
	"time"

	"incidentwatch/types"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("not found")

// Store persists articles and incidents and serves the recency window.
// Batch writes report per-item failures and never roll back saved items.
type Store interface {
	SaveArticles(ctx context.Context, articles []*types.Article) types.BatchWriteResult
	SaveIncidents(ctx context.Context, incidents []*types.Incident) types.BatchWriteResult
	RecentArticles(ctx context.Context, since time.Time) ([]*types.Article, error)
	RecentIncidents(ctx context.Context, since time.Time) ([]*types.Incident, error)
	GetIncident(ctx context.Context, id string) (*types.Incident, error)
	SaveGroups(ctx context.Context, groups []types.CoordinationGroup) error
	LatestGroups(ctx context.Context) ([]types.CoordinationGroup, error)
}
