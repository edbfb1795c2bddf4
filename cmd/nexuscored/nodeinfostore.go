package main

import (
	"context"
	"time"

	"github.com/dbehnke/nexus-core/backend/models"
	"github.com/dbehnke/nexus-core/backend/repository"
	"github.com/dbehnke/nexus-core/internal/nodelookup"
)

// nodeInfoStore adapts *repository.NodeInfoRepository to nodelookup.Store,
// translating between nodelookup.Entry and the GORM-backed models.NodeInfo
// row the repository actually persists.
type nodeInfoStore struct {
	repo *repository.NodeInfoRepository
}

func newNodeInfoStore(repo *repository.NodeInfoRepository) *nodeInfoStore {
	return &nodeInfoStore{repo: repo}
}

func (s *nodeInfoStore) BulkUpsert(ctx context.Context, entries []nodelookup.Entry, batchSize int) error {
	rows := make([]models.NodeInfo, len(entries))
	for i, e := range entries {
		rows[i] = models.NodeInfo{
			NodeID:      e.Node,
			Callsign:    e.Callsign,
			Description: e.Description,
			Location:    e.Location,
			LastSeen:    time.Now(),
		}
	}
	return s.repo.BulkUpsert(ctx, rows, batchSize)
}

func (s *nodeInfoStore) DeleteStaleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.DeleteStaleNodes(ctx, cutoff)
}

func (s *nodeInfoStore) CountStaleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.GetStaleCount(ctx, cutoff)
}
