package services

import (
	"context"

	"tasklist/backend/internal/models"
	"tasklist/backend/internal/repositories"

	"github.com/gofrs/uuid"
	"golang.org/x/sync/errgroup"
)

// TaskStats counts one owner's tasks by status and by priority. Buckets
// without tasks are omitted.
type TaskStats struct {
	ByStatus   map[models.Status]int64   `json:"byStatus"`
	ByPriority map[models.Priority]int64 `json:"byPriority"`
	Total      int64                     `json:"total"`
}

func (s *TaskServiceImpl) Stats(ctx context.Context, owner uuid.UUID) (*TaskStats, error) {
	var byStatus, byPriority map[string]int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.store.CountBy(gctx, owner, repositories.GroupByStatus)
		byStatus = counts
		return err
	})
	g.Go(func() error {
		counts, err := s.store.CountBy(gctx, owner, repositories.GroupByPriority)
		byPriority = counts
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &TaskStats{
		ByStatus:   make(map[models.Status]int64, len(byStatus)),
		ByPriority: make(map[models.Priority]int64, len(byPriority)),
	}
	for value, count := range byStatus {
		status := models.Status(value)
		if !status.IsValid() {
			s.log.Warnw("Ignoring unknown status bucket", "value", value, "user_id", owner.String())
			continue
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	for value, count := range byPriority {
		priority := models.Priority(value)
		if !priority.IsValid() {
			s.log.Warnw("Ignoring unknown priority bucket", "value", value, "user_id", owner.String())
			continue
		}
		stats.ByPriority[priority] = count
	}
	return stats, nil
}
