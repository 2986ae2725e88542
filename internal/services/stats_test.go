package services_test

import (
	"context"
	"errors"
	"testing"

	"tasklist/backend/internal/models"
	"tasklist/backend/internal/repositories"
	"tasklist/backend/internal/services"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// countingStore serves CountBy from fixed buckets and fails the rest.
type countingStore struct {
	repositories.TaskStore
	buckets map[string]map[string]int64
	err     error
}

func (s *countingStore) CountBy(_ context.Context, _ uuid.UUID, column string) (map[string]int64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.buckets[column], nil
}

func TestStats_StoreErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	service := services.NewTaskService(&countingStore{err: boom}, nil, nil)

	_, err := service.Stats(context.Background(), uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, boom)
}

func TestStats_IgnoresUnknownBuckets(t *testing.T) {
	store := &countingStore{buckets: map[string]map[string]int64{
		repositories.GroupByStatus:   {"pending": 2, "archived": 5},
		repositories.GroupByPriority: {"low": 2, "urgent": 5},
	}}
	service := services.NewTaskService(store, nil, nil)

	stats, err := service.Stats(context.Background(), uuid.Must(uuid.NewV4()))
	assert.NoError(t, err)
	assert.Equal(t, map[models.Status]int64{models.StatusPending: 2}, stats.ByStatus)
	assert.Equal(t, map[models.Priority]int64{models.PriorityLow: 2}, stats.ByPriority)
	assert.Equal(t, int64(2), stats.Total)
}

// Stats agree with List for every owner: both groupings sum to the number of
// listed tasks and no bucket is zero.
func TestStats_AgreeWithList(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		db := openTestDB(rt)
		service := services.NewTaskService(repositories.NewTaskStore(db), nil, nil)
		ctx := context.Background()
		owners := []uuid.UUID{uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())}

		var created []*models.Task
		steps := rapid.IntRange(0, 15).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			owner := owners[rapid.IntRange(0, 1).Draw(rt, "owner")]
			op := rapid.IntRange(0, 2).Draw(rt, "op")
			switch {
			case op == 0 || len(created) == 0:
				task, err := service.Create(ctx, owner, services.CreateTaskInput{
					Title:    "task",
					Status:   rapid.SampledFrom(models.Statuses).Draw(rt, "status"),
					Priority: rapid.SampledFrom(models.Priorities).Draw(rt, "priority"),
				})
				if err != nil {
					rt.Fatalf("create: %v", err)
				}
				created = append(created, task)
			case op == 1:
				task := created[rapid.IntRange(0, len(created)-1).Draw(rt, "target")]
				_, err := service.Update(ctx, owner, task.ID, services.TaskPatch{
					Status: models.Some(rapid.SampledFrom(models.Statuses).Draw(rt, "newStatus")),
				})
				if err != nil && !errors.Is(err, services.ErrNotAuthorized) && !errors.Is(err, services.ErrTaskNotFound) {
					rt.Fatalf("update: %v", err)
				}
			default:
				task := created[rapid.IntRange(0, len(created)-1).Draw(rt, "target")]
				err := service.Delete(ctx, owner, task.ID)
				if err != nil && !errors.Is(err, services.ErrNotAuthorized) && !errors.Is(err, services.ErrTaskNotFound) {
					rt.Fatalf("delete: %v", err)
				}
			}
		}

		for _, owner := range owners {
			tasks, err := service.List(ctx, owner, repositories.Filter{}, repositories.DefaultSort())
			if err != nil {
				rt.Fatalf("list: %v", err)
			}
			stats, err := service.Stats(ctx, owner)
			if err != nil {
				rt.Fatalf("stats: %v", err)
			}

			var statusSum, prioritySum int64
			for status, count := range stats.ByStatus {
				if count == 0 {
					rt.Fatalf("zero bucket for status %s", status)
				}
				statusSum += count
			}
			for priority, count := range stats.ByPriority {
				if count == 0 {
					rt.Fatalf("zero bucket for priority %s", priority)
				}
				prioritySum += count
			}

			n := int64(len(tasks))
			if statusSum != n || prioritySum != n || stats.Total != n {
				rt.Fatalf("owner %s: list=%d byStatus=%d byPriority=%d total=%d", owner, n, statusSum, prioritySum, stats.Total)
			}
			for _, task := range tasks {
				if task.Owner != owner {
					rt.Fatalf("list for %s returned task of %s", owner, task.Owner)
				}
			}
		}
	})
}
