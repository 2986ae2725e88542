package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tasklist/backend/internal/models"
	"tasklist/backend/internal/worker"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu      sync.Mutex
	entries []models.AuditLog
	fail    int
}

func (s *memorySink) Record(_ context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("database unavailable")
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func setup(t *testing.T, sink *memorySink) (*miniredis.Miniredis, *redis.Client, *worker.AuditQueue, *worker.Worker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	queue := worker.NewAuditQueue(client, "")
	w := worker.NewWorker(worker.Config{
		Client:      client,
		Sink:        sink,
		PollTimeout: time.Second,
	})
	return mr, client, queue, w
}

func deniedEntry() *models.AuditLog {
	return &models.AuditLog{
		UserID:     uuid.Must(uuid.NewV4()),
		Action:     "read",
		Resource:   "task",
		ResourceID: uuid.Must(uuid.NewV4()),
		Decision:   models.DecisionDenied,
		Reason:     "task belongs to another user",
	}
}

func TestAuditQueue_Record(t *testing.T) {
	_, _, queue, _ := setup(t, &memorySink{})
	ctx := context.Background()

	entry := deniedEntry()
	require.NoError(t, queue.Record(ctx, entry))
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())

	size, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}

func TestWorker_ProcessNext(t *testing.T) {
	sink := &memorySink{}
	_, _, queue, w := setup(t, sink)
	ctx := context.Background()

	entry := deniedEntry()
	require.NoError(t, queue.Record(ctx, entry))

	handled, err := w.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, handled)
	require.Equal(t, 1, sink.count())
	assert.Equal(t, entry.ID, sink.entries[0].ID)
	assert.Equal(t, models.DecisionDenied, sink.entries[0].Decision)
}

func TestWorker_RetriesThenBuries(t *testing.T) {
	sink := &memorySink{fail: 3}
	mr, _, queue, w := setup(t, sink)
	ctx := context.Background()

	require.NoError(t, queue.Record(ctx, deniedEntry()))

	for i := 0; i < 3; i++ {
		handled, err := w.ProcessNext(ctx)
		require.NoError(t, err)
		assert.True(t, handled)
	}

	assert.Equal(t, 0, sink.count())
	size, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)

	dead, err := mr.List(worker.DefaultDeadQueue)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Contains(t, dead[0], "database unavailable")
}

func TestWorker_RecoversAfterTransientFailure(t *testing.T) {
	sink := &memorySink{fail: 1}
	_, _, queue, w := setup(t, sink)
	ctx := context.Background()

	require.NoError(t, queue.Record(ctx, deniedEntry()))

	_, err := w.ProcessNext(ctx)
	require.NoError(t, err)
	_, err = w.ProcessNext(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, sink.count())
}

func TestWorker_MalformedJobGoesToDeadQueue(t *testing.T) {
	sink := &memorySink{}
	mr, _, _, w := setup(t, sink)

	_, err := mr.RPush(worker.DefaultAuditQueue, "not json")
	require.NoError(t, err)

	handled, err := w.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, 0, sink.count())

	dead, err := mr.List(worker.DefaultDeadQueue)
	require.NoError(t, err)
	assert.Len(t, dead, 1)
}

func TestWorker_EmptyQueue(t *testing.T) {
	_, _, _, w := setup(t, &memorySink{})

	handled, err := w.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestWorker_StartStop(t *testing.T) {
	sink := &memorySink{}
	_, _, queue, w := setup(t, sink)

	w.Start()
	for i := 0; i < 5; i++ {
		require.NoError(t, queue.Record(context.Background(), deniedEntry()))
	}

	assert.Eventually(t, func() bool { return sink.count() == 5 }, 2*time.Second, 10*time.Millisecond)
	w.Stop()
}
