package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tasklist/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrInvalidGroupBy   = errors.New("invalid group by column")
	ErrInvalidUpdateKey = errors.New("invalid update column")
)

// TaskStore is the durable collection of tasks.
type TaskStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Find(ctx context.Context, query Query) ([]models.Task, error)
	Insert(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountBy(ctx context.Context, owner uuid.UUID, column string) (map[string]int64, error)
}

const (
	GroupByStatus   = "status"
	GroupByPriority = "priority"
)

var updatableColumns = map[string]bool{
	"title":       true,
	"description": true,
	"status":      true,
	"priority":    true,
	"due_date":    true,
}

type GormTaskStore struct {
	db *gorm.DB
}

func NewTaskStore(db *gorm.DB) *GormTaskStore {
	return &GormTaskStore{db: db}
}

func (s *GormTaskStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return &task, nil
}

func (s *GormTaskStore) Find(ctx context.Context, query Query) ([]models.Task, error) {
	tasks := make([]models.Task, 0)
	if err := s.db.WithContext(ctx).Scopes(query.Scope).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (s *GormTaskStore) Insert(ctx context.Context, task *models.Task) error {
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// Update writes only the given columns. A nil value stores NULL.
func (s *GormTaskStore) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	values := make(map[string]interface{}, len(fields)+1)
	for column, value := range fields {
		if !updatableColumns[column] {
			return fmt.Errorf("%w: %s", ErrInvalidUpdateKey, column)
		}
		values[column] = value
	}
	values["updated_at"] = time.Now()

	result := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(values)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *GormTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Delete(&models.Task{}, "id = ?", id)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

type groupCount struct {
	Value string
	Count int64
}

// CountBy counts the owner's tasks grouped by status or priority. Groups
// without tasks are absent from the result.
func (s *GormTaskStore) CountBy(ctx context.Context, owner uuid.UUID, column string) (map[string]int64, error) {
	if column != GroupByStatus && column != GroupByPriority {
		return nil, fmt.Errorf("%w: %s", ErrInvalidGroupBy, column)
	}

	var rows []groupCount
	err := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Select(column+" AS value, COUNT(*) AS count").
		Where("user_id = ?", owner).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by %s: %w", column, err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Value] = row.Count
	}
	return counts, nil
}
