package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tasklist/backend/internal/logger"
	"tasklist/backend/internal/models"
	"tasklist/backend/internal/repositories"

	"github.com/gofrs/uuid"
)

type TaskService interface {
	List(ctx context.Context, owner uuid.UUID, filter repositories.Filter, sort repositories.Sort) ([]models.Task, error)
	Get(ctx context.Context, owner, id uuid.UUID) (*models.Task, error)
	Create(ctx context.Context, owner uuid.UUID, input CreateTaskInput) (*models.Task, error)
	Update(ctx context.Context, owner, id uuid.UUID, patch TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, owner, id uuid.UUID) error
	Stats(ctx context.Context, owner uuid.UUID) (*TaskStats, error)
}

// CreateTaskInput holds the client-supplied fields of a new task. Empty
// status and priority take their defaults.
type CreateTaskInput struct {
	Title       string
	Description *string
	Status      models.Status
	Priority    models.Priority
	DueDate     *time.Time
}

// TaskPatch is a partial update. Unset fields are left untouched; a null
// Description or DueDate clears the stored value.
type TaskPatch struct {
	Title       models.Optional[string]
	Description models.Optional[string]
	Status      models.Optional[models.Status]
	Priority    models.Optional[models.Priority]
	DueDate     models.Optional[time.Time]
}

func (p TaskPatch) IsEmpty() bool {
	return !p.Title.Set && !p.Description.Set && !p.Status.Set && !p.Priority.Set && !p.DueDate.Set
}

type TaskServiceImpl struct {
	store repositories.TaskStore
	guard *Guard
	log   *logger.Logger
}

func NewTaskService(store repositories.TaskStore, guard *Guard, log *logger.Logger) *TaskServiceImpl {
	if log == nil {
		log = logger.NewNop()
	}
	if guard == nil {
		guard = NewGuard(nil, log, false)
	}
	return &TaskServiceImpl{store: store, guard: guard, log: log.WithComponent("tasks")}
}

func (s *TaskServiceImpl) List(ctx context.Context, owner uuid.UUID, filter repositories.Filter, sort repositories.Sort) ([]models.Task, error) {
	tasks, err := s.store.Find(ctx, repositories.NewQuery(owner, filter, sort))
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *TaskServiceImpl) Get(ctx context.Context, owner, id uuid.UUID) (*models.Task, error) {
	return s.fetchOwned(ctx, ActionRead, owner, id)
}

func (s *TaskServiceImpl) Create(ctx context.Context, owner uuid.UUID, input CreateTaskInput) (*models.Task, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate task id: %w", err)
	}

	task := &models.Task{
		ID:          id,
		Owner:       owner,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
	}
	if task.Status == "" {
		task.Status = models.DefaultStatus
	}
	if task.Priority == "" {
		task.Priority = models.DefaultPriority
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.Insert(ctx, task); err != nil {
		return nil, err
	}
	s.log.Debugw("Task created", "task_id", task.ID.String(), "user_id", owner.String())
	return task, nil
}

func (s *TaskServiceImpl) Update(ctx context.Context, owner, id uuid.UUID, patch TaskPatch) (*models.Task, error) {
	current, err := s.fetchOwned(ctx, ActionUpdate, owner, id)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return current, nil
	}

	updated, fields, err := applyPatch(*current, patch)
	if err != nil {
		return nil, err
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, id, fields); err != nil {
		return nil, err
	}

	stored, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Debugw("Task updated", "task_id", id.String(), "user_id", owner.String())
	return stored, nil
}

func (s *TaskServiceImpl) Delete(ctx context.Context, owner, id uuid.UUID) error {
	if _, err := s.fetchOwned(ctx, ActionDelete, owner, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Debugw("Task deleted", "task_id", id.String(), "user_id", owner.String())
	return nil
}

func (s *TaskServiceImpl) fetchOwned(ctx context.Context, action string, owner, id uuid.UUID) (*models.Task, error) {
	task, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Enforce(ctx, action, task, owner); err != nil {
		return nil, err
	}
	return task, nil
}

// applyPatch returns the task with the patch applied and the column values
// to write.
func applyPatch(task models.Task, patch TaskPatch) (models.Task, map[string]interface{}, error) {
	fields := make(map[string]interface{})

	if patch.Title.Set {
		if !patch.Title.Valid {
			return task, nil, models.NewValidationError("title", "Title cannot be null")
		}
		task.Title = strings.TrimSpace(patch.Title.Value)
		fields["title"] = task.Title
	}
	if patch.Description.Set {
		task.Description = patch.Description.Ptr()
		if task.Description == nil {
			fields["description"] = nil
		} else {
			fields["description"] = *task.Description
		}
	}
	if patch.Status.Set {
		if !patch.Status.Valid {
			return task, nil, models.NewValidationError("status", "Status cannot be null")
		}
		task.Status = patch.Status.Value
		fields["status"] = string(task.Status)
	}
	if patch.Priority.Set {
		if !patch.Priority.Valid {
			return task, nil, models.NewValidationError("priority", "Priority cannot be null")
		}
		task.Priority = patch.Priority.Value
		fields["priority"] = string(task.Priority)
	}
	if patch.DueDate.Set {
		task.DueDate = patch.DueDate.Ptr()
		if task.DueDate == nil {
			fields["due_date"] = nil
		} else {
			fields["due_date"] = *task.DueDate
		}
	}

	return task, fields, nil
}
