package services

import (
	"context"

	"tasklist/backend/internal/logger"
	"tasklist/backend/internal/models"
	"tasklist/backend/internal/repositories"

	"github.com/gofrs/uuid"
)

type Decision int

const (
	Allow Decision = iota
	Deny
)

func (d Decision) String() string {
	if d == Allow {
		return models.DecisionAllowed
	}
	return models.DecisionDenied
}

const (
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"

	resourceTask = "task"
)

// Guard decides whether a requester may act on a fetched task. Only the
// owner of a task may read, update or delete it.
type Guard struct {
	audit       repositories.AuditStore
	log         *logger.Logger
	maskForeign bool
}

// NewGuard builds a guard. audit may be nil. With maskForeign set, denials
// surface as ErrTaskNotFound so callers cannot probe for foreign ids.
func NewGuard(audit repositories.AuditStore, log *logger.Logger, maskForeign bool) *Guard {
	if log == nil {
		log = logger.NewNop()
	}
	return &Guard{audit: audit, log: log.WithComponent("guard"), maskForeign: maskForeign}
}

func (g *Guard) Check(task *models.Task, requester uuid.UUID) Decision {
	if task.Owner != requester {
		return Deny
	}
	return Allow
}

// Enforce runs Check and turns a denial into an error after logging and
// auditing it.
func (g *Guard) Enforce(ctx context.Context, action string, task *models.Task, requester uuid.UUID) error {
	if g.Check(task, requester) == Allow {
		return nil
	}

	info := RequestInfoFrom(ctx)
	g.log.LogSecurityEvent("task_access_denied", requester.String(), map[string]interface{}{
		"action":  action,
		"task_id": task.ID.String(),
		"ip":      info.IPAddress,
	})

	if g.audit != nil {
		entry := &models.AuditLog{
			UserID:        requester,
			Action:        action,
			Resource:      resourceTask,
			ResourceID:    task.ID,
			Decision:      Deny.String(),
			Reason:        "task belongs to another user",
			IPAddress:     info.IPAddress,
			UserAgent:     info.UserAgent,
			RequestMethod: info.Method,
			RequestPath:   info.Path,
		}
		if err := g.audit.Record(ctx, entry); err != nil {
			g.log.WithError(err).Error("Failed to record audit log")
		}
	}

	if g.maskForeign {
		return ErrTaskNotFound
	}
	return ErrNotAuthorized
}
