package services_test

import (
	"context"
	"errors"
	"testing"

	"tasklist/backend/internal/logger"
	"tasklist/backend/internal/models"
	"tasklist/backend/internal/services"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAudit struct {
	entries []*models.AuditLog
	err     error
}

func (a *recordingAudit) Record(_ context.Context, entry *models.AuditLog) error {
	a.entries = append(a.entries, entry)
	return a.err
}

func TestGuard_Check(t *testing.T) {
	owner := uuid.Must(uuid.NewV4())
	task := &models.Task{ID: uuid.Must(uuid.NewV4()), Owner: owner}
	guard := services.NewGuard(nil, nil, false)

	assert.Equal(t, services.Allow, guard.Check(task, owner))
	assert.Equal(t, services.Deny, guard.Check(task, uuid.Must(uuid.NewV4())))
	assert.Equal(t, services.Deny, guard.Check(task, uuid.Nil))
}

func TestGuard_Enforce_RecordsDenial(t *testing.T) {
	owner := uuid.Must(uuid.NewV4())
	intruder := uuid.Must(uuid.NewV4())
	task := &models.Task{ID: uuid.Must(uuid.NewV4()), Owner: owner}
	audit := &recordingAudit{}
	guard := services.NewGuard(audit, logger.NewNop(), false)

	ctx := services.WithRequestInfo(context.Background(), services.RequestInfo{
		IPAddress: "203.0.113.7",
		UserAgent: "curl/8.0",
		Method:    "DELETE",
		Path:      "/api/tasks/" + task.ID.String(),
	})

	require.NoError(t, guard.Enforce(ctx, services.ActionDelete, task, owner))
	assert.Empty(t, audit.entries, "allowed access is not audited")

	err := guard.Enforce(ctx, services.ActionDelete, task, intruder)
	assert.ErrorIs(t, err, services.ErrNotAuthorized)
	require.Len(t, audit.entries, 1)

	entry := audit.entries[0]
	assert.Equal(t, intruder, entry.UserID)
	assert.Equal(t, task.ID, entry.ResourceID)
	assert.Equal(t, services.ActionDelete, entry.Action)
	assert.Equal(t, models.DecisionDenied, entry.Decision)
	assert.Equal(t, "203.0.113.7", entry.IPAddress)
	assert.Equal(t, "DELETE", entry.RequestMethod)
}

func TestGuard_Enforce_AuditFailureIsNotSurfaced(t *testing.T) {
	task := &models.Task{ID: uuid.Must(uuid.NewV4()), Owner: uuid.Must(uuid.NewV4())}
	guard := services.NewGuard(&recordingAudit{err: errors.New("disk full")}, logger.NewNop(), false)

	err := guard.Enforce(context.Background(), services.ActionRead, task, uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, services.ErrNotAuthorized)
}

func TestGuard_Enforce_Masked(t *testing.T) {
	task := &models.Task{ID: uuid.Must(uuid.NewV4()), Owner: uuid.Must(uuid.NewV4())}
	guard := services.NewGuard(nil, logger.NewNop(), true)

	err := guard.Enforce(context.Background(), services.ActionRead, task, uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, services.ErrTaskNotFound)
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "allowed", services.Allow.String())
	assert.Equal(t, "denied", services.Deny.String())
}
