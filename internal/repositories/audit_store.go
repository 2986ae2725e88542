package repositories

import (
	"context"
	"fmt"
	"time"

	"tasklist/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type AuditStore interface {
	Record(ctx context.Context, entry *models.AuditLog) error
}

type GormAuditStore struct {
	db *gorm.DB
}

func NewAuditStore(db *gorm.DB) *GormAuditStore {
	return &GormAuditStore{db: db}
}

func (s *GormAuditStore) Record(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("failed to generate audit id: %w", err)
		}
		entry.ID = id
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to record audit log: %w", err)
	}
	return nil
}
