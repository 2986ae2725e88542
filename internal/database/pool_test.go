package database

import (
	"context"
	"testing"
	"time"

	"tasklist/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestDefaultPoolConfig(t *testing.T) {
	config := DefaultPoolConfig()

	if config.Driver != DriverPostgres {
		t.Errorf("Expected Driver to be postgres, got %s", config.Driver)
	}

	if config.MaxOpenConns != 25 {
		t.Errorf("Expected MaxOpenConns to be 25, got %d", config.MaxOpenConns)
	}

	if config.MaxIdleConns != 10 {
		t.Errorf("Expected MaxIdleConns to be 10, got %d", config.MaxIdleConns)
	}

	if config.ConnMaxLifetime != time.Hour {
		t.Errorf("Expected ConnMaxLifetime to be 1 hour, got %v", config.ConnMaxLifetime)
	}

	if config.ConnMaxIdleTime != time.Minute*30 {
		t.Errorf("Expected ConnMaxIdleTime to be 30 minutes, got %v", config.ConnMaxIdleTime)
	}

	if config.LogLevel != logger.Info {
		t.Errorf("Expected LogLevel to be Info, got %v", config.LogLevel)
	}
}

func TestNewDatabasePool_WithNilConfig(t *testing.T) {
	_, err := NewDatabasePool(nil)

	if err == nil {
		t.Error("Expected error due to empty DSN, got nil")
	}
}

func TestNewDatabasePool_InvalidDSN(t *testing.T) {
	config := &PoolConfig{
		Driver:          DriverPostgres,
		DSN:             "invalid://connection:string",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute * 30,
		ConnMaxIdleTime: time.Minute * 15,
		LogLevel:        logger.Silent,
	}

	_, err := NewDatabasePool(config)

	if err == nil {
		t.Error("Expected error due to invalid DSN, got nil")
	}
}

func TestNewDatabasePool_UnsupportedDriver(t *testing.T) {
	_, err := NewDatabasePool(&PoolConfig{Driver: "mysql", DSN: "root@/tasks"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestPoolConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  *PoolConfig
		wantErr bool
	}{
		{
			name: "Valid sqlite configuration",
			config: &PoolConfig{
				Driver:          DriverSQLite,
				DSN:             ":memory:",
				MaxOpenConns:    1,
				MaxIdleConns:    1,
				ConnMaxLifetime: time.Hour,
				ConnMaxIdleTime: time.Minute * 30,
				LogLevel:        logger.Silent,
			},
			wantErr: false,
		},
		{
			name: "Zero values configuration",
			config: &PoolConfig{
				DSN:      "",
				LogLevel: logger.Silent,
			},
			wantErr: true,
		},
		{
			name: "Negative values configuration",
			config: &PoolConfig{
				Driver:          DriverSQLite,
				DSN:             ":memory:",
				MaxOpenConns:    -1,
				MaxIdleConns:    -1,
				ConnMaxLifetime: -time.Hour,
				ConnMaxIdleTime: -time.Minute,
				LogLevel:        logger.Silent,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := NewDatabasePool(tt.config)

			if tt.wantErr && err == nil {
				t.Error("Expected error but pool creation succeeded")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected successful pool creation but got error: %v", err)
			}
			if pool != nil {
				pool.Close()
			}
		})
	}
}

func newSQLitePool(t *testing.T) *DatabasePool {
	t.Helper()
	pool, err := NewDatabasePool(&PoolConfig{
		Driver:       DriverSQLite,
		DSN:          ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestDatabasePool_MigrateAndHealth(t *testing.T) {
	pool := newSQLitePool(t)

	require.NoError(t, pool.Migrate())
	assert.True(t, pool.DB.Migrator().HasTable(&models.Task{}))
	assert.True(t, pool.DB.Migrator().HasTable(&models.AuditLog{}))

	assert.NoError(t, pool.Health())
	assert.NoError(t, pool.HealthCheck(context.Background()))

	stats := pool.Stats()
	assert.Equal(t, 1, stats["max_open_connections"])
	assert.NotContains(t, stats, "error")
}

type captureWriter struct {
	lines []string
}

func (w *captureWriter) Printf(format string, args ...interface{}) {
	w.lines = append(w.lines, format)
}

func TestDatabasePool_UsesWriter(t *testing.T) {
	writer := &captureWriter{}
	pool, err := NewDatabasePool(&PoolConfig{
		Driver:       DriverSQLite,
		DSN:          ":memory:",
		MaxOpenConns: 1,
		LogLevel:     logger.Info,
		Writer:       writer,
	})
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, pool.DB.Exec("SELECT 1").Error)
	assert.NotEmpty(t, writer.lines)
}

func TestDatabasePool_Stats_WithoutConnection(t *testing.T) {
	pool := &DatabasePool{
		DB: nil,
		config: &PoolConfig{
			MaxOpenConns: 10,
		},
	}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Stats() should handle nil DB gracefully, but got panic: %v", r)
		}
	}()

	stats := pool.Stats()

	if _, hasError := stats["error"]; !hasError {
		t.Error("Expected error in stats when DB is nil")
	}
}

func TestDatabasePool_Health_WithoutConnection(t *testing.T) {
	pool := &DatabasePool{
		DB: nil,
	}

	if err := pool.Health(); err == nil {
		t.Error("Expected error when checking health with nil DB")
	}
	if err := pool.Migrate(); err == nil {
		t.Error("Expected error when migrating with nil DB")
	}
}

func TestDatabasePool_Close_WithoutConnection(t *testing.T) {
	pool := &DatabasePool{
		DB: nil,
	}

	err := pool.Close()

	if err != nil {
		t.Errorf("Expected no error when closing nil DB, got: %v", err)
	}
}

func BenchmarkDefaultPoolConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = DefaultPoolConfig()
	}
}
