package repository

import (
	"context"
	"time"

	"github.com/sentinelhq/sentinel-backend/internal/models"
)

// LogRepository defines log entry data access methods.
type LogRepository interface {
	CreateLogEntry(ctx context.Context, entry *models.LogEntry) error
	GetLogEntry(ctx context.Context, id int64) (*models.LogEntry, error)
	CountLogEntries(ctx context.Context, ip, eventType string, since time.Time) (int, error)
	ListRecentLogEntries(ctx context.Context, excludeIDs []int64, limit int) ([]*models.LogEntry, error)
	ListLogEntriesByIP(ctx context.Context, ip string, limit int) ([]*models.LogEntry, error)
}

// AnomalyRepository defines anomaly data access methods.
type AnomalyRepository interface {
	CreateAnomaly(ctx context.Context, anomaly *models.Anomaly) error
	GetAnomaly(ctx context.Context, id int64) (*models.Anomaly, error)
	FindRecentAnomaly(ctx context.Context, ip string, logEntryID int64, since time.Time) (*models.Anomaly, error)
	UpdateAnomalyAI(ctx context.Context, id int64, source, explanation, action string, confidence int) error
	UpdateAnomalyStatus(ctx context.Context, id int64, status string, notes, resolvedBy *string, resolvedAt *time.Time) error
	ListAnomalies(ctx context.Context, limit, offset int) ([]*models.Anomaly, int, error)
	ListAnomaliesByIP(ctx context.Context, ip string) ([]*models.Anomaly, error)
	ListAnomaliesSince(ctx context.Context, since time.Time, limit int) ([]*models.Anomaly, error)
}

// Store aggregates all repositories behind one handle.
type Store interface {
	LogRepository
	AnomalyRepository
	RunMigrations(migrationSQL string) error
	Close() error
}
