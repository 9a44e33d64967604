package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/sentinelhq/sentinel-backend/internal/models"
)

// SQLiteRepository implements Store using SQLite.
type SQLiteRepository struct {
	db *sqlx.DB
}

// NewSQLiteRepository creates a new SQLite repository.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	// Single connection: modernc sqlite serializes writers anyway, and
	// :memory: databases are per-connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// RunMigrations runs database migrations.
func (r *SQLiteRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return err
}

// LogRepository implementation

func (r *SQLiteRepository) CreateLogEntry(ctx context.Context, entry *models.LogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO log_entries (source, event, event_type, ip, user, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	res, err := r.db.ExecContext(ctx, query,
		entry.Source,
		entry.Event,
		entry.EventType,
		entry.IP,
		entry.User,
		entry.Timestamp,
	)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = id
	return nil
}

func (r *SQLiteRepository) GetLogEntry(ctx context.Context, id int64) (*models.LogEntry, error) {
	var entry models.LogEntry
	err := r.db.GetContext(ctx, &entry, `SELECT * FROM log_entries WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("log entry not found: %d", id)
	}
	return &entry, err
}

func (r *SQLiteRepository) CountLogEntries(ctx context.Context, ip, eventType string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM log_entries WHERE ip = ? AND event_type = ? AND timestamp >= ?`
	err := r.db.GetContext(ctx, &count, query, ip, eventType, since)
	return count, err
}

func (r *SQLiteRepository) ListRecentLogEntries(ctx context.Context, excludeIDs []int64, limit int) ([]*models.LogEntry, error) {
	entries := []*models.LogEntry{}

	query := `SELECT * FROM log_entries`
	args := []interface{}{}

	if len(excludeIDs) > 0 {
		placeholders := strings.Repeat("?,", len(excludeIDs))
		query += ` WHERE id NOT IN (` + placeholders[:len(placeholders)-1] + `)`
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}

	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	err := r.db.SelectContext(ctx, &entries, query, args...)
	return entries, err
}

func (r *SQLiteRepository) ListLogEntriesByIP(ctx context.Context, ip string, limit int) ([]*models.LogEntry, error) {
	entries := []*models.LogEntry{}
	query := `SELECT * FROM log_entries WHERE ip = ? ORDER BY timestamp DESC LIMIT ?`
	err := r.db.SelectContext(ctx, &entries, query, ip, limit)
	return entries, err
}

// AnomalyRepository implementation

func (r *SQLiteRepository) CreateAnomaly(ctx context.Context, anomaly *models.Anomaly) error {
	if anomaly.Timestamp.IsZero() {
		anomaly.Timestamp = time.Now().UTC()
	}
	if anomaly.Status == "" {
		anomaly.Status = models.StatusOpen
	}
	if anomaly.ConfidenceScore != nil {
		clamped := models.ClampConfidence(*anomaly.ConfidenceScore)
		anomaly.ConfidenceScore = &clamped
	}

	query := `
		INSERT INTO anomalies (ip, severity, reason, timestamp, detection_source,
			ai_explanation, recommended_action, confidence_score, log_entry_id, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := r.db.ExecContext(ctx, query,
		anomaly.IP,
		anomaly.Severity,
		anomaly.Reason,
		anomaly.Timestamp,
		anomaly.DetectionSource,
		anomaly.AIExplanation,
		anomaly.RecommendedAction,
		anomaly.ConfidenceScore,
		anomaly.LogEntryID,
		anomaly.Status,
	)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	anomaly.ID = id
	return nil
}

func (r *SQLiteRepository) GetAnomaly(ctx context.Context, id int64) (*models.Anomaly, error) {
	var anomaly models.Anomaly
	err := r.db.GetContext(ctx, &anomaly, `SELECT * FROM anomalies WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("anomaly not found: %d", id)
	}
	return &anomaly, err
}

func (r *SQLiteRepository) FindRecentAnomaly(ctx context.Context, ip string, logEntryID int64, since time.Time) (*models.Anomaly, error) {
	var anomaly models.Anomaly
	query := `
		SELECT * FROM anomalies
		WHERE ip = ? AND log_entry_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &anomaly, query, ip, logEntryID, since)
	if err == sql.ErrNoRows {
		return nil, nil // no matching anomaly
	}
	if err != nil {
		return nil, err
	}
	return &anomaly, nil
}

func (r *SQLiteRepository) UpdateAnomalyAI(ctx context.Context, id int64, source, explanation, action string, confidence int) error {
	query := `
		UPDATE anomalies
		SET detection_source = ?, ai_explanation = ?, recommended_action = ?, confidence_score = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, source, explanation, action, models.ClampConfidence(confidence), id)
	return err
}

func (r *SQLiteRepository) UpdateAnomalyStatus(ctx context.Context, id int64, status string, notes, resolvedBy *string, resolvedAt *time.Time) error {
	query := `
		UPDATE anomalies
		SET status = ?, resolution_notes = ?, resolved_by = ?, resolved_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, status, notes, resolvedBy, resolvedAt, id)
	return err
}

func (r *SQLiteRepository) ListAnomalies(ctx context.Context, limit, offset int) ([]*models.Anomaly, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM anomalies`); err != nil {
		return nil, 0, err
	}

	anomalies := []*models.Anomaly{}
	query := `SELECT * FROM anomalies ORDER BY timestamp DESC LIMIT ? OFFSET ?`
	err := r.db.SelectContext(ctx, &anomalies, query, limit, offset)
	return anomalies, total, err
}

func (r *SQLiteRepository) ListAnomaliesByIP(ctx context.Context, ip string) ([]*models.Anomaly, error) {
	anomalies := []*models.Anomaly{}
	query := `SELECT * FROM anomalies WHERE ip = ? ORDER BY timestamp DESC`
	err := r.db.SelectContext(ctx, &anomalies, query, ip)
	return anomalies, err
}

func (r *SQLiteRepository) ListAnomaliesSince(ctx context.Context, since time.Time, limit int) ([]*models.Anomaly, error) {
	anomalies := []*models.Anomaly{}
	query := `SELECT * FROM anomalies WHERE timestamp >= ? ORDER BY timestamp DESC LIMIT ?`
	err := r.db.SelectContext(ctx, &anomalies, query, since, limit)
	return anomalies, err
}
