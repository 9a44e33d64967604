package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sentinelhq/sentinel-backend/internal/models"
)

// PostgresSchema is the PostgreSQL flavor of the initial schema. The
// embedded migrations are SQLite-flavored (AUTOINCREMENT), so the postgres
// path carries its own DDL.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS log_entries (
	id BIGSERIAL PRIMARY KEY,
	source TEXT NOT NULL,
	event TEXT NOT NULL,
	event_type TEXT,
	ip TEXT NOT NULL,
	"user" TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_log_entries_ip_type_ts ON log_entries (ip, event_type, timestamp);
CREATE INDEX IF NOT EXISTS idx_log_entries_timestamp ON log_entries (timestamp);

CREATE TABLE IF NOT EXISTS anomalies (
	id BIGSERIAL PRIMARY KEY,
	ip TEXT NOT NULL,
	severity TEXT NOT NULL,
	reason TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	detection_source TEXT NOT NULL DEFAULT 'RULE',
	ai_explanation TEXT,
	recommended_action TEXT,
	confidence_score INTEGER,
	log_entry_id BIGINT REFERENCES log_entries(id),
	status TEXT NOT NULL DEFAULT 'OPEN',
	resolution_notes TEXT,
	resolved_by TEXT,
	resolved_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_anomalies_timestamp ON anomalies (timestamp);
CREATE INDEX IF NOT EXISTS idx_anomalies_ip ON anomalies (ip);
CREATE INDEX IF NOT EXISTS idx_anomalies_dedup ON anomalies (ip, log_entry_id, timestamp);
`

// PostgresRepository implements Store using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(connectionString string) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresRepository{db: db}, nil
}

// Close closes the database connection.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// RunMigrations runs database migrations.
func (r *PostgresRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return err
}

// LogRepository implementation

func (r *PostgresRepository) CreateLogEntry(ctx context.Context, entry *models.LogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO log_entries (source, event, event_type, ip, "user", timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	return r.db.QueryRowContext(ctx, query,
		entry.Source,
		entry.Event,
		entry.EventType,
		entry.IP,
		entry.User,
		entry.Timestamp,
	).Scan(&entry.ID)
}

func (r *PostgresRepository) GetLogEntry(ctx context.Context, id int64) (*models.LogEntry, error) {
	var entry models.LogEntry
	err := r.db.GetContext(ctx, &entry, `SELECT * FROM log_entries WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("log entry not found: %d", id)
	}
	return &entry, err
}

func (r *PostgresRepository) CountLogEntries(ctx context.Context, ip, eventType string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM log_entries WHERE ip = $1 AND event_type = $2 AND timestamp >= $3`
	err := r.db.GetContext(ctx, &count, query, ip, eventType, since)
	return count, err
}

func (r *PostgresRepository) ListRecentLogEntries(ctx context.Context, excludeIDs []int64, limit int) ([]*models.LogEntry, error) {
	entries := []*models.LogEntry{}

	if len(excludeIDs) == 0 {
		err := r.db.SelectContext(ctx, &entries,
			`SELECT * FROM log_entries ORDER BY timestamp DESC LIMIT $1`, limit)
		return entries, err
	}

	query, args, err := sqlx.In(
		`SELECT * FROM log_entries WHERE id NOT IN (?) ORDER BY timestamp DESC LIMIT ?`,
		excludeIDs, limit)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	err = r.db.SelectContext(ctx, &entries, query, args...)
	return entries, err
}

func (r *PostgresRepository) ListLogEntriesByIP(ctx context.Context, ip string, limit int) ([]*models.LogEntry, error) {
	entries := []*models.LogEntry{}
	query := `SELECT * FROM log_entries WHERE ip = $1 ORDER BY timestamp DESC LIMIT $2`
	err := r.db.SelectContext(ctx, &entries, query, ip, limit)
	return entries, err
}

// AnomalyRepository implementation

func (r *PostgresRepository) CreateAnomaly(ctx context.Context, anomaly *models.Anomaly) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	return r.db.QueryRowContext(ctx, query,
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
	).Scan(&anomaly.ID)
}

func (r *PostgresRepository) GetAnomaly(ctx context.Context, id int64) (*models.Anomaly, error) {
	var anomaly models.Anomaly
	err := r.db.GetContext(ctx, &anomaly, `SELECT * FROM anomalies WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("anomaly not found: %d", id)
	}
	return &anomaly, err
}

func (r *PostgresRepository) FindRecentAnomaly(ctx context.Context, ip string, logEntryID int64, since time.Time) (*models.Anomaly, error) {
	var anomaly models.Anomaly
	query := `
		SELECT * FROM anomalies
		WHERE ip = $1 AND log_entry_id = $2 AND timestamp >= $3
		ORDER BY timestamp DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &anomaly, query, ip, logEntryID, since)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &anomaly, nil
}

func (r *PostgresRepository) UpdateAnomalyAI(ctx context.Context, id int64, source, explanation, action string, confidence int) error {
	query := `
		UPDATE anomalies
		SET detection_source = $1, ai_explanation = $2, recommended_action = $3, confidence_score = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, source, explanation, action, models.ClampConfidence(confidence), id)
	return err
}

func (r *PostgresRepository) UpdateAnomalyStatus(ctx context.Context, id int64, status string, notes, resolvedBy *string, resolvedAt *time.Time) error {
	query := `
		UPDATE anomalies
		SET status = $1, resolution_notes = $2, resolved_by = $3, resolved_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, status, notes, resolvedBy, resolvedAt, id)
	return err
}

func (r *PostgresRepository) ListAnomalies(ctx context.Context, limit, offset int) ([]*models.Anomaly, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM anomalies`); err != nil {
		return nil, 0, err
	}

	anomalies := []*models.Anomaly{}
	query := `SELECT * FROM anomalies ORDER BY timestamp DESC LIMIT $1 OFFSET $2`
	err := r.db.SelectContext(ctx, &anomalies, query, limit, offset)
	return anomalies, total, err
}

func (r *PostgresRepository) ListAnomaliesByIP(ctx context.Context, ip string) ([]*models.Anomaly, error) {
	anomalies := []*models.Anomaly{}
	query := `SELECT * FROM anomalies WHERE ip = $1 ORDER BY timestamp DESC`
	err := r.db.SelectContext(ctx, &anomalies, query, ip)
	return anomalies, err
}

func (r *PostgresRepository) ListAnomaliesSince(ctx context.Context, since time.Time, limit int) ([]*models.Anomaly, error) {
	anomalies := []*models.Anomaly{}
	query := `SELECT * FROM anomalies WHERE timestamp >= $1 ORDER BY timestamp DESC LIMIT $2`
	err := r.db.SelectContext(ctx, &anomalies, query, since, limit)
	return anomalies, err
}
