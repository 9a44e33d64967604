package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel-backend/internal/detection"
	"github.com/sentinelhq/sentinel-backend/internal/models"
)

// fakeStore is an in-memory repository.Store for service tests.
type fakeStore struct {
	mu sync.Mutex

	logs      []*models.LogEntry
	anomalies []*models.Anomaly
	nextID    int64

	failedLoginCount int
	countErr         error
	createLogErr     error
	createAnomErr    error
	getAnomErr       error
	listErr          error
	updateStatusErr  error

	statusUpdates []statusUpdate
}

type statusUpdate struct {
	id         int64
	status     string
	notes      *string
	resolvedBy *string
	resolvedAt *time.Time
}

func (f *fakeStore) CreateLogEntry(ctx context.Context, entry *models.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createLogErr != nil {
		return f.createLogErr
	}
	f.nextID++
	entry.ID = f.nextID
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeStore) GetLogEntry(ctx context.Context, id int64) (*models.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.logs {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, errors.New("log entry not found")
}

func (f *fakeStore) CountLogEntries(ctx context.Context, ip, eventType string, since time.Time) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.failedLoginCount, nil
}

func (f *fakeStore) ListRecentLogEntries(ctx context.Context, excludeIDs []int64, limit int) ([]*models.LogEntry, error) {
	return nil, nil
}

func (f *fakeStore) ListLogEntriesByIP(ctx context.Context, ip string, limit int) ([]*models.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []*models.LogEntry{}
	for _, l := range f.logs {
		if l.IP == ip {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateAnomaly(ctx context.Context, anomaly *models.Anomaly) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createAnomErr != nil {
		return f.createAnomErr
	}
	f.nextID++
	anomaly.ID = f.nextID
	f.anomalies = append(f.anomalies, anomaly)
	return nil
}

func (f *fakeStore) GetAnomaly(ctx context.Context, id int64) (*models.Anomaly, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getAnomErr != nil {
		return nil, f.getAnomErr
	}
	for _, a := range f.anomalies {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, errors.New("anomaly not found")
}

func (f *fakeStore) FindRecentAnomaly(ctx context.Context, ip string, logEntryID int64, since time.Time) (*models.Anomaly, error) {
	return nil, nil
}

func (f *fakeStore) UpdateAnomalyAI(ctx context.Context, id int64, source, explanation, action string, confidence int) error {
	return nil
}

func (f *fakeStore) UpdateAnomalyStatus(ctx context.Context, id int64, status string, notes, resolvedBy *string, resolvedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateStatusErr != nil {
		return f.updateStatusErr
	}
	f.statusUpdates = append(f.statusUpdates, statusUpdate{id, status, notes, resolvedBy, resolvedAt})
	for _, a := range f.anomalies {
		if a.ID == id {
			a.Status = status
		}
	}
	return nil
}

func (f *fakeStore) ListAnomalies(ctx context.Context, limit, offset int) ([]*models.Anomaly, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	total := len(f.anomalies)
	if offset >= total {
		return []*models.Anomaly{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return f.anomalies[offset:end], total, nil
}

func (f *fakeStore) ListAnomaliesByIP(ctx context.Context, ip string) ([]*models.Anomaly, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []*models.Anomaly{}
	for _, a := range f.anomalies {
		if a.IP == ip {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAnomaliesSince(ctx context.Context, since time.Time, limit int) ([]*models.Anomaly, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.anomalies, nil
}

func (f *fakeStore) RunMigrations(migrationSQL string) error { return nil }
func (f *fakeStore) Close() error                            { return nil }

type fakePublisher struct {
	mu       sync.Mutex
	payloads []models.AnomalyPayload
}

func (f *fakePublisher) PublishAnomaly(payload models.AnomalyPayload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newIngestService(store *fakeStore, pub *fakePublisher) *IngestService {
	return NewIngestService(store, detection.NewEngine(testLogger()), pub, testLogger())
}

func validInput() IngestInput {
	return IngestInput{
		Source:    "auth-service",
		Event:     "login attempt failed for user alice",
		EventType: "FAILED_LOGIN",
		IP:        "10.0.0.5",
		User:      "alice",
	}
}

func TestIngestValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*IngestInput)
		message string
	}{
		{"missing source", func(i *IngestInput) { i.Source = "" }, "source is required"},
		{"missing event", func(i *IngestInput) { i.Event = "" }, "event is required"},
		{"missing ip", func(i *IngestInput) { i.IP = "" }, "ip is required"},
		{"missing user", func(i *IngestInput) { i.User = "" }, "user is required"},
		{"oversized source", func(i *IngestInput) { i.Source = strings.Repeat("s", 200) }, "source exceeds 128 characters"},
		{"malformed event type", func(i *IngestInput) { i.EventType = "has spaces" }, "invalid event type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			svc := newIngestService(store, &fakePublisher{})

			input := validInput()
			tt.mutate(&input)

			result, err := svc.Ingest(context.Background(), input)
			require.NoError(t, err)
			assert.False(t, result.Success)
			assert.Equal(t, tt.message, result.Message)
			assert.Empty(t, store.logs, "rejected input must not be persisted")
			assert.Empty(t, store.anomalies)
		})
	}
}

func TestIngestEventTypeIsOptional(t *testing.T) {
	store := &fakeStore{}
	svc := newIngestService(store, &fakePublisher{})

	input := validInput()
	input.EventType = ""

	result, err := svc.Ingest(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, store.logs, 1)
	assert.Nil(t, store.logs[0].EventType)
}

func TestIngestDefaultAnomalyWhenNoRuleFires(t *testing.T) {
	store := &fakeStore{failedLoginCount: 1}
	pub := &fakePublisher{}
	svc := newIngestService(store, pub)

	result, err := svc.Ingest(context.Background(), validInput())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Log received", result.Message)

	require.Len(t, store.anomalies, 1)
	a := store.anomalies[0]
	assert.Equal(t, models.SeverityLow, a.Severity)
	assert.Equal(t, "No specific anomalies detected", a.Reason)
	assert.Equal(t, models.SourceRule, a.DetectionSource)
	assert.Equal(t, models.StatusOpen, a.Status)
	require.NotNil(t, a.ConfidenceScore)
	assert.Equal(t, RuleConfidence, *a.ConfidenceScore)
	require.NotNil(t, a.LogEntryID)
	assert.Equal(t, store.logs[0].ID, *a.LogEntryID)

	require.Len(t, pub.payloads, 1)
	assert.Equal(t, "10.0.0.5", pub.payloads[0].IP)
	require.NotNil(t, pub.payloads[0].LogEntry)
	assert.Equal(t, "auth-service", pub.payloads[0].LogEntry.Source)
}

func TestIngestBruteForceFinding(t *testing.T) {
	// Six failed logins inside the window trips the brute-force rule.
	store := &fakeStore{failedLoginCount: 6}
	pub := &fakePublisher{}
	svc := newIngestService(store, pub)

	result, err := svc.Ingest(context.Background(), validInput())
	require.NoError(t, err)
	assert.True(t, result.Success)

	require.Len(t, store.anomalies, 1)
	assert.Equal(t, models.SeverityHigh, store.anomalies[0].Severity)
	assert.Equal(t, "Brute force attempt detected", store.anomalies[0].Reason)
	require.Len(t, pub.payloads, 1)
}

func TestIngestMultipleFindings(t *testing.T) {
	// A sudo-flavored failed login cannot exist (the brute-force rule needs
	// the exact FAILED_LOGIN type), so privilege escalation fires alone here.
	store := &fakeStore{failedLoginCount: 100}
	pub := &fakePublisher{}
	svc := newIngestService(store, pub)

	input := validInput()
	input.EventType = "SUDO_SESSION_OPENED"

	result, err := svc.Ingest(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, result.Success)

	require.Len(t, store.anomalies, 1)
	assert.Equal(t, models.SeverityMedium, store.anomalies[0].Severity)
	assert.Equal(t, "Privilege escalation detected", store.anomalies[0].Reason)
}

func TestIngestLogWriteFailureFailsCall(t *testing.T) {
	store := &fakeStore{createLogErr: errors.New("disk full")}
	svc := newIngestService(store, &fakePublisher{})

	result, err := svc.Ingest(context.Background(), validInput())
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "failed to ingest log", result.Message)
	assert.Empty(t, store.anomalies)
}

func TestIngestAnomalyWriteFailureIsSkipped(t *testing.T) {
	store := &fakeStore{createAnomErr: errors.New("constraint violation")}
	pub := &fakePublisher{}
	svc := newIngestService(store, pub)

	result, err := svc.Ingest(context.Background(), validInput())
	require.NoError(t, err)
	assert.True(t, result.Success, "a failed anomaly write must not fail ingestion")
	assert.Empty(t, pub.payloads, "failed writes are not published")
}
