package models

import "time"

// LogEntry is one raw observed event from a monitored system.
// Created once at ingestion and never mutated; retention is handled
// outside this service.
type LogEntry struct {
	ID        int64     `json:"id" db:"id"`
	Source    string    `json:"source" db:"source"`
	Event     string    `json:"event" db:"event"`
	EventType *string   `json:"event_type,omitempty" db:"event_type"`
	IP        string    `json:"ip" db:"ip"`
	User      string    `json:"user" db:"user"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// EventTypeFailedLogin is the event type counted by the brute-force rule.
const EventTypeFailedLogin = "FAILED_LOGIN"
