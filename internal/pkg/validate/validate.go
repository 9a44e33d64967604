// Package validate provides input validation for API path and body parameters.
package validate

import "net"

// Field length caps for ingested log records. Values come from untrusted
// agents, so oversized fields are rejected before they reach the store.
const (
	SourceMaxLen    = 128
	EventMaxLen     = 4096
	EventTypeMaxLen = 64
	UserMaxLen      = 256
)

// Source validates a log source identifier: non-empty, capped length.
func Source(s string) bool {
	return s != "" && len(s) <= SourceMaxLen
}

// Event validates a raw event message: non-empty, capped length.
func Event(s string) bool {
	return s != "" && len(s) <= EventMaxLen
}

// EventType validates an optional event type tag: empty, or alphanumeric
// with underscores and hyphens, capped length.
func EventType(s string) bool {
	if s == "" {
		return true
	}
	if len(s) > EventTypeMaxLen {
		return false
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			continue
		}
		return false
	}
	return true
}

// User validates a username field: non-empty, capped length.
func User(s string) bool {
	return s != "" && len(s) <= UserMaxLen
}

// IP reports whether s parses as an IPv4 or IPv6 address.
func IP(s string) bool {
	return net.ParseIP(s) != nil
}
