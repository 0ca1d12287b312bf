package models

import "fmt"

// Status is the delivery state of a Request row.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusRetry   Status = "retry"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed, StatusRetry:
		return true
	}
	return false
}

// Terminal reports whether no further delivery attempt is expected.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// ParseStatus converts a string into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("invalid status %q", v)
	}
	return s, nil
}
