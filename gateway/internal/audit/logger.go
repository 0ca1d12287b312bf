// Package audit records operator actions (application keys, lead removal)
// as signed, structured log entries.
package audit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Actions.
const (
	ActionApplicationCreate = "application.create"
	ActionApplicationRotate = "application.rotate"
	ActionLeadDelete        = "lead.delete"
)

// Results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Entry is one audited action.
type Entry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Actor      string    `json:"actor"`
	IPAddress  string    `json:"ip_address,omitempty"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id"`
	Result     string    `json:"result"`
	Reason     string    `json:"reason,omitempty"`
	Signature  string    `json:"signature"`
}

// Logger signs entries with an HMAC key and writes them to the audit log.
// The most recent entries are kept in memory for inspection.
type Logger struct {
	secretKey []byte
	out       *slog.Logger

	mu     sync.Mutex
	recent []*Entry
	keep   int
}

func NewLogger(secretKey string, out *slog.Logger) *Logger {
	if out == nil {
		out = slog.Default()
	}
	return &Logger{
		secretKey: []byte(secretKey),
		out:       out.With(slog.String("log_type", "audit")),
		keep:      100,
	}
}

func (l *Logger) Log(ctx context.Context, actor, ipAddress, action, resource, resourceID, result, reason string) *Entry {
	id, _ := uuid.NewV7()
	e := &Entry{
		ID:         id.String(),
		Timestamp:  time.Now().UTC(),
		Actor:      actor,
		IPAddress:  ipAddress,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Result:     result,
		Reason:     reason,
	}
	e.Signature = l.sign(e)

	l.mu.Lock()
	l.recent = append(l.recent, e)
	if len(l.recent) > l.keep {
		l.recent = l.recent[len(l.recent)-l.keep:]
	}
	l.mu.Unlock()

	level := slog.LevelInfo
	if result != ResultSuccess {
		level = slog.LevelWarn
	}
	l.out.LogAttrs(ctx, level, "audit",
		slog.String("audit_id", e.ID),
		slog.String("actor", e.Actor),
		slog.String("ip", e.IPAddress),
		slog.String("action", e.Action),
		slog.String("resource", e.Resource),
		slog.String("resource_id", e.ResourceID),
		slog.String("result", e.Result),
		slog.String("reason", e.Reason),
		slog.String("signature", e.Signature),
	)
	return e
}

func (l *Logger) sign(e *Entry) string {
	data := []byte(e.ID + e.Timestamp.Format(time.RFC3339Nano) + e.Actor + e.Action + e.Resource + e.ResourceID + e.Result)
	h := hmac.New(sha256.New, l.secretKey)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether e carries a valid signature.
func (l *Logger) Verify(e *Entry) bool {
	expected := l.sign(e)
	return hmac.Equal([]byte(expected), []byte(e.Signature))
}

// Recent returns a copy of the retained entries, oldest first.
func (l *Logger) Recent() []*Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Entry, len(l.recent))
	copy(out, l.recent)
	return out
}
