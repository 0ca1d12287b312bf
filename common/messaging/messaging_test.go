package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewMessage_AppliesOptions(t *testing.T) {
	before := time.Now().UTC()
	msg := NewMessage("leads.responses.success", []byte(`{}`),
		WithHeader(HeaderLeadID, "lead-1"),
		WithHeader(HeaderSystem, "crm"),
		WithKey("lead-1"),
	)

	assert.Equal(t, "leads.responses.success", msg.Subject)
	assert.Equal(t, []byte(`{}`), msg.Data)
	assert.Equal(t, "lead-1", msg.Key)
	assert.Equal(t, "lead-1", msg.Metadata[HeaderLeadID])
	assert.Equal(t, "crm", msg.Metadata[HeaderSystem])
	assert.False(t, msg.Timestamp.Before(before))
}

func TestNewMessage_NoOptions(t *testing.T) {
	msg := NewMessage("s", nil)
	assert.Nil(t, msg.Metadata)
	assert.Empty(t, msg.Key)
}

func TestWithHeader_Overwrites(t *testing.T) {
	msg := NewMessage("s", nil, WithHeader("k", "a"), WithHeader("k", "b"))
	assert.Equal(t, "b", msg.Metadata["k"])
}

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

func TestCheckHealth(t *testing.T) {
	t.Run("nil checker", func(t *testing.T) {
		status := CheckHealth(context.Background(), nil)
		assert.False(t, status.Connected)
		assert.NotEmpty(t, status.Error)
	})

	t.Run("healthy", func(t *testing.T) {
		status := CheckHealth(context.Background(), checkerFunc(func(context.Context) error { return nil }))
		assert.True(t, status.Connected)
		assert.Empty(t, status.Error)
	})

	t.Run("unhealthy", func(t *testing.T) {
		status := CheckHealth(context.Background(), checkerFunc(func(context.Context) error {
			return errors.New("connection refused")
		}))
		assert.False(t, status.Connected)
		assert.Equal(t, "connection refused", status.Error)
	})
}
