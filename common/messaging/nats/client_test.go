package nats

import (
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"

	"github.com/leadgate/leadgate/common/messaging"
)

func TestToNATS_CopiesHeaders(t *testing.T) {
	msg := messaging.NewMessage("leads.responses.success", []byte("x"),
		messaging.WithHeader(messaging.HeaderLeadID, "lead-1"),
		messaging.WithKey("ignored"),
	)

	m := toNATS(msg)
	assert.Equal(t, "leads.responses.success", m.Subject)
	assert.Equal(t, []byte("x"), m.Data)
	assert.Equal(t, "lead-1", m.Header.Get(messaging.HeaderLeadID))
}

func TestToNATS_NoHeaders(t *testing.T) {
	m := toNATS(messaging.NewMessage("s", nil))
	assert.Nil(t, m.Header)
}

func TestFromNATS(t *testing.T) {
	in := &nats.Msg{Subject: "leads.responses.failed", Data: []byte("y"), Header: nats.Header{}}
	in.Header.Set(messaging.HeaderStatus, "failed")

	out := fromNATS(in)
	assert.Equal(t, "leads.responses.failed", out.Subject)
	assert.Equal(t, []byte("y"), out.Data)
	assert.Equal(t, "failed", out.Metadata[messaging.HeaderStatus])
	assert.False(t, out.Timestamp.IsZero())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, nats.DefaultURL, cfg.URL)
	assert.Equal(t, -1, cfg.MaxReconnects)
	assert.Equal(t, "leadgate", cfg.Name)
}

func TestLeadOutcomesStream_CoversOutcomeSubjects(t *testing.T) {
	assert.Equal(t, []string{messaging.SubjectLeadOutcomesAll}, LeadOutcomesStream.Subjects)
}
