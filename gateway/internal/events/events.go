// Package events is the in-process publish/subscribe bus that carries lead
// ingestion events to dispatch listeners and outcomes to the status store.
package events

import (
	"time"

	"github.com/leadgate/leadgate/gateway/internal/models"
)

// Type names an event kind. Subscribers register per type.
type Type string

const (
	TypeNewLead         Type = "lead.new"
	TypeNewLeadPack     Type = "lead.pack"
	TypeRequestResponse Type = "lead.response"
)

// NewLead announces a single stored lead.
type NewLead struct {
	ID   string
	Data models.Payload
}

// NewLeadPack announces a batch. Lead order is significant.
type NewLeadPack struct {
	Leads []*models.Lead
}

// RequestResponse closes the delivery loop for one (lead, driver) pair.
// Response is either a string or a structured value.
type RequestResponse struct {
	ID         string
	Response   any
	System     string
	Status     models.Status
	OccurredAt time.Time
}
