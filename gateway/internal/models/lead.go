package models

import (
	"slices"
	"time"
)

// Lead is an inbound prospect owned by the application that submitted it.
type Lead struct {
	ID              string    `json:"id"`
	ApplicationID   string    `json:"application_id"`
	Data            Payload   `json:"data"`
	ExcludedDrivers []string  `json:"excluded_drivers,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Excludes reports whether the lead opted out of delivery to driver.
func (l *Lead) Excludes(driver string) bool {
	return slices.Contains(l.ExcludedDrivers, driver)
}

// Request is the delivery record for one (lead, driver) pair.
type Request struct {
	LeadID    string    `json:"lead_id"`
	System    string    `json:"system"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RequestFilter narrows a request listing. Empty fields match everything.
type RequestFilter struct {
	ApplicationID string
	LeadID        string
	System        string
	Status        Status
	Limit         int
	Offset        int
}

// Outcome is the wire form of a delivery result relayed to brokers and the live feed.
type Outcome struct {
	LeadID     string    `json:"lead_id"`
	System     string    `json:"system"`
	Status     Status    `json:"status"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}
