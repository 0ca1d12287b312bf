// Package repository persists applications, leads and delivery requests.
package repository

import (
	"context"
	"errors"

	"github.com/leadgate/leadgate/gateway/internal/models"
)

var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrApplicationExists   = errors.New("application already exists")
	ErrLeadNotFound        = errors.New("lead not found")
	ErrLeadExists          = errors.New("lead already exists")
	ErrRequestNotFound     = errors.New("request not found")
)

// ApplicationRepository stores API clients.
type ApplicationRepository interface {
	CreateApplication(ctx context.Context, app *models.Application) error
	GetApplicationByClientID(ctx context.Context, clientID string) (*models.Application, error)
	ListApplications(ctx context.Context) ([]*models.Application, error)
	// ReplaceKeys stores app's new client id and secret on the row currently
	// identified by previousClientID.
	ReplaceKeys(ctx context.Context, previousClientID string, app *models.Application) error
}

// LeadRepository stores inbound leads.
type LeadRepository interface {
	// CreateLeads inserts all leads atomically.
	CreateLeads(ctx context.Context, leads ...*models.Lead) error
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	// ListLeads returns an application's leads newest first, and the total count.
	ListLeads(ctx context.Context, applicationID string, limit, offset int) ([]*models.Lead, int, error)
	// DeleteLead removes the lead and its request rows.
	DeleteLead(ctx context.Context, applicationID, id string) error
}

// RequestRepository stores per-(lead, driver) delivery status.
type RequestRepository interface {
	// UpsertRequest inserts or overwrites the row keyed by (LeadID, System).
	// The last write wins; CreatedAt of an existing row is preserved.
	UpsertRequest(ctx context.Context, req *models.Request) error
	GetRequest(ctx context.Context, leadID, system string) (*models.Request, error)
	// ListRequests returns matching rows, most recently updated first, and the total count.
	ListRequests(ctx context.Context, filter models.RequestFilter) ([]*models.Request, int, error)
}

// Repository is the full persistence surface of the gateway.
type Repository interface {
	ApplicationRepository
	LeadRepository
	RequestRepository
	Ping(ctx context.Context) error
	Close()
}
