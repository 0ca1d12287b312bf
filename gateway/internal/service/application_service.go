package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/leadgate/leadgate/gateway/internal/audit"
	"github.com/leadgate/leadgate/gateway/internal/models"
	"github.com/leadgate/leadgate/gateway/internal/repository"
)

var ErrInvalidName = errors.New("application name is required")

// Actor identifies who performed an administrative action.
type Actor struct {
	Name      string
	IPAddress string
}

type ApplicationService struct {
	repo     repository.ApplicationRepository
	auditLog *audit.Logger
}

func NewApplicationService(repo repository.ApplicationRepository, auditLog *audit.Logger) *ApplicationService {
	return &ApplicationService{repo: repo, auditLog: auditLog}
}

// Create registers a new application with a fresh key pair.
func (s *ApplicationService) Create(ctx context.Context, name string, actor Actor) (*models.Application, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}

	app, err := models.NewApplication(name)
	if err != nil {
		s.audit(ctx, actor, audit.ActionApplicationCreate, "", err)
		return nil, err
	}
	if err := s.repo.CreateApplication(ctx, app); err != nil {
		s.audit(ctx, actor, audit.ActionApplicationCreate, app.ID, err)
		return nil, fmt.Errorf("create application: %w", err)
	}
	s.audit(ctx, actor, audit.ActionApplicationCreate, app.ID, nil)
	return app, nil
}

// Rotate issues a new client id and secret. The old pair stops working immediately.
func (s *ApplicationService) Rotate(ctx context.Context, clientID string, actor Actor) (*models.Application, error) {
	app, err := s.repo.GetApplicationByClientID(ctx, clientID)
	if err != nil {
		s.audit(ctx, actor, audit.ActionApplicationRotate, clientID, err)
		return nil, err
	}
	previous := app.ClientID
	if err := app.GenerateKeys(); err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceKeys(ctx, previous, app); err != nil {
		s.audit(ctx, actor, audit.ActionApplicationRotate, app.ID, err)
		return nil, fmt.Errorf("rotate keys: %w", err)
	}
	s.audit(ctx, actor, audit.ActionApplicationRotate, app.ID, nil)
	return app, nil
}

// List returns all applications with secrets redacted.
func (s *ApplicationService) List(ctx context.Context) ([]*models.Application, error) {
	apps, err := s.repo.ListApplications(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range apps {
		a.ClientSecret = ""
	}
	return apps, nil
}

func (s *ApplicationService) audit(ctx context.Context, actor Actor, action, resourceID string, err error) {
	if s.auditLog == nil {
		return
	}
	result, reason := audit.ResultSuccess, ""
	if err != nil {
		result, reason = audit.ResultFailure, err.Error()
	}
	s.auditLog.Log(ctx, actor.Name, actor.IPAddress, action, "application", resourceID, result, reason)
}
