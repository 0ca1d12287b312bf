package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadgate/leadgate/common/logging"
	"github.com/leadgate/leadgate/gateway/internal/audit"
	"github.com/leadgate/leadgate/gateway/internal/repository"
)

func newApplicationService() (*ApplicationService, *repository.InMemoryRepository, *audit.Logger) {
	repo := repository.NewInMemoryRepository()
	auditLog := audit.NewLogger("audit-key", logging.Discard())
	return NewApplicationService(repo, auditLog), repo, auditLog
}

func TestApplicationService_Create(t *testing.T) {
	svc, repo, auditLog := newApplicationService()
	ctx := context.Background()

	app, err := svc.Create(ctx, "  landing page ", Actor{Name: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "landing page", app.Name)
	assert.Len(t, app.ClientID, 32)
	assert.Len(t, app.ClientSecret, 32)

	stored, err := repo.GetApplicationByClientID(ctx, app.ClientID)
	require.NoError(t, err)
	assert.Equal(t, app.ClientSecret, stored.ClientSecret)

	_, err = svc.Create(ctx, "   ", Actor{Name: "admin"})
	assert.ErrorIs(t, err, ErrInvalidName)

	entries := auditLog.Recent()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionApplicationCreate, entries[0].Action)
	assert.Equal(t, audit.ResultSuccess, entries[0].Result)
}

func TestApplicationService_Rotate(t *testing.T) {
	svc, repo, auditLog := newApplicationService()
	ctx := context.Background()

	app, err := svc.Create(ctx, "landing", Actor{Name: "admin"})
	require.NoError(t, err)
	oldID, oldSecret := app.ClientID, app.ClientSecret

	rotated, err := svc.Rotate(ctx, oldID, Actor{Name: "admin", IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, app.ID, rotated.ID)
	assert.NotEqual(t, oldID, rotated.ClientID)
	assert.NotEqual(t, oldSecret, rotated.ClientSecret)

	_, err = repo.GetApplicationByClientID(ctx, oldID)
	assert.ErrorIs(t, err, repository.ErrApplicationNotFound)

	_, err = svc.Rotate(ctx, "unknown", Actor{Name: "admin"})
	assert.ErrorIs(t, err, repository.ErrApplicationNotFound)

	entries := auditLog.Recent()
	require.Len(t, entries, 3)
	assert.Equal(t, audit.ResultFailure, entries[2].Result)
}

func TestApplicationService_ListRedactsSecrets(t *testing.T) {
	svc, _, _ := newApplicationService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "a", Actor{})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "b", Actor{})
	require.NoError(t, err)

	apps, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	for _, a := range apps {
		assert.Empty(t, a.ClientSecret)
		assert.NotEmpty(t, a.ClientID)
	}
}
