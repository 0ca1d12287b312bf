package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Application is an API client allowed to submit leads.
type Application struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewApplication creates an application with a fresh key pair.
func NewApplication(name string) (*Application, error) {
	now := time.Now().UTC()
	app := &Application{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := app.GenerateKeys(); err != nil {
		return nil, err
	}
	return app, nil
}

// GenerateKeys replaces the client id and secret with new random values.
func (a *Application) GenerateKeys() error {
	id, err := randomHex(16)
	if err != nil {
		return fmt.Errorf("generate client id: %w", err)
	}
	secret, err := randomHex(16)
	if err != nil {
		return fmt.Errorf("generate client secret: %w", err)
	}
	a.ClientID = id
	a.ClientSecret = secret
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
