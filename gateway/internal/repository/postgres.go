package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leadgate/leadgate/common/database"
	"github.com/leadgate/leadgate/gateway/internal/models"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// =============================================================================
// APPLICATIONS
// =============================================================================

func (r *PostgresRepository) CreateApplication(ctx context.Context, app *models.Application) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		INSERT INTO applications (id, name, client_id, client_secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		app.ID, app.Name, app.ClientID, app.ClientSecret, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrApplicationExists
		}
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetApplicationByClientID(ctx context.Context, clientID string) (*models.Application, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT id, name, client_id, client_secret, created_at, updated_at
		FROM applications
		WHERE client_id = $1
	`
	var app models.Application
	err := r.pool.QueryRow(ctx, query, clientID).Scan(
		&app.ID, &app.Name, &app.ClientID, &app.ClientSecret, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return &app, nil
}

func (r *PostgresRepository) ListApplications(ctx context.Context) ([]*models.Application, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, client_id, client_secret, created_at, updated_at
		FROM applications
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		var app models.Application
		if err := rows.Scan(&app.ID, &app.Name, &app.ClientID, &app.ClientSecret, &app.CreatedAt, &app.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, &app)
	}
	return apps, rows.Err()
}

func (r *PostgresRepository) ReplaceKeys(ctx context.Context, previousClientID string, app *models.Application) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		UPDATE applications
		SET client_id = $2, client_secret = $3, updated_at = $4
		WHERE client_id = $1
	`, previousClientID, app.ClientID, app.ClientSecret, app.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrApplicationExists
		}
		return fmt.Errorf("failed to replace application keys: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

// =============================================================================
// LEADS
// =============================================================================

func (r *PostgresRepository) CreateLeads(ctx context.Context, leads ...*models.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, l := range leads {
		data, err := json.Marshal(l.Data)
		if err != nil {
			return fmt.Errorf("failed to encode lead %s: %w", l.ID, err)
		}
		excluded := l.ExcludedDrivers
		if excluded == nil {
			excluded = []string{}
		}
		batch.Queue(`
			INSERT INTO leads (id, application_id, data, excluded_drivers, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, l.ID, l.ApplicationID, string(data), excluded, l.CreatedAt)
	}

	results := tx.SendBatch(ctx, batch)
	for range leads {
		if _, err := results.Exec(); err != nil {
			results.Close()
			if isUniqueViolation(err) {
				return ErrLeadExists
			}
			return fmt.Errorf("failed to create lead: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to create leads: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit leads: %w", err)
	}
	return nil
}

func scanLead(row pgx.Row) (*models.Lead, error) {
	var (
		l    models.Lead
		data string
	)
	if err := row.Scan(&l.ID, &l.ApplicationID, &data, &l.ExcludedDrivers, &l.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &l.Data); err != nil {
		return nil, fmt.Errorf("decode lead %s: %w", l.ID, err)
	}
	return &l, nil
}

func (r *PostgresRepository) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	l, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT id, application_id, data::text, excluded_drivers, created_at
		FROM leads
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) ListLeads(ctx context.Context, applicationID string, limit, offset int) ([]*models.Lead, int, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM leads WHERE application_id = $1`, applicationID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count leads: %w", err)
	}

	query := `
		SELECT id, application_id, data::text, excluded_drivers, created_at
		FROM leads
		WHERE application_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2
	`
	args := []any{applicationID, offset}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, total, rows.Err()
}

func (r *PostgresRepository) DeleteLead(ctx context.Context, applicationID, id string) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `DELETE FROM leads WHERE id = $1 AND application_id = $2`, id, applicationID)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM requests WHERE lead_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete lead requests: %w", err)
	}
	return tx.Commit(ctx)
}

// =============================================================================
// REQUESTS
// =============================================================================

func (r *PostgresRepository) UpsertRequest(ctx context.Context, req *models.Request) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO requests (lead_id, system, status, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (lead_id, system) DO UPDATE
		SET status = EXCLUDED.status,
		    message = EXCLUDED.message,
		    updated_at = EXCLUDED.updated_at
	`, req.LeadID, req.System, string(req.Status), req.Message, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert request: %w", err)
	}
	return nil
}

func scanRequest(row pgx.Row) (*models.Request, error) {
	var (
		req    models.Request
		status string
	)
	if err := row.Scan(&req.LeadID, &req.System, &status, &req.Message, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return nil, err
	}
	req.Status = models.Status(status)
	return &req, nil
}

func (r *PostgresRepository) GetRequest(ctx context.Context, leadID, system string) (*models.Request, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	req, err := scanRequest(r.pool.QueryRow(ctx, `
		SELECT lead_id, system, status, message, created_at, updated_at
		FROM requests
		WHERE lead_id = $1 AND system = $2
	`, leadID, system))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

func (r *PostgresRepository) ListRequests(ctx context.Context, f models.RequestFilter) ([]*models.Request, int, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	from := "requests r"
	if f.ApplicationID != "" {
		from += " JOIN leads l ON l.id = r.lead_id"
		add("l.application_id = ?", f.ApplicationID)
	}
	if f.LeadID != "" {
		add("r.lead_id = ?", f.LeadID)
	}
	if f.System != "" {
		add("r.system = ?", f.System)
	}
	if f.Status != "" {
		add("r.status = ?", string(f.Status))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM "+from+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	query := "SELECT r.lead_id, r.system, r.status, r.message, r.created_at, r.updated_at FROM " +
		from + where + " ORDER BY r.updated_at DESC, r.lead_id, r.system"
	args = append(args, f.Offset)
	query += " OFFSET $" + strconv.Itoa(len(args))
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var out []*models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan request: %w", err)
		}
		out = append(out, req)
	}
	return out, total, rows.Err()
}

var _ Repository = (*PostgresRepository)(nil)
