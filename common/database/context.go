// Package database holds connection and timeout helpers for the Postgres-backed repositories.
package database

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Standard timeout durations for database operations.
const (
	DefaultQueryTimeout = 5 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

// QueryContext derives a context bounded by DefaultQueryTimeout, for reads.
func QueryContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultQueryTimeout)
}

// WriteContext derives a context bounded by DefaultWriteTimeout, for INSERT/UPDATE/DELETE.
func WriteContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultWriteTimeout)
}

// PostgresURL builds a postgres:// connection string. User and password are escaped.
func PostgresURL(host string, port int, name, user, password, sslmode string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     fmt.Sprintf("%s:%d", host, port),
		Path:     "/" + name,
		RawQuery: "sslmode=" + url.QueryEscape(sslmode),
	}
	return u.String()
}
