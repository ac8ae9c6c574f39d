package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	apperrors "github.com/lorrc/trusted-invoker/internal/core/errors"
	"github.com/lorrc/trusted-invoker/internal/core/ports"
)

const (
	userExistsQuery = `SELECT EXISTS (SELECT 1 FROM directory_users WHERE id = $1)`

	listAttributesQuery = `
SELECT name, value
FROM directory_user_attributes
WHERE user_id = $1
ORDER BY name, position`

	upsertUserQuery = `
INSERT INTO directory_users (id) VALUES ($1)
ON CONFLICT (id) DO NOTHING`

	deleteAttributeQuery = `DELETE FROM directory_user_attributes WHERE user_id = $1 AND name = $2`

	insertAttributeQuery = `
INSERT INTO directory_user_attributes (user_id, name, position, value)
VALUES ($1, $2, $3, $4)`
)

// UserDirectory stores user profile attributes in PostgreSQL.
type UserDirectory struct {
	pool *pgxpool.Pool
	tx   txRunner
}

var _ ports.UserDirectory = (*UserDirectory)(nil)

func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool, tx: txRunner{pool: pool}}
}

// LookupAttributes returns every attribute of the user keyed by name, values
// in insertion order. Unknown users yield ErrUserNotFound.
func (d *UserDirectory) LookupAttributes(ctx context.Context, userID string) (map[string][]string, error) {
	attrs := make(map[string][]string)

	err := d.tx.withReadOnlyTransaction(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, userExistsQuery, userID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to look up user: %w", err)
		}
		if !exists {
			return apperrors.ErrUserNotFound
		}

		rows, err := tx.Query(ctx, listAttributesQuery, userID)
		if err != nil {
			return fmt.Errorf("failed to list user attributes: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var name, value string
			if err := rows.Scan(&name, &value); err != nil {
				return fmt.Errorf("failed to scan user attribute: %w", err)
			}
			attrs[name] = append(attrs[name], value)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return attrs, nil
}

// UpsertUser registers a user if it does not exist yet.
func (d *UserDirectory) UpsertUser(ctx context.Context, userID string) error {
	if _, err := d.pool.Exec(ctx, upsertUserQuery, userID); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// SetAttribute replaces all values of one attribute for an existing user.
func (d *UserDirectory) SetAttribute(ctx context.Context, userID, name string, values ...string) error {
	return d.tx.withTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteAttributeQuery, userID, name); err != nil {
			return fmt.Errorf("failed to clear attribute %s: %w", name, err)
		}
		for i, value := range values {
			if _, err := tx.Exec(ctx, insertAttributeQuery, userID, name, i, value); err != nil {
				return fmt.Errorf("failed to set attribute %s: %w", name, err)
			}
		}
		return nil
	})
}

// Ping reports whether the directory database is reachable.
func (d *UserDirectory) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}
