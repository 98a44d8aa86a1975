package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/dbx"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

// PostgresRepository stores refresh tokens over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx). When bound to a *sql.DB, Rotate opens its own
// transaction; when bound to a *sql.Tx it joins the caller's.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `token, user_id, created_on, expires_on, created_by_ip,
		revoked_on, revoked_by_ip, revoked_reason, replaced_by_token`

// Insert stores a new refresh token row.
func (r *PostgresRepository) Insert(ctx context.Context, t *models.RefreshToken) error {
	return insert(ctx, r.db, t)
}

func insert(ctx context.Context, db dbx.DBTX, t *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token, user_id, created_on, expires_on, created_by_ip)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := db.ExecContext(ctx, query, t.Token, t.UserID, t.CreatedOn, t.ExpiresOn, t.CreatedByIP); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrConflict
		}
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

// FindByToken returns the row for the given token string.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE token = $1
	`
	t, err := scanToken(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// FindByUser returns all rows of userID, newest first.
func (r *PostgresRepository) FindByUser(ctx context.Context, userID string) ([]models.RefreshToken, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE user_id = $1
		ORDER BY created_on DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]models.RefreshToken, 0)
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// Update writes the revocation fields of t, provided the stored row is
// still unrevoked.
func (r *PostgresRepository) Update(ctx context.Context, t *models.RefreshToken) error {
	return r.revoke(ctx, r.db, t)
}

// Rotate revokes old and inserts next inside one transaction.
func (r *PostgresRepository) Rotate(ctx context.Context, old, next *models.RefreshToken) error {
	fn := func(ctx context.Context, tx dbx.DBTX) error {
		if err := r.revoke(ctx, tx, old); err != nil {
			return err
		}
		return insert(ctx, tx, next)
	}

	if b, ok := r.db.(dbx.TxBeginner); ok {
		return dbx.WithTx(ctx, b, nil, fn)
	}
	return fn(ctx, r.db)
}

func (r *PostgresRepository) revoke(ctx context.Context, db dbx.DBTX, t *models.RefreshToken) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_on = $2, revoked_by_ip = $3, revoked_reason = $4, replaced_by_token = $5
		WHERE token = $1 AND revoked_on IS NULL
	`
	res, err := db.ExecContext(ctx, query, t.Token, t.RevokedOn, t.RevokedByIP, t.RevokedReason, t.ReplacedByToken)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE token = $1)`, t.Token).Scan(&exists)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if !exists {
		return common.ErrorNotFound
	}
	return common.ErrConflict
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(s scanner) (*models.RefreshToken, error) {
	var (
		t         models.RefreshToken
		revokedOn sql.NullTime
	)
	err := s.Scan(&t.Token, &t.UserID, &t.CreatedOn, &t.ExpiresOn, &t.CreatedByIP,
		&revokedOn, &t.RevokedByIP, &t.RevokedReason, &t.ReplacedByToken)
	if err != nil {
		return nil, err
	}
	if revokedOn.Valid {
		on := revokedOn.Time
		t.RevokedOn = &on
	}
	return &t, nil
}
