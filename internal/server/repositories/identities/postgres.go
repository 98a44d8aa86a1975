// Package identities verifies user credentials and resolves identities and
// roles from PostgreSQL.
package identities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/dbx"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the email is unknown, so both failure
// paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("tokenkeeper-dummy-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
})

type PostgresProvider struct {
	db dbx.DBTX
}

func NewPostgresProvider(db dbx.DBTX) *PostgresProvider {
	return &PostgresProvider{db: db}
}

// VerifyCredentials checks password against the stored bcrypt hash of email.
// Unknown email and wrong password both yield common.ErrInvalidCredentials.
func (p *PostgresProvider) VerifyCredentials(ctx context.Context, email, password string) (*models.Identity, error) {
	query :=
		`SELECT id, email, display_name, password_hash FROM users
		 WHERE email = $1
		 `

	var (
		identity models.Identity
		hash     []byte
	)
	err := p.db.QueryRowContext(ctx, query, email).Scan(&identity.ID, &identity.Email, &identity.DisplayName, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, common.ErrInvalidCredentials
	}

	return &identity, nil
}

// FindByID returns the identity with id, or common.ErrorNotFound.
func (p *PostgresProvider) FindByID(ctx context.Context, id string) (*models.Identity, error) {
	query :=
		`SELECT id, email, display_name FROM users
		 WHERE id = $1
		 `

	identity := &models.Identity{}
	err := p.db.QueryRowContext(ctx, query, id).Scan(&identity.ID, &identity.Email, &identity.DisplayName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return identity, nil
}

// Roles returns the sorted, de-duplicated role names of id. A user without
// roles yields an empty slice.
func (p *PostgresProvider) Roles(ctx context.Context, id string) ([]string, error) {
	query :=
		`SELECT role FROM user_roles
		 WHERE user_id = $1
		 `

	rows, err := p.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	roles := make([]string, 0)
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	slices.Sort(roles)
	return slices.Compact(roles), nil
}
