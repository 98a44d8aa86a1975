package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/tokenkeeper/internal/dbx"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/identities"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager keeps everything in PostgreSQL.
type PostgresRepositoryManager struct{}

// Identities returns an identity provider bound to the provided DBTX.
func (m *PostgresRepositoryManager) Identities(db dbx.DBTX) *identities.PostgresProvider {
	return identities.NewPostgresProvider(db)
}

// RefreshTokens returns a refreshtokens.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// RedisRepositoryManager keeps refresh tokens in Redis.
type RedisRepositoryManager struct {
	PostgresRepositoryManager
	tokens *refreshtokens.RedisRepository
}

func (m *RedisRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.tokens
}

// MemoryRepositoryManager keeps refresh tokens in process memory. Every call
// to RefreshTokens returns the same store.
type MemoryRepositoryManager struct {
	PostgresRepositoryManager
	tokens *refreshtokens.MemoryRepository
}

func (m *MemoryRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.tokens
}
