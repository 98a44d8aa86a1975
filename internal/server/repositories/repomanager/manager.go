// Package repomanager vends repository implementations for the configured
// storage backend and runs schema migrations.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/dbx"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/identities"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	"github.com/redis/go-redis/v9"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Identities(db dbx.DBTX) *identities.PostgresProvider
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}

// New returns the manager for backend. Identities always live in
// PostgreSQL; only refresh tokens follow the backend. redisClient is only
// used for the redis backend.
func New(backend string, redisClient redis.UniversalClient) (RepositoryManager, error) {
	switch backend {
	case config.StoragePostgres:
		return &PostgresRepositoryManager{}, nil
	case config.StorageRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("%w: redis backend needs a client", common.ErrMisconfiguration)
		}
		return &RedisRepositoryManager{tokens: refreshtokens.NewRedisRepository(redisClient, "")}, nil
	case config.StorageMemory:
		return &MemoryRepositoryManager{tokens: refreshtokens.NewMemoryRepository()}, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", common.ErrMisconfiguration, backend)
	}
}
