package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "TOKENKEEPER_"

// dotenvFiles are loaded, when present, before the environment is read.
// Variables already set in the process environment are never overridden.
var dotenvFiles = []string{".env"}

// parseEnv overlays Config with TOKENKEEPER_* variables. lookup is
// os.LookupEnv in production.
func parseEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, f := range dotenvFiles {
		_ = godotenv.Load(f)
	}

	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(envPrefix + name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = d
		return nil
	}

	str("ENDPOINT_ADDR_GRPC", &cfg.EndpointAddrGRPC)
	str("DATABASE_DSN", &cfg.DatabaseDSN)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("STORAGE_BACKEND", &cfg.StorageBackend)
	str("SECRET_KEY", &cfg.SecretKey)
	str("ISSUER", &cfg.Issuer)
	str("AUDIENCE", &cfg.Audience)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("S3_ROOT_USER", &cfg.S3RootUser)
	str("S3_ROOT_PASSWORD", &cfg.S3RootPassword)
	str("S3_BUCKET", &cfg.S3Bucket)
	str("S3_REGION", &cfg.S3Region)
	str("S3_BASE_ENDPOINT", &cfg.S3BaseEndpoint)

	if err := dur("ACCESS_TOKEN_VALIDITY_DURATION", &cfg.AccessTokenValidityDuration); err != nil {
		return err
	}
	if err := dur("REFRESH_TOKEN_VALIDITY_DURATION", &cfg.RefreshTokenValidityDuration); err != nil {
		return err
	}
	if err := dur("REQUEST_TIMEOUT", &cfg.RequestTimeout); err != nil {
		return err
	}

	if v, ok := lookup(envPrefix + "AUDIT_S3_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sAUDIT_S3_ENABLED: %w", envPrefix, err)
		}
		cfg.AuditS3Enabled = b
	}

	return nil
}
