package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/flagx"
)

var serverFlags = []string{
	"-a", "-d", "-s", "-t", "-r", "-u", "-p", "-b", "-g", "-e",
	"-i", "-n", "-storage", "-redis", "-log", "-timeout", "-audit-s3",
}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string    gRPC bind address (e.g., ":50051")
//	-d string    PostgreSQL DSN
//	-s string    access token HMAC secret key
//	-i string    access token issuer
//	-n string    access token audience
//	-t int       access token validity, minutes
//	-r int       refresh token validity, minutes
//	-storage     refresh token storage backend (postgres, redis, memory)
//	-redis       Redis address
//	-log         log format (slog, zap)
//	-timeout int request timeout, seconds
//	-audit-s3    archive audit events to S3
//	-u, -p, -b, -g, -e  S3 user, password, bucket, region, base endpoint
//
// Duration flags are accepted as integers and converted to time.Duration.
func parseFlags(config *Config, rawArgs []string) error {
	args := flagx.FilterArgs(rawArgs, serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.Issuer, "i", config.Issuer, "access token issuer")
	fs.StringVar(&config.Audience, "n", config.Audience, "access token audience")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")
	requestTimeout := fs.Int("timeout", int(config.RequestTimeout.Seconds()), "request timeout (in seconds)")

	fs.StringVar(&config.StorageBackend, "storage", config.StorageBackend, "refresh token storage backend")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.StringVar(&config.LogFormat, "log", config.LogFormat, "log format")
	fs.BoolVar(&config.AuditS3Enabled, "audit-s3", config.AuditS3Enabled, "archive audit events to S3")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	config.RequestTimeout = time.Duration(*requestTimeout) * time.Second
	return nil
}
