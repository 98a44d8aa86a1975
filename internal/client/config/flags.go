package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/flagx"
)

var clientFlags = []string{"-a", "-i", "-t"}

// parseFlags populates selected Config fields from command-line flags.
// Only the flags listed in clientFlags are considered.
func parseFlags(cfg *Config, rawArgs []string) error {
	args := flagx.FilterArgs(rawArgs, clientFlags)

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second

	return nil
}
