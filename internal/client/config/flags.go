package config

import (
	"flag"
	"io"
	"time"

	"github.com/bily-amin/habitica/internal/flagx"
)

// parseFlags populates selected Config fields from global command-line
// flags. Subcommand flags are filtered out with flagx.FilterArgs.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-token", "-timeout"})

	fs := flag.NewFlagSet("challengectl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port of the challenge server")
	fs.StringVar(&cfg.AccessToken, "token", cfg.AccessToken, "access token")
	timeout := fs.Int("timeout", int(cfg.CallTimeout.Seconds()), "per-call timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.CallTimeout = time.Duration(*timeout) * time.Second
	return nil
}
