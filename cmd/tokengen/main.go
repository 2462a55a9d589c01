// Command tokengen mints a bearer token for an address, signed with the
// server's JWT settings.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	jwttoken "giveroute/internal/jwt_token"
	"giveroute/internal/platform/config"
	"giveroute/pkg/domain"
)

func main() {
	var (
		address = pflag.String("address", "", "base58 address the token authenticates (required)")
		envFile = pflag.String("env-file", ".env", "optional dotenv file")
		ttl     = pflag.Duration("ttl", time.Hour, "token lifetime")
	)
	pflag.Parse()

	if err := run(*address, *envFile, *ttl); err != nil {
		fmt.Fprintln(os.Stderr, "tokengen:", err)
		os.Exit(1)
	}
}

func run(address, envFile string, ttl time.Duration) error {
	caller, err := domain.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("--address: %w", err)
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	token, err := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience).
		GenerateCallerToken(caller, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
