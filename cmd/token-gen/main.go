// Command token-gen mints a short-lived RS256 test token carrying a "sub"
// (group id) claim, used for local testing against the notifications-service.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	flags "github.com/jessevdk/go-flags"
)

// Config is token-gen's flag configuration.
type Config struct {
	PrivateKeyFile string        `long:"private-key-file" required:"true" description:"PEM-encoded RS256 private key"`
	Subject        string        `long:"sub" required:"true" description:"group id to embed as the sub claim"`
	TTL            time.Duration `long:"ttl" default:"24h" description:"token lifetime"`
}

func run(cfg *Config) (string, error) {
	raw, err := os.ReadFile(cfg.PrivateKeyFile)
	if err != nil {
		return "", fmt.Errorf("reading private key file: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(raw)
	if err != nil {
		return "", fmt.Errorf("parsing private key: %w", err)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   cfg.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

func main() {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
	token, err := run(&cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
