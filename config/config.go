/*
Package config loads the server configuration.

PURPOSE:
  One TOML file drives the whole service: listen address, database path,
  CORS origins, the evidence submission policy, and (for development) the
  in-process token ledger's seed balances. Flags in cmd/server can
  override the listen port and database path.

EXAMPLE (escrow.toml):
  [server]
  host = "127.0.0.1"
  port = 8080

  [database]
  path = "./data/escrow.db"

  [escrow]
  evidence_policy = "open"   # or "parties"
  custodian = "escrow-vault"

  [token]
  # dev-only seed balances, smallest unit
  [token.balances]
  "payer-demo" = "1000000"
*/
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	CORS     CORSConfig     `toml:"cors"`
	Escrow   EscrowConfig   `toml:"escrow"`
	Token    TokenConfig    `toml:"token"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

type EscrowConfig struct {
	// EvidencePolicy is "open" (any caller may submit evidence) or
	// "parties" (payer or payee only).
	EvidencePolicy string `toml:"evidence_policy"`

	// Custodian is the value store account the ledger holds funds in.
	Custodian string `toml:"custodian"`
}

type TokenConfig struct {
	// Balances seeds the in-process token ledger. Dev/demo only; ignored
	// when a real value store client is wired in.
	Balances map[string]string `toml:"balances"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Server:   ServerConfig{Host: "127.0.0.1", Port: 8080},
		Database: DatabaseConfig{Path: "escrow.db"},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Escrow: EscrowConfig{
			EvidencePolicy: "open",
			Custodian:      "escrow-vault",
		},
	}
}

// Load reads a TOML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Escrow.Custodian == "" {
		return Config{}, fmt.Errorf("escrow custodian account is required")
	}
	return cfg, nil
}
