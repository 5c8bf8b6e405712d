package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearhold/escrow-engine/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "escrow.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "escrow.db", cfg.Database.Path)
	assert.Equal(t, "open", cfg.Escrow.EvidencePolicy)
	assert.Equal(t, "escrow-vault", cfg.Escrow.Custodian)
	assert.NotEmpty(t, cfg.CORS.AllowedOrigins)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "0.0.0.0"
port = 9090

[database]
path = "/var/lib/escrow/escrow.db"

[escrow]
evidence_policy = "parties"
custodian = "vault-main"

[token.balances]
"payer-demo" = "1000000"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/var/lib/escrow/escrow.db", cfg.Database.Path)
	assert.Equal(t, "parties", cfg.Escrow.EvidencePolicy)
	assert.Equal(t, "vault-main", cfg.Escrow.Custodian)
	assert.Equal(t, "1000000", cfg.Token.Balances["payer-demo"])
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 3000
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "unset fields keep defaults")
	assert.Equal(t, "escrow-vault", cfg.Escrow.Custodian)
}

func TestLoad_InvalidPort_Fails(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 70000
`)

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_EmptyCustodian_Fails(t *testing.T) {
	path := writeConfig(t, `
[escrow]
custodian = ""
`)

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile_Fails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
