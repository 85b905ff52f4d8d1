package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gartstein/certify/internal/certification/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSample(t *testing.T) {
	cfg, err := Load("config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "certify", cfg.Database().DBName)

	dir, err := cfg.Directory()
	require.NoError(t, err)
	for _, s := range models.Stages {
		assert.Len(t, dir.ByRole(s.Role()), 1, "one approver per stage")
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
HTTP_PORT: 9000
DB_DRIVER: sqlite
DB_PATH: /tmp/certify.db
JWT_SECRET: from-file
`)
	t.Setenv("CERTIFY_JWT_SECRET", "from-env")
	t.Setenv("CERTIFY_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CERTIFY_TOKEN_TTL", "90m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, 50051, cfg.GRPCPort, "defaults fill missing keys")
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 90*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "sqlite", cfg.Database().Driver)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "JWT_SECRET: [unterminated"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "DB_NAME: x\n"))
	assert.ErrorContains(t, err, "JWT_SECRET")

	_, err = Load(writeConfig(t, "JWT_SECRET: s\nDB_DRIVER: oracle\n"))
	assert.ErrorContains(t, err, "DB_DRIVER")
}
