package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
env: dev
database:
  host: db.internal
  user: tasktimer
  password: ${TT_TEST_DB_PASSWORD}
  dbname: tasktimer
  tx_timeout: 3s
http:
  enabled: true
auth:
  jwt_signing_key: ${TT_TEST_JWT_KEY}
`

func TestParseExpandsPlaceholders(t *testing.T) {
	t.Setenv("TT_TEST_DB_PASSWORD", "s3cret")
	t.Setenv("TT_TEST_JWT_KEY", "signing-key")

	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Database.Password != "s3cret" {
		t.Errorf("password = %q, want s3cret", cfg.Database.Password)
	}
	if cfg.Auth.JWTSigningKey != "signing-key" {
		t.Errorf("jwt key = %q, want signing-key", cfg.Auth.JWTSigningKey)
	}
	if cfg.Database.TxTimeout != 3*time.Second {
		t.Errorf("tx timeout = %v, want 3s", cfg.Database.TxTimeout)
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	t.Setenv("TT_TEST_JWT_KEY", "k")

	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("port = %d, want 5432", cfg.Database.Port)
	}
	if cfg.HTTP.Port != "8080" {
		t.Errorf("http port = %q, want 8080", cfg.HTTP.Port)
	}
	if cfg.Database.LockTimeout != 5*time.Second {
		t.Errorf("lock timeout = %v, want 5s", cfg.Database.LockTimeout)
	}
	if cfg.Notify.Buffer != 64 {
		t.Errorf("notify buffer = %d, want 64", cfg.Notify.Buffer)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("TT_TEST_JWT_KEY", "k")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_HOST", "override.internal")
	t.Setenv("DB_LOCK_TIMEOUT", "750ms")
	t.Setenv("NOTIFY_BUFFER", "8")

	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Database.LockTimeout != 750*time.Millisecond {
		t.Errorf("lock timeout = %v, want 750ms", cfg.Database.LockTimeout)
	}
	if cfg.Notify.Buffer != 8 {
		t.Errorf("notify buffer = %d, want 8", cfg.Notify.Buffer)
	}
	if cfg.Database.User != "tasktimer" || cfg.Database.TxTimeout != 3*time.Second {
		t.Errorf("fields without an override changed: user %q, tx timeout %v", cfg.Database.User, cfg.Database.TxTimeout)
	}
	if cfg.Database.Port != 6543 {
		t.Errorf("port = %d, want 6543", cfg.Database.Port)
	}
	if cfg.Database.Host != "override.internal" {
		t.Errorf("host = %q, want override.internal", cfg.Database.Host)
	}
}

func TestParseUnresolvedPlaceholderIsEmpty(t *testing.T) {
	t.Setenv("TT_TEST_JWT_KEY", "")

	_, err := Parse([]byte(sampleConfig))
	if err == nil {
		t.Fatal("expected error for missing jwt signing key")
	}
	if !strings.Contains(err.Error(), "jwt_signing_key") {
		t.Errorf("error = %v, want mention of jwt_signing_key", err)
	}
}

func TestValidateMemoryDriverNeedsNoHost(t *testing.T) {
	cfg := &Config{
		Env:      EnvLocal,
		Database: DatabaseConfig{Driver: DriverMemory},
		HTTP:     HTTPConfig{Enabled: true},
		Auth:     AuthConfig{JWTSigningKey: "k"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRequiresAFrontEnd(t *testing.T) {
	cfg := &Config{Env: EnvLocal, Database: DatabaseConfig{Driver: DriverMemory}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when neither discord nor http is enabled")
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("TT_TEST_JWT_KEY", "k")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Env != EnvDev {
		t.Errorf("env = %q, want dev", cfg.Env)
	}
}
