package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.MaxFileBytes() != 50*1024*1024 {
		t.Errorf("MaxFileBytes = %d", cfg.MaxFileBytes())
	}
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gradebook.yaml")
	os.WriteFile(path, []byte(`
db:
  driver: postgres
  dsn: "postgres://u:p@localhost/gradebook?sslmode=disable"
extract:
  max_file_mb: 20
uploads_dir: /srv/uploads
queue:
  visibility: 2m
  poll_interval: 250ms
  max_attempts: 5
log:
  level: debug
  format: json
accounts:
  enabled: false
  bcrypt_cost: 12
`), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DB.Driver != "postgres" || cfg.Extract.MaxFileMB != 20 || cfg.UploadsDir != "/srv/uploads" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Queue.Visibility != 2*time.Minute || cfg.Queue.PollInterval != 250*time.Millisecond || cfg.Queue.MaxAttempts != 5 {
		t.Errorf("queue = %+v", cfg.Queue)
	}
	if cfg.Accounts.Enabled || cfg.Accounts.BcryptCost != 12 {
		t.Errorf("accounts = %+v", cfg.Accounts)
	}
	if cfg.SlogLevel().String() != "DEBUG" {
		t.Errorf("level = %v", cfg.SlogLevel())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GRADEBOOK_DB_DSN", "/tmp/override.db")
	t.Setenv("GRADEBOOK_QUEUE_MAX_ATTEMPTS", "7")
	t.Setenv("GRADEBOOK_QUEUE_VISIBILITY", "90s")
	t.Setenv("GRADEBOOK_ACCOUNTS_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DB.DSN != "/tmp/override.db" || cfg.Queue.MaxAttempts != 7 || cfg.Queue.Visibility != 90*time.Second || cfg.Accounts.Enabled {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	os.WriteFile(env, []byte("GRADEBOOK_UPLOADS_DIR=/from/dotenv\n"), 0644)
	t.Setenv("GRADEBOOK_UPLOADS_DIR", "") // restored after the test
	os.Unsetenv("GRADEBOOK_UPLOADS_DIR")

	cfg, err := Load("", env, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UploadsDir != "/from/dotenv" {
		t.Errorf("UploadsDir = %q", cfg.UploadsDir)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"driver":   "db:\n  driver: mysql\n",
		"size":     "extract:\n  max_file_mb: 0\n",
		"level":    "log:\n  level: loud\n",
		"attempts": "queue:\n  max_attempts: 0\n",
	}
	for name, body := range tests {
		path := filepath.Join(t.TempDir(), name+".yaml")
		os.WriteFile(path, []byte(body), 0644)
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("GRADEBOOK_MAX_FILE_MB", "lots")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "GRADEBOOK_MAX_FILE_MB") {
		t.Fatalf("error = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/gradebook.yaml"); err == nil {
		t.Fatal("expected read error")
	}
}
