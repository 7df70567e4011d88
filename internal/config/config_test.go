package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
domain: example.net
store_dir: /srv/projects
history_db: /srv/history.db
allowed_users: [alice, bob]
webhook:
  secret: a-very-long-webhook-secret-string-here
  host: 0.0.0.0
  port: 8080
  expose_output: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Domain != "example.net" {
		t.Errorf("Domain = %q, expected example.net", cfg.Domain)
	}
	if cfg.StoreDir != "/srv/projects" {
		t.Errorf("StoreDir = %q, expected /srv/projects", cfg.StoreDir)
	}
	if len(cfg.AllowedUsers) != 2 || cfg.AllowedUsers[0] != "alice" {
		t.Errorf("AllowedUsers = %v, expected [alice bob]", cfg.AllowedUsers)
	}
	if cfg.Webhook.Port != 8080 || !cfg.Webhook.ExposeOutput {
		t.Errorf("Webhook = %+v, expected port 8080 with exposed output", cfg.Webhook)
	}
}

func TestLoad_DefaultsFillGaps(t *testing.T) {
	path := writeConfig(t, "store_dir: /srv/projects\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Domain != DefaultDomain {
		t.Errorf("Domain = %q, expected default %q", cfg.Domain, DefaultDomain)
	}
	if cfg.HistoryDB != DefaultHistoryDB {
		t.Errorf("HistoryDB = %q, expected default %q", cfg.HistoryDB, DefaultHistoryDB)
	}
	if len(cfg.AllowedUsers) != len(DefaultAllowedUsers) {
		t.Errorf("AllowedUsers = %v, expected defaults %v", cfg.AllowedUsers, DefaultAllowedUsers)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "domain: [unclosed\n")

	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoad_EmptyDomainRejected(t *testing.T) {
	path := writeConfig(t, "domain: \"\"\n")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "domain") {
		t.Errorf("Expected domain validation error, got: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Domain != "snackbag.net" {
		t.Errorf("Default domain = %q, expected snackbag.net", cfg.Domain)
	}
	if cfg.StoreDir != "/etc/projects" {
		t.Errorf("Default store dir = %q, expected /etc/projects", cfg.StoreDir)
	}
	if len(cfg.AllowedUsers) != 2 {
		t.Errorf("Default allowed users = %v", cfg.AllowedUsers)
	}
}

func TestValidateWebhook(t *testing.T) {
	cfg := Default()

	if err := cfg.ValidateWebhook(); err == nil {
		t.Error("Expected error for missing webhook secret")
	}

	cfg.Webhook.Secret = "short"
	if err := cfg.ValidateWebhook(); err == nil {
		t.Error("Expected error for short webhook secret")
	}

	cfg.Webhook.Secret = strings.Repeat("x", MinWebhookSecretLength)
	if err := cfg.ValidateWebhook(); err != nil {
		t.Errorf("Expected valid webhook config, got: %v", err)
	}
}
