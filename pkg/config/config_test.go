package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse_KeyValueFormat(t *testing.T) {
	data := []byte(`
# francodb server configuration
port=9000
root_username=root
root_password=s3cret
data_directory=/var/lib/francodb
encryption_enabled=true
encryption_key=abc123
autosave_interval=30s
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.RootUsername != "root" || cfg.RootPassword != "s3cret" {
		t.Errorf("unexpected root credentials: %+v", cfg)
	}
	if cfg.DataDirectory != "/var/lib/francodb" {
		t.Errorf("DataDirectory = %q", cfg.DataDirectory)
	}
	if !cfg.EncryptionEnabled || cfg.EncryptionKey != "abc123" {
		t.Errorf("unexpected encryption settings: %+v", cfg)
	}
	if cfg.AutosaveInterval != 30*time.Second {
		t.Errorf("AutosaveInterval = %v, want 30s", cfg.AutosaveInterval)
	}
}

func TestParse_YAMLFormat(t *testing.T) {
	data := []byte(`
port: 8500
root_username: admin
root_password: hunter2
data_directory: ./data
encryption_enabled: false
autosave_interval: 120
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Port != 8500 || cfg.RootUsername != "admin" {
		t.Errorf("unexpected parse result: %+v", cfg)
	}
	if cfg.AutosaveInterval != 120*time.Second {
		t.Errorf("AutosaveInterval = %v, want 120s", cfg.AutosaveInterval)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Port != 7700 || cfg.DataDirectory != "./data" {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestParse_RejectsEncryptionEnabledWithoutKey(t *testing.T) {
	_, err := Parse([]byte("encryption_enabled=true\n"))
	if err == nil {
		t.Fatal("expected an error when encryption is enabled without a key")
	}
}

func TestParse_RejectsBadPort(t *testing.T) {
	_, err := Parse([]byte("port=not-a-number\n"))
	if err == nil {
		t.Fatal("expected an error for a non-numeric port")
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "francodb.conf")
	content := "port=1234\nroot_username=root\nroot_password=pw\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 1234 {
		t.Errorf("Port = %d, want 1234", cfg.Port)
	}
}
