package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		ListenAddr: ":9090",
		JWTSecret:  "topsecret",
		BaseDir:    "/home/user/.local/share/capsule",
		LogDir:     "/home/user/.local/share/capsule/log",
		Database:   DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/capsule/db"},
		Vault: VaultConfig{
			Type:     "s3",
			S3Bucket: "capsules",
			S3Prefix: "prod",
			S3Region: "eu-west-1",
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.ListenAddr != original.ListenAddr {
		t.Errorf("ListenAddr = %q, want %q", got.ListenAddr, original.ListenAddr)
	}
	if got.JWTSecret != original.JWTSecret {
		t.Errorf("JWTSecret = %q, want %q", got.JWTSecret, original.JWTSecret)
	}
	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if got.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", got.Database.Type, "sqlite")
	}
	if got.Vault.Type != "s3" {
		t.Errorf("Vault.Type = %q, want %q", got.Vault.Type, "s3")
	}
	if got.Vault.S3Bucket != "capsules" {
		t.Errorf("Vault.S3Bucket = %q, want %q", got.Vault.S3Bucket, "capsules")
	}
	if got.Vault.S3Region != "eu-west-1" {
		t.Errorf("Vault.S3Region = %q, want %q", got.Vault.S3Region, "eu-west-1")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/capsule")

	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":8080")
	}
	if cfg.BaseDir != "/data/capsule" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/capsule")
	}
	if cfg.LogDir != "/data/capsule/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/capsule/log")
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", cfg.Database.Type, "sqlite")
	}
	if cfg.Database.DataDir != "/data/capsule/db" {
		t.Errorf("Database.DataDir = %q, want %q", cfg.Database.DataDir, "/data/capsule/db")
	}
	if cfg.Vault.Type != "filesystem" {
		t.Errorf("Vault.Type = %q, want %q", cfg.Vault.Type, "filesystem")
	}
	if cfg.Vault.FSVaultRoot != "/data/capsule/vault" {
		t.Errorf("Vault.FSVaultRoot = %q, want %q", cfg.Vault.FSVaultRoot, "/data/capsule/vault")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "capsule.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "capsule.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "capsule.toml")
		cfg := NewConfig(dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/capsule.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
