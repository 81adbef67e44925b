package client

import (
	"testing"
	"time"
)

func TestDecodeConfig(t *testing.T) {
	raw := map[string]interface{}{
		"SocketPath": "/tmp/rialto.sock",
		"Timeout":    "5s",
		"LogLevel":   "DEBUG",
	}

	cfg, err := DecodeConfig(raw)
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.SocketPath != "/tmp/rialto.sock" {
		t.Fatalf("SocketPath = %q", cfg.SocketPath)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	if cfg.timeout() != DefaultTimeout {
		t.Fatalf("timeout() = %v, want %v", cfg.timeout(), DefaultTimeout)
	}
	if cfg.schemaVersion() != CurrentSchemaVersion {
		t.Fatalf("schemaVersion() = %v, want %v", cfg.schemaVersion(), CurrentSchemaVersion)
	}

	cfg2 := &Config{Timeout: 3 * time.Second, SchemaVersion: SchemaVersion{Major: 2}}
	if cfg2.timeout() != 3*time.Second {
		t.Fatalf("timeout() = %v, want 3s", cfg2.timeout())
	}
	if cfg2.schemaVersion() != (SchemaVersion{Major: 2}) {
		t.Fatalf("schemaVersion() = %v, want {Major:2}", cfg2.schemaVersion())
	}
}
