package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
[indexer]
base_url = "https://indexer.example.com"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.ListenAddr != ":8086" {
		t.Errorf("default listen addr wrong: %q", cfg.Server.ListenAddr)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.BusyTimeoutMs != 5000 {
		t.Errorf("storage defaults wrong: %+v", cfg.Storage)
	}
	if cfg.Cache.Backend != "memory" || cfg.Cache.TTLSeconds != 60 {
		t.Errorf("cache defaults wrong: %+v", cfg.Cache)
	}
	if cfg.Sync.ResyncIntervalSeconds != 300 {
		t.Errorf("sync defaults wrong: %+v", cfg.Sync)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing base_url", `[storage]` + "\n" + `driver = "sqlite"`},
		{"bad driver", "[storage]\ndriver = \"mysql\"\n[indexer]\nbase_url = \"https://x\""},
		{"postgres without dsn", "[storage]\ndriver = \"postgres\"\n[indexer]\nbase_url = \"https://x\""},
		{"redis without addr", "[cache]\nbackend = \"redis\"\n[indexer]\nbase_url = \"https://x\""},
		{"stream without ws_url", "[indexer]\nbase_url = \"https://x\"\nstream_enabled = true"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, c.body)); err == nil {
				t.Errorf("expected validation error for %s", c.name)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DEXSYNC_LISTEN_ADDR", ":9999")
	t.Setenv("DEXSYNC_INDEXER_URL", "https://override.example.com")

	path := writeConfig(t, `
[server]
listen_addr = ":8086"

[indexer]
base_url = "https://file.example.com"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("env listen addr not applied: %q", cfg.Server.ListenAddr)
	}
	if cfg.Indexer.BaseURL != "https://override.example.com" {
		t.Errorf("env indexer url not applied: %q", cfg.Indexer.BaseURL)
	}
}
