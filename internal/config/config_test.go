package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
server:
  addr: ":8081"
logging:
  level: debug
  console: true
store:
  driver: sqlite
  path: ./data/results.db
  busy_timeout: 5s
directory:
  path: ./data/contacts.json
transport:
  driver: log
dispatch:
  workers: 8
  rate_per_sec: 20
  send_timeout: 10s
  default_language: am
retention:
  max_age: 2160h
  schedule: "0 3 * * *"
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8081" {
		t.Fatalf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path != "./data/results.db" {
		t.Fatalf("Store = %+v", cfg.Store)
	}
	if cfg.Dispatch.Workers != 8 || cfg.Dispatch.DefaultLanguage != "am" {
		t.Fatalf("Dispatch = %+v", cfg.Dispatch)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return committed config")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json", `{
		"logging": {"console": true},
		"store": {"path": "./r.db"},
		"directory": {"path": "./c.json"},
		"transport": {},
		"dispatch": {},
		"server": {}
	}`))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", validYAML+"\nbogus_section:\n  x: 1\n"))
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() Config {
		return Config{
			Store:     StoreConfig{Path: "./r.db"},
			Directory: DirectoryConfig{Path: "./c.json"},
		}
	}

	if err := (&Config{}).Validate(); err == nil {
		t.Fatal("expected error for missing store path")
	}

	cfg := base()
	cfg.Dispatch.SendTimeout = "not-a-duration"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bad duration")
	}

	cfg = base()
	cfg.Dispatch.DefaultLanguage = "fr"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown default language")
	}

	cfg = base()
	cfg.Transport.Driver = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown transport driver")
	}

	cfg = base()
	cfg.Dispatch.DefaultLanguage = "amharic"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("legacy language name rejected: %v", err)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", " 10s "); err != nil || d.Seconds() != 10 {
		t.Fatalf("got (%v, %v)", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty = (%v, %v)", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
}
