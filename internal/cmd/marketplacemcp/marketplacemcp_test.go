package marketplacemcp

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	t.Setenv("SHOPPAL_DOTENV_PATH", t.TempDir()+"/missing.env")
	fs := flag.NewFlagSet("marketplace-mcp", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Token != "" {
		t.Fatalf("token = %q, want empty", cfg.Token)
	}
	if cfg.StoreDriver != "sqlite" {
		t.Fatalf("store driver = %q, want sqlite", cfg.StoreDriver)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("SHOPPAL_DOTENV_PATH", t.TempDir()+"/missing.env")
	t.Setenv("SHOPPAL_MCP_TOKEN", "env-token")
	t.Setenv("SHOPPAL_SQLITE_PATH", "env.db")
	fs := flag.NewFlagSet("marketplace-mcp", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-token", "flag-token"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Token != "flag-token" {
		t.Fatalf("token = %q, want flag-token", cfg.Token)
	}
	if cfg.SQLitePath != "env.db" {
		t.Fatalf("sqlite path = %q, want env.db", cfg.SQLitePath)
	}
}
