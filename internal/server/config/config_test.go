package config

import (
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Addr != "127.0.0.1:4000" {
		t.Fatalf("Addr = %q, want %q", cfg.Server.Addr, "127.0.0.1:4000")
	}
	if cfg.Storage.Engine != "kvs" {
		t.Fatalf("Engine = %q, want %q", cfg.Storage.Engine, "kvs")
	}
	if err := Verify(cfg); err != nil {
		t.Fatalf("Verify(Default()) = %v", err)
	}
}

func TestVerify_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{"empty addr", func(c *ServerConfig) { c.Server.Addr = "" }, "server.addr"},
		{"empty data dir", func(c *ServerConfig) { c.Storage.DataDir = "" }, "data_dir"},
		{"unknown engine", func(c *ServerConfig) { c.Storage.Engine = "bolt" }, "storage.engine"},
		{"unknown pool", func(c *ServerConfig) { c.Pool.Kind = "workstealing" }, "pool.kind"},
		{"negative workers", func(c *ServerConfig) { c.Pool.Workers = -1 }, "pool.workers"},
		{"negative rate limit", func(c *ServerConfig) { c.Server.RateLimit = -5 }, "rate_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Verify(cfg)
			if err == nil {
				t.Fatal("Verify should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
