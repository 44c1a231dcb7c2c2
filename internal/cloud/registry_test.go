package cloud

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"

	"github.com/koptimizer/rigwatch/internal/config"
	"github.com/koptimizer/rigwatch/pkg/fleet"
)

func TestNewProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	if err := os.WriteFile(path, []byte("balance: 10\ninstances: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		mutate   func(*config.Config)
		wantName string
		wantErr  bool
	}{
		{
			name:     "vastai",
			mutate:   func(c *config.Config) { c.VastAI.APIKey = "k" },
			wantName: "vastai",
		},
		{
			name:    "vastai without key",
			mutate:  func(c *config.Config) { c.VastAI.APIKey = "" },
			wantErr: true,
		},
		{
			name: "static",
			mutate: func(c *config.Config) {
				c.Provider = "static"
				c.Static.Path = path
			},
			wantName: "static",
		},
		{name: "empty", mutate: func(c *config.Config) { c.Provider = "" }, wantErr: true},
		{name: "unknown", mutate: func(c *config.Config) { c.Provider = "runpod" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)

			p, err := NewProvider(cfg, logr.Discard())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, fleet.ErrInvalidConfig) {
					t.Errorf("error %v does not wrap ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}
