package backend

import (
	"context"
	"path/filepath"
	"testing"

	"budgetcal/internal/config"
	gsheet "budgetcal/internal/sheets/google"
	sheetsmem "budgetcal/internal/sheets/memory"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	cfg, err := FromAppConfig(&config.Config{DataBackend: "postgres", DatabaseURL: "postgres://localhost/db"})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != PostgresBackend || cfg.DatabaseURL != "postgres://localhost/db" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"unknown", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	t.Run("memory", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend, DataDirectory: t.TempDir()})
		if err != nil {
			t.Fatalf("CreateBackend: %v", err)
		}
		defer res.Cleanup()
		if res.Store == nil || res.Outbox != nil || res.Publisher != nil {
			t.Fatalf("unexpected result %+v", res)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{
			Type:         SQLiteBackend,
			SQLiteDBPath: filepath.Join(t.TempDir(), "budgetcal.db"),
		})
		if err != nil {
			t.Fatalf("CreateBackend: %v", err)
		}
		if res.Store == nil || res.Outbox == nil {
			t.Fatalf("sqlite backend should provide store and outbox")
		}
		if err := res.Cleanup(); err != nil {
			t.Fatalf("Cleanup: %v", err)
		}
	})
}

func TestNewSinkFallsBackToMemory(t *testing.T) {
	sink, err := NewSink(context.Background(), gsheet.Config{}, nil)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	if _, ok := sink.(*sheetsmem.Sink); !ok {
		t.Fatalf("sink = %T, want *memory.Sink", sink)
	}
}
