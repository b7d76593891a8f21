package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vatsalyanallabothula/weather/internal/config"
)

func TestBuildDSN(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name       string
		cfg        config.Config
		wantPrefix string
		wantSep    string
	}{
		{
			name:       "explicit dsn wins",
			cfg:        config.Config{SQLiteDSN: ":memory:", SQLitePath: filepath.Join(dir, "ignored.db")},
			wantPrefix: ":memory:",
		},
		{
			name:       "plain path is wrapped",
			cfg:        config.Config{SQLitePath: filepath.Join(dir, "a", "app.db")},
			wantPrefix: "file:" + filepath.Join(dir, "a", "app.db") + "?",
		},
		{
			name:       "file uri with params is extended",
			cfg:        config.Config{SQLitePath: "file:" + filepath.Join(dir, "b.db") + "?cache=shared"},
			wantPrefix: "file:" + filepath.Join(dir, "b.db") + "?cache=shared&",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.cfg)
			if err != nil {
				t.Fatalf("buildDSN() err = %v", err)
			}
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("buildDSN() = %q; want prefix %q", got, tt.wantPrefix)
			}
			if tt.cfg.SQLiteDSN == "" && !strings.Contains(got, "_journal_mode=WAL") {
				t.Errorf("buildDSN() = %q; want WAL param", got)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	for _, logSQL := range []bool{false, true} {
		cfg := config.Config{
			SQLiteDriver:        "sqlite3",
			SQLitePath:          filepath.Join(t.TempDir(), "sessions", "app.db"),
			SQLiteMaxOpenConns:  1,
			SQLiteMaxIdleConns:  1,
			SQLiteLogStatements: logSQL,
		}
		conn, err := Open(context.Background(), cfg, nil)
		if err != nil {
			t.Fatalf("Open(logSQL=%v) err = %v", logSQL, err)
		}
		var ok int
		if err := conn.QueryRow(`SELECT 1`).Scan(&ok); err != nil || ok != 1 {
			t.Errorf("SELECT 1 = %d, %v", ok, err)
		}
		if err := Close(conn); err != nil {
			t.Errorf("Close() = %v", err)
		}
	}

	if err := Close(nil); err != nil {
		t.Errorf("Close(nil) = %v; want nil", err)
	}
}
