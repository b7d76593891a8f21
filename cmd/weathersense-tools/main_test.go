package main

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vatsalyanallabothula/weather/internal/config"
)

func storeConfig(path string) config.Config {
	return config.Config{
		SQLiteDriver:       "sqlite3",
		SQLitePath:         path,
		SQLiteMaxOpenConns: 1,
		SQLiteMaxIdleConns: 1,
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	cfg := storeConfig(filepath.Join(t.TempDir(), "nested", "weathersense.db"))

	t.Run("missing command prints usage", func(t *testing.T) {
		err := run(ctx, []string{"/bin/weathersense-tools"}, cfg, &bytes.Buffer{})
		if err == nil || !strings.Contains(err.Error(), "usage: weathersense-tools") {
			t.Fatalf("err = %v; want usage", err)
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		err := run(ctx, []string{"tools", "seed"}, cfg, &bytes.Buffer{})
		if err == nil || !strings.Contains(err.Error(), "unknown command: seed") {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("migrate is idempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			var out bytes.Buffer
			if err := run(ctx, []string{"tools", "migrate"}, cfg, &out); err != nil {
				t.Fatalf("migrate #%d: %v", i+1, err)
			}
			if got := out.String(); got != "migrations applied\n" {
				t.Errorf("output = %q", got)
			}
		}
	})

	t.Run("purge after migrate", func(t *testing.T) {
		var out bytes.Buffer
		if err := run(ctx, []string{"tools", "purge"}, cfg, &out); err != nil {
			t.Fatalf("purge: %v", err)
		}
		if got := out.String(); got != "purged 0 expired sessions\n" {
			t.Errorf("output = %q", got)
		}
	})

	t.Run("purge without schema fails", func(t *testing.T) {
		fresh := storeConfig(filepath.Join(t.TempDir(), "empty.db"))
		err := run(ctx, []string{"tools", "purge"}, fresh, &bytes.Buffer{})
		if err == nil || !strings.HasPrefix(err.Error(), "purge:") {
			t.Fatalf("err = %v; want purge error", err)
		}
	})
}

func TestRun_usesDSN(t *testing.T) {
	dir := t.TempDir()
	dsnPath := filepath.Join(dir, "from-dsn.db")
	pathOnly := filepath.Join(dir, "from-path.db")

	cfg := storeConfig(pathOnly)
	cfg.SQLiteDSN = "file:" + dsnPath + "?_foreign_keys=on"

	if err := run(context.Background(), []string{"tools", "migrate"}, cfg, &bytes.Buffer{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, err := os.Stat(pathOnly); !os.IsNotExist(err) {
		t.Errorf("SQLITE_PATH database touched while DB_DSN set: stat err = %v", err)
	}

	conn, err := sql.Open("sqlite3", dsnPath)
	if err != nil {
		t.Fatalf("open dsn db: %v", err)
	}
	defer conn.Close()
	var n int
	if err := conn.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("schema_migrations in DSN database: %v", err)
	}
	if n == 0 {
		t.Error("no migrations recorded in DSN database")
	}
}
