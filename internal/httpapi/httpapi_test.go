package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vatsalyanallabothula/weather/internal/config"
	"github.com/vatsalyanallabothula/weather/internal/db/migrate"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func openMigrated(t *testing.T) *sql.DB {
	t.Helper()
	db := openMemory(t)
	if err := migrate.Run(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestHealthz(t *testing.T) {
	t.Run("ok with schema version when migrated", func(t *testing.T) {
		mux := NewMux(openMigrated(t))
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		var got map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got["status"] != "ok" {
			t.Errorf("status field = %q; want ok", got["status"])
		}
		if got["schema_version"] != migrate.Latest() {
			t.Errorf("schema_version = %q; want %q", got["schema_version"], migrate.Latest())
		}
	})

	t.Run("503 when schema is behind", func(t *testing.T) {
		mux := http.NewServeMux()
		registerHealthcheck(mux, NewHealthchecker(openMigrated(t), "9999"))
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusServiceUnavailable)
		}
		if !strings.Contains(rec.Body.String(), "9999") {
			t.Errorf("body = %q; want wanted version", rec.Body.String())
		}
	})

	t.Run("500 before migrations ran", func(t *testing.T) {
		mux := NewMux(openMemory(t))
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusInternalServerError)
		}
	})

	t.Run("500 when database is closed", func(t *testing.T) {
		db := openMigrated(t)
		_ = db.Close()
		mux := NewMux(db)
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusInternalServerError)
		}
		if !strings.Contains(rec.Body.String(), "session store") {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("POST is not allowed", func(t *testing.T) {
		mux := NewMux(openMigrated(t))
		rec := httptest.NewRecorder()

		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusMethodNotAllowed)
		}
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := requestLogger(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/brew", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d; want %d", rec.Code, http.StatusTeapot)
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "http request" || entry["method"] != "GET" || entry["path"] != "/brew" {
		t.Errorf("log entry = %v", entry)
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Errorf("status = %v; want %d", entry["status"], http.StatusTeapot)
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("duration_ms missing")
	}
	id := rec.Header().Get("X-Request-ID")
	if id == "" || entry["request_id"] != id {
		t.Errorf("request_id = %v; header = %q", entry["request_id"], id)
	}
}

func TestRequestLogger_requestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "echoes caller id", incoming: "req-42", keep: true},
		{name: "assigns when absent", incoming: "", keep: false},
		{name: "replaces oversized id", incoming: strings.Repeat("x", 65), keep: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := requestLogger(slog.New(slog.NewTextHandler(io.Discard, nil)),
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-ID")
			if tt.keep && got != tt.incoming {
				t.Errorf("X-Request-ID = %q; want %q", got, tt.incoming)
			}
			if !tt.keep && (got == "" || got == tt.incoming) {
				t.Errorf("X-Request-ID = %q; want a fresh id", got)
			}
		})
	}
}

func TestRequestLogger_defaultStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := requestLogger(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), `"status":200`) {
		t.Errorf("log = %q; want status 200", buf.String())
	}
	if !strings.Contains(buf.String(), `"bytes":2`) {
		t.Errorf("log = %q; want bytes 2", buf.String())
	}
}

func TestNewServer(t *testing.T) {
	srv := NewServer(config.Config{HTTPAddr: "127.0.0.1:0"}, http.NewServeMux(), slog.Default())
	if srv.Addr != "127.0.0.1:0" {
		t.Errorf("Addr = %q", srv.Addr)
	}
	if srv.Handler == nil {
		t.Error("Handler nil")
	}
	if srv.ReadHeaderTimeout == 0 {
		t.Error("ReadHeaderTimeout not set")
	}
}
