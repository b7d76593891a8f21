package httpapi

import (
	"database/sql"
	"net/http"

	"github.com/vatsalyanallabothula/weather/internal/db/migrate"
)

// NewMux serves /healthz against the session store; feature modules add
// their own routes.
func NewMux(db *sql.DB) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, NewHealthchecker(db, migrate.Latest()))
	return mux
}
