package httpapi

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vatsalyanallabothula/weather/internal/db/migrate"
	"github.com/vatsalyanallabothula/weather/internal/utils"
)

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	db            *sql.DB
	schemaVersion string
}

type healthResponse struct {
	Status        string `json:"status"`
	SchemaVersion string `json:"schema_version"`
}

// NewHealthchecker reports ready once the session store answers and carries
// schemaVersion, the newest migration this build ships.
func NewHealthchecker(db *sql.DB, schemaVersion string) healthchecker {
	return &healthcheckerImpl{db: db, schemaVersion: schemaVersion}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	version, err := migrate.Version(r.Context(), h.db)
	if err != nil {
		slog.Error("failed to check session store", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to check session store")
		return
	}
	if version < h.schemaVersion {
		utils.WriteError(w, http.StatusServiceUnavailable,
			fmt.Sprintf("session store schema %q is behind %q", version, h.schemaVersion))
		return
	}
	utils.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", SchemaVersion: version})
}

func registerHealthcheck(mux *http.ServeMux, h healthchecker) {
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}
