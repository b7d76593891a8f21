package controller

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vatsalyanallabothula/weather/internal/modules/weather/service"
	"github.com/vatsalyanallabothula/weather/internal/modules/weather/types"
	"github.com/vatsalyanallabothula/weather/internal/modules/weather/views"
	"github.com/vatsalyanallabothula/weather/internal/utils"
)

func (c *weatherControllerImpl) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := views.DashboardData{}
	if id := sessionID(r); id != "" {
		sess, err := c.service.Session(r.Context(), id)
		switch {
		case err == nil:
			data.Located = sess.Located()
		case errors.Is(err, service.ErrSessionNotFound):
		default:
			slog.Error("dashboard: load session failed", "error", err)
		}
	}

	var buf bytes.Buffer
	if err := views.RenderDashboard(&buf, data); err != nil {
		slog.Error("dashboard template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	utils.WriteHTML(w, http.StatusOK, buf.Bytes())
}

func (c *weatherControllerImpl) handleConditionsPartial(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	var data views.ConditionsData

	obs, err := c.service.Conditions(r.Context(), sessionID(r))
	if err != nil {
		var msg string
		status, msg = conditionsStatus(err)
		if status == http.StatusInternalServerError {
			slog.Error("conditions partial: load failed", "error", err)
		}
		data = views.Halt(msg)
	} else {
		data = views.NewConditionsData(obs)
	}

	var buf bytes.Buffer
	if err := views.RenderConditionsPartial(&buf, data); err != nil {
		slog.Error("conditions partial render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render")
		return
	}
	utils.WriteHTML(w, status, buf.Bytes())
}

func (c *weatherControllerImpl) handleConditions(w http.ResponseWriter, r *http.Request) {
	obs, err := c.service.Conditions(r.Context(), sessionID(r))
	if err != nil {
		status, msg := conditionsStatus(err)
		if status == http.StatusInternalServerError {
			slog.Error("conditions: load failed", "error", err)
		}
		utils.WriteError(w, status, msg)
		return
	}
	utils.WriteJSON(w, http.StatusOK, obs)
}

func (c *weatherControllerImpl) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	coords, err := parseLocation(w, r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := c.ensureSession(w, r)
	if err != nil {
		slog.Error("set location: start session failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	err = c.service.SetLocation(r.Context(), id, coords)
	if errors.Is(err, service.ErrSessionNotFound) {
		// Expired between lookup and update.
		sess, startErr := c.service.StartSession(r.Context())
		if startErr != nil {
			slog.Error("set location: start session failed", "error", startErr)
			utils.WriteError(w, http.StatusInternalServerError, "failed to start session")
			return
		}
		setSessionCookie(w, r, sess.ID, c.service.TTL())
		err = c.service.SetLocation(r.Context(), sess.ID, coords)
	}
	if err != nil {
		if errors.Is(err, types.ErrInvalidCoordinates) {
			utils.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("set location failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to store location")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ensureSession returns the caller's live session, starting one and setting
// the cookie when there is none.
func (c *weatherControllerImpl) ensureSession(w http.ResponseWriter, r *http.Request) (string, error) {
	if id := sessionID(r); id != "" {
		_, err := c.service.Session(r.Context(), id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, service.ErrSessionNotFound) {
			return "", err
		}
	}
	sess, err := c.service.StartSession(r.Context())
	if err != nil {
		return "", err
	}
	setSessionCookie(w, r, sess.ID, c.service.TTL())
	return sess.ID, nil
}

func (c *weatherControllerImpl) handleForgetLocation(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if id != "" {
		err := c.service.ForgetLocation(r.Context(), id)
		if err != nil && !errors.Is(err, service.ErrSessionNotFound) {
			slog.Error("forget location failed", "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "failed to forget location")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *weatherControllerImpl) handleComfort(w http.ResponseWriter, r *http.Request) {
	temperature, humidity, err := parseComfortQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, c.service.Classify(temperature, humidity))
}
