package handlers

import (
	"errors"
	"net/http"

	"fleetwatch/internal/models"
	"fleetwatch/internal/store"
)

// evaluateIncidents triggers one incident aggregation cycle.
func (a *API) evaluateIncidents(w http.ResponseWriter, r *http.Request) {
	result, err := a.engine.RunIncidentCycle(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) listIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	incidents, err := a.store.ListIncidents(r.Context(), store.IncidentFilter{
		ComponentCode: q.Get("component_code"),
		Status:        models.IncidentStatus(q.Get("status")),
		Origin:        models.Origin(q.Get("origin")),
		Limit:         queryInt(r, "limit", 100),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, incidents)
}

func (a *API) incidentAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := a.store.IncidentAlerts(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}
