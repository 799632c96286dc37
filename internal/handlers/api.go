// Package handlers exposes the engine's triggers and query surfaces over
// HTTP. Handlers are thin: parsing, validation, and JSON encoding only.
package handlers

import (
	"encoding/json"
	"net/http"

	"fleetwatch/internal/catalog"
	"fleetwatch/internal/engine"
	"fleetwatch/internal/store"
	"fleetwatch/internal/timeseries"
)

// API bundles the handler dependencies.
type API struct {
	engine  *engine.Engine
	catalog *catalog.Catalog
	store   store.Store
	series  *timeseries.MemorySeries
}

// New creates the API handler set.
func New(eng *engine.Engine, cat *catalog.Catalog, st store.Store, series *timeseries.MemorySeries) *API {
	return &API{engine: eng, catalog: cat, store: st, series: series}
}

// Register attaches all routes to the mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/alerts/evaluate", a.evaluateAlerts)
	mux.HandleFunc("POST /api/alerts/reset-and-evaluate", a.resetAndEvaluate)
	mux.HandleFunc("GET /api/alerts/rules", a.listRules)
	mux.HandleFunc("POST /api/alerts/rules/generate-all", a.generateRules)
	mux.HandleFunc("GET /api/alerts/events", a.listEvents)

	mux.HandleFunc("POST /api/incidents/evaluate", a.evaluateIncidents)
	mux.HandleFunc("GET /api/incidents", a.listIncidents)
	mux.HandleFunc("GET /api/incidents/{id}/alerts", a.incidentAlerts)

	mux.HandleFunc("GET /api/signals", a.listSignals)
	mux.HandleFunc("POST /api/signals", a.registerSignal)
	mux.HandleFunc("POST /api/timeseries/points", a.ingestPoints)
}

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}
