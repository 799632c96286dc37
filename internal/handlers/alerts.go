package handlers

import (
	"net/http"
	"strconv"

	"fleetwatch/internal/models"
	"fleetwatch/internal/store"
)

// evaluateAlerts triggers one evaluation cycle. Query parameters:
// lookback_ticks (default from config) and simulation_mode (bool).
func (a *API) evaluateAlerts(w http.ResponseWriter, r *http.Request) {
	lookback := queryInt(r, "lookback_ticks", 0)

	origin := models.OriginReal
	if queryBool(r, "simulation_mode") {
		origin = models.OriginSimulated
	}

	result, err := a.engine.RunEvaluationCycle(r.Context(), origin, lookback)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// resetAndEvaluate purges all alert events and incident links, then runs
// a fresh REAL evaluation cycle.
func (a *API) resetAndEvaluate(w http.ResponseWriter, r *http.Request) {
	if err := a.store.PurgeEvents(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := a.engine.RunEvaluationCycle(r.Context(), models.OriginReal, queryInt(r, "lookback_ticks", 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := a.catalog.ListRules(r.Context(), queryBool(r, "enabled_only"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (a *API) generateRules(w http.ResponseWriter, r *http.Request) {
	created, err := a.catalog.GenerateRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"created_rules": created,
		"strategy":      "signal-kind-baseline",
	})
}

func (a *API) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.EventFilter{
		RuleID:        q.Get("rule_id"),
		ComponentCode: q.Get("component_code"),
		SignalCode:    q.Get("signal_code"),
		Status:        models.EventStatus(q.Get("status")),
		Origin:        models.Origin(q.Get("origin")),
		Severity:      models.Severity(q.Get("severity")),
		Limit:         queryInt(r, "limit", 100),
	}
	if raw := q.Get("from_tick"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			f.FromTick = &n
		}
	}
	if raw := q.Get("to_tick"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			f.ToTick = &n
		}
	}

	events, err := a.store.ListEvents(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
