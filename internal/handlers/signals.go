package handlers

import (
	"encoding/json"
	"net/http"

	"fleetwatch/internal/metrics"
	"fleetwatch/internal/models"
)

func (a *API) listSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := a.catalog.ListSignals(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, signals)
}

func (a *API) registerSignal(w http.ResponseWriter, r *http.Request) {
	var signal models.Signal
	if err := json.NewDecoder(r.Body).Decode(&signal); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := a.catalog.RegisterSignal(r.Context(), &signal); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, &signal)
}

// PointInput is the wire format for one time-series sample. A null value
// records a present-tick gap.
type PointInput struct {
	ComponentCode string   `json:"component_code"`
	ColumnName    string   `json:"column_name"`
	Tick          int64    `json:"tick"`
	Value         *float64 `json:"value"`
}

// PointsRequest carries a batch of samples.
type PointsRequest struct {
	Points []PointInput `json:"points"`
}

// PointsResponse reports per-point acceptance.
type PointsResponse struct {
	Success  bool         `json:"success"`
	Accepted int          `json:"accepted"`
	Rejected int          `json:"rejected"`
	Errors   []PointError `json:"errors,omitempty"`
}

// PointError describes a validation error for a specific point.
type PointError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// ingestPoints accepts a batch of samples into the series store. This is
// collaborator-boundary glue so the engine is exercisable end-to-end;
// production deployments feed the accessor from their own pipeline.
func (a *API) ingestPoints(w http.ResponseWriter, r *http.Request) {
	var req PointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Points) == 0 {
		writeError(w, http.StatusBadRequest, "no points provided")
		return
	}

	resp := PointsResponse{Success: true}
	for i, p := range req.Points {
		if msg := validatePoint(p); msg != "" {
			resp.Errors = append(resp.Errors, PointError{Index: i, Error: msg})
			resp.Rejected++
			metrics.SamplesIngestedTotal.WithLabelValues("rejected").Inc()
			continue
		}
		a.series.Append(p.ComponentCode, p.ColumnName, p.Tick, p.Value)
		resp.Accepted++
		metrics.SamplesIngestedTotal.WithLabelValues("accepted").Inc()
	}

	resp.Success = resp.Rejected == 0
	status := http.StatusOK
	if resp.Rejected > 0 && resp.Accepted == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

func validatePoint(p PointInput) string {
	if p.ComponentCode == "" {
		return "component_code cannot be empty"
	}
	if p.ColumnName == "" {
		return "column_name cannot be empty"
	}
	if p.Tick < 0 {
		return "tick cannot be negative"
	}
	return ""
}
