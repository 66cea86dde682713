// Package server exposes the position engine over HTTP. It is a thin
// consumer: every request recomputes the table from the current source
// snapshot; nothing is cached between requests.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/quantdesk/position-engine/internal/engine"
	"github.com/quantdesk/position-engine/internal/model"
)

// selectionAll is the query-string sentinel meaning "no filtering on this
// axis". The typed model.Selection uses nil instead.
const selectionAll = "ALL"

// Service handles position table queries.
type Service struct {
	engine *engine.Engine
	hub    *Hub // optional snapshot hub; nil disables broadcasting
}

// NewService creates a service over the given engine.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(e *engine.Engine, hub *Hub) *Service {
	return &Service{engine: e, hub: hub}
}

// parseSelection maps query parameters onto a typed selection. Absent
// parameters and the literal "ALL" mean no filtering.
func parseSelection(r *http.Request) (model.Selection, error) {
	var sel model.Selection

	if v := r.URL.Query().Get("leg"); v != "" && !strings.EqualFold(v, selectionAll) {
		leg := model.LegRole(strings.ToUpper(v))
		if leg != model.LegMain && leg != model.LegHedge {
			return sel, &badParamError{param: "leg", value: v}
		}
		sel.Leg = &leg
	}
	if v := r.URL.Query().Get("scenario_num"); v != "" && !strings.EqualFold(v, selectionAll) {
		num, err := strconv.Atoi(v)
		if err != nil {
			return sel, &badParamError{param: "scenario_num", value: v}
		}
		sel.ScenarioNum = &num
	}
	if v := r.URL.Query().Get("scenario_letter"); v != "" && !strings.EqualFold(v, selectionAll) {
		if len(v) != 1 {
			return sel, &badParamError{param: "scenario_letter", value: v}
		}
		sel.ScenarioLetter = &v
	}
	return sel, nil
}

type badParamError struct {
	param string
	value string
}

func (e *badParamError) Error() string {
	return "invalid " + e.param + ": " + e.value
}

// Positions handles GET /api/v1/positions
func (s *Service) Positions(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.engine.Compute(r.Context(), sel)
	if err != nil {
		writeError(w, "failed to compute positions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// Export handles GET /api/v1/positions/export
// Streams the current position table as a CSV download. An empty result
// exports header-only rather than erroring.
func (s *Service) Export(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.engine.Compute(r.Context(), sel)
	if err != nil {
		writeError(w, "failed to compute positions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="positions.csv"`)
	if err := result.WriteCSV(w); err != nil {
		slog.Error("csv export failed", "err", err)
	}
}

// Scenarios handles GET /api/v1/scenarios
// Returns the distinct scenario numbers and letters for filter dropdowns.
func (s *Service) Scenarios(w http.ResponseWriter, r *http.Request) {
	nums, letters, err := s.engine.ScenarioValues(r.Context())
	if err != nil {
		writeError(w, "failed to load scenario values", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"numbers": nums,
		"letters": letters,
	})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
