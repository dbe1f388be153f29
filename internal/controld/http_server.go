package controld

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/voltaic-sim/control-core/internal/compare"
	"github.com/voltaic-sim/control-core/pkg/logger"
	"github.com/voltaic-sim/control-core/pkg/models"
)

// HTTPServer exposes the controller's decisions, convergence history, and
// strategy comparisons for inspection.
type HTTPServer struct {
	mux  *http.ServeMux
	ctrl *Controller
}

func NewHTTPServer(ctrl *Controller) *HTTPServer {
	s := &HTTPServer{
		mux:  http.NewServeMux(),
		ctrl: ctrl,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/decisions", s.handleDecisions)
	s.mux.HandleFunc("/v1/decisions/latest", s.handleLatestDecision)
	s.mux.HandleFunc("/v1/history", s.handleHistory)
	s.mux.HandleFunc("/v1/compare", s.handleCompare)
	s.mux.HandleFunc("/v1/compare/winner", s.handleCompareWinner)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleDecisions handles GET /v1/decisions with an optional limit
func (s *HTTPServer) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	decisions := s.ctrl.Decisions()

	limit := len(decisions)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed < limit {
			limit = parsed
		}
	}
	decisions = decisions[len(decisions)-limit:]

	out := make([]map[string]any, 0, len(decisions))
	for i := range decisions {
		out = append(out, decisions[i].Flatten())
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"decisions": out,
		"count":     len(out),
	})
}

// handleLatestDecision handles GET /v1/decisions/latest
func (s *HTTPServer) handleLatestDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	d, ok := s.ctrl.LatestDecision()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no decision published yet")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"decision": d.Flatten(),
	})
}

// handleHistory handles GET /v1/history
func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	records := s.ctrl.History()
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, convertRecordToJSON(rec))
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"history": out,
		"count":   len(out),
	})
}

// handleCompare handles POST /v1/compare: runs one comparison across all
// registered strategies against the next scenario snapshot.
func (s *HTTPServer) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	result := s.ctrl.RunComparison()
	logger.Info("comparison completed (HTTP)",
		"id", result.ID, "winner", result.Winner, "failures", len(result.Failures))

	s.writeJSON(w, http.StatusOK, map[string]any{
		"comparison": convertComparisonToJSON(result),
	})
}

// handleCompareWinner handles GET /v1/compare/winner
func (s *HTTPServer) handleCompareWinner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	winner, wins := s.ctrl.Comparator().MostFrequentWinner()
	if winner == "" {
		s.writeError(w, http.StatusNotFound, "no comparison run yet")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"winner":      winner,
		"wins":        wins,
		"window_size": len(s.ctrl.Comparator().Window()),
	})
}

// Helper functions

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}

func convertRecordToJSON(rec models.PerformanceRecord) map[string]any {
	return map[string]any{
		"generation":      rec.Generation,
		"timestamp":       rec.Timestamp.UTC().Format(time.RFC3339Nano),
		"best_fitness":    rec.BestFitness,
		"avg_fitness":     rec.AvgFitness,
		"compute_time_ms": float64(rec.ComputeTime) / float64(time.Millisecond),
		"strategy":        rec.Strategy,
	}
}

func convertComparisonToJSON(result compare.Result) map[string]any {
	ranking := make([]map[string]any, 0, len(result.Ranking))
	for _, vr := range result.Ranking {
		ranking = append(ranking, map[string]any{
			"name":        vr.Name,
			"control":     vr.Action.Control,
			"grid_ratio":  vr.Action.GridRatio,
			"economic":    vr.Economic,
			"tracking":    vr.Tracking,
			"robustness":  vr.Robustness,
			"computation": vr.Computation,
			"overall":     vr.Overall,
			"elapsed_ms":  float64(vr.Elapsed) / float64(time.Millisecond),
		})
	}
	return map[string]any{
		"id":        result.ID,
		"timestamp": result.Timestamp.UTC().Format(time.RFC3339),
		"winner":    result.Winner,
		"ranking":   ranking,
		"failures":  result.Failures,
	}
}
