package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"title-classifier/internal/taxonomy"

	"go.uber.org/zap"
)

// categoriseRequest accepts either a single title or a batch. Titles stays
// raw so a non-array value can be rejected with a helpful message instead of
// a generic decoding error.
type categoriseRequest struct {
	Title  string          `json:"title"`
	Titles json.RawMessage `json:"titles"`
}

type categoriseResponse struct {
	Results []*taxonomy.Result `json:"results"`
	Count   int                `json:"count"`
	Status  string             `json:"status"`
	Version string             `json:"version"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Solution string `json:"solution,omitempty"`
	Status   string `json:"status"`
	Version  string `json:"version"`
}

func (s *Server) handleCategorise(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", fmt.Sprintf("use POST %s", s.categorisePath()))
		return
	}

	var req categoriseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "missing or invalid JSON in request",
			"set Content-Type to application/json and provide a JSON body")
		return
	}

	titles, errResp := s.collectTitles(&req)
	if errResp != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, errResp)
		return
	}

	if len(titles) > s.cfg.MaxTitlesPerRequest {
		s.logger.Warn("too many titles in request", zap.Int("count", len(titles)))
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("too many titles in one request (max %d)", s.cfg.MaxTitlesPerRequest),
			fmt.Sprintf("split your request into batches of %d titles or less", s.cfg.MaxTitlesPerRequest))
		return
	}

	results := s.processor.Process(r.Context(), titles)

	s.logger.Info("batch processed", zap.Int("count", len(results)))
	s.writeJSON(w, http.StatusOK, categoriseResponse{
		Results: results,
		Count:   len(results),
		Status:  "success",
		Version: s.cfg.APIVersion,
	})
}

// collectTitles extracts the non-empty, trimmed titles from the request,
// accepting both the single and the batch form.
func (s *Server) collectTitles(req *categoriseRequest) ([]string, *errorResponse) {
	var titles []string

	switch {
	case strings.TrimSpace(req.Title) != "":
		titles = append(titles, strings.TrimSpace(req.Title))

	case req.Titles != nil:
		var batch []string
		if err := json.Unmarshal(req.Titles, &batch); err != nil {
			s.logger.Warn("invalid titles format")
			return nil, &errorResponse{
				Error:    "invalid format for 'titles' field",
				Solution: `provide an array of titles like: {"titles": ["Title1", "Title2"]}`,
				Status:   "error",
				Version:  s.cfg.APIVersion,
			}
		}
		for _, t := range batch {
			if t = strings.TrimSpace(t); t != "" {
				titles = append(titles, t)
			}
		}

	default:
		return nil, &errorResponse{
			Error:    "missing 'title' or 'titles' field",
			Solution: "provide either a single title or an array of titles",
			Status:   "error",
			Version:  s.cfg.APIVersion,
		}
	}

	if len(titles) == 0 {
		s.logger.Warn("empty titles list received")
		return nil, &errorResponse{
			Error:    "no valid titles provided",
			Solution: "provide at least one non-empty job title",
			Status:   "error",
			Version:  s.cfg.APIVersion,
		}
	}

	return titles, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "use GET /health")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"version":   s.cfg.APIVersion,
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "use GET /ready")
		return
	}

	checks := map[string]bool{
		"config_loaded": s.store.Ready(),
	}

	status := "ready"
	for _, ok := range checks {
		if !ok {
			status = "degraded"
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":        status,
		"checks":        checks,
		"cache_entries": s.processor.CacheLen(),
		"mappings":      s.store.Describe(),
		"version":       s.cfg.APIVersion,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "use POST /reload-config")
		return
	}

	changed := s.store.Reload()
	s.logger.Info("configuration reload requested",
		zap.Bool("changed", changed),
		zap.String("version", s.store.Snapshot().Version),
	)

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":           "success",
		"message":          "configuration reloaded",
		"changed":          changed,
		"mappings_path":    s.store.Path(),
		"mappings_version": s.store.Snapshot().Version,
	})
}

// handleIndex documents the API. It doubles as the 404 handler for unknown
// paths, since the root pattern catches everything unrouted.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "endpoint not found", "")
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "use GET /")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"service": "Job Title Classification API",
		"version": s.cfg.APIVersion,
		"endpoints": map[string]any{
			"categorise": map[string]string{
				"method":      http.MethodPost,
				"path":        s.categorisePath(),
				"description": "classify job titles into function, sub-function and seniority",
			},
			"health": map[string]string{
				"method":      http.MethodGet,
				"path":        "/health",
				"description": "basic service health check",
			},
			"ready": map[string]string{
				"method":      http.MethodGet,
				"path":        "/ready",
				"description": "service readiness including mappings state",
			},
			"reload-config": map[string]string{
				"method":      http.MethodPost,
				"path":        "/reload-config",
				"description": "reload the mappings file without a restart",
			},
		},
		"config": map[string]any{
			"max_titles_per_request": s.cfg.MaxTitlesPerRequest,
			"rate_limit_per_second":  s.cfg.RateLimit,
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encoding response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg, solution string) {
	s.writeErrorResponse(w, status, &errorResponse{
		Error:    msg,
		Solution: solution,
		Status:   "error",
		Version:  s.cfg.APIVersion,
	})
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, status int, resp *errorResponse) {
	s.writeJSON(w, status, resp)
}
