package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"title-classifier/internal/mappings"
	"title-classifier/internal/pipeline"
	"title-classifier/internal/taxonomy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()

	store := mappings.NewStore(filepath.Join(t.TempDir(), "absent.yaml"), zap.NewNop())
	processor, err := pipeline.NewProcessor(
		taxonomy.NewClassifier(taxonomy.DefaultMinConfidence, taxonomy.DefaultMinFuzzyScore),
		store, zap.NewNop(), pipeline.Options{},
	)
	require.NoError(t, err)

	return New(cfg, processor, store, zap.NewNop())
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), "body: %s", rec.Body.String())

	return rec, payload
}

func TestCategoriseSingleTitle(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, Config{}).Handler()
	rec, payload := doJSON(t, handler, http.MethodPost, "/v1/categorise", `{"title": "Senior Growth Manager"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", payload["status"])
	assert.Equal(t, float64(1), payload["count"])

	results := payload["results"].([]any)
	require.Len(t, results, 1)
	record := results[0].(map[string]any)
	assert.Equal(t, "Marketing", record["function"])
	assert.Equal(t, "Growth", record["sub_function"])
	assert.Equal(t, "Senior", record["seniority"])
	assert.Equal(t, 1.0, record["confidence"])
	assert.Equal(t, true, record["matched"])
	assert.Equal(t, "Senior Growth Manager", record["original_title"])
}

func TestCategoriseBatch(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, Config{}).Handler()
	rec, payload := doJSON(t, handler, http.MethodPost, "/v1/categorise",
		`{"titles": ["Backend Dev", "  ", "VP of Engineering"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	// The blank entry is dropped before classification.
	assert.Equal(t, float64(2), payload["count"])

	results := payload["results"].([]any)
	first := results[0].(map[string]any)
	assert.Equal(t, "Engineering", first["function"])
	assert.Equal(t, false, first["matched"])
}

func TestCategoriseValidation(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, Config{MaxTitlesPerRequest: 3}).Handler()

	cases := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{name: "no body", body: "", wantCode: http.StatusBadRequest, wantErr: "missing or invalid JSON"},
		{name: "not json", body: "title=x", wantCode: http.StatusBadRequest, wantErr: "missing or invalid JSON"},
		{name: "missing fields", body: `{"names": ["x"]}`, wantCode: http.StatusBadRequest, wantErr: "missing 'title' or 'titles'"},
		{name: "titles not a list", body: `{"titles": "Senior Dev"}`, wantCode: http.StatusBadRequest, wantErr: "invalid format for 'titles'"},
		{name: "all blank", body: `{"titles": ["", "   "]}`, wantCode: http.StatusBadRequest, wantErr: "no valid titles"},
		{name: "too many", body: `{"titles": ["a", "b", "c", "d"]}`, wantCode: http.StatusBadRequest, wantErr: "too many titles"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, payload := doJSON(t, handler, http.MethodPost, "/v1/categorise", tc.body)
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, "error", payload["status"])
			assert.Contains(t, payload["error"], tc.wantErr)
		})
	}
}

func TestCategoriseMethodNotAllowed(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, Config{}).Handler()
	rec, payload := doJSON(t, handler, http.MethodGet, "/v1/categorise", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "error", payload["status"])
}

func TestOperationalEndpoints(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, Config{}).Handler()

	t.Run("health", func(t *testing.T) {
		rec, payload := doJSON(t, handler, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "healthy", payload["status"])
	})

	t.Run("ready", func(t *testing.T) {
		rec, payload := doJSON(t, handler, http.MethodGet, "/ready", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ready", payload["status"], "defaults fallback still counts as loaded config")
	})

	t.Run("index", func(t *testing.T) {
		rec, payload := doJSON(t, handler, http.MethodGet, "/", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, payload, "endpoints")
	})

	t.Run("unknown path", func(t *testing.T) {
		rec, payload := doJSON(t, handler, http.MethodGet, "/nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "error", payload["status"])
	})

	t.Run("reload", func(t *testing.T) {
		rec, payload := doJSON(t, handler, http.MethodPost, "/reload-config", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "success", payload["status"])
		assert.Contains(t, payload, "mappings_version")
	})
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, Config{}).Handler()
	rec, _ := doJSON(t, handler, http.MethodGet, "/health", "")

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	// A burst of 2 and a very low refill rate makes the third request from
	// the same client fail deterministically.
	handler := newTestServer(t, Config{RateLimit: 0.001, RateBurst: 2}).Handler()

	var lastCode int
	var lastPayload map[string]any
	for i := 0; i < 3; i++ {
		rec, payload := doJSON(t, handler, http.MethodPost, "/v1/categorise", `{"title": "Backend Dev"}`)
		lastCode, lastPayload = rec.Code, payload
	}

	assert.Equal(t, http.StatusTooManyRequests, lastCode)
	assert.Contains(t, lastPayload["error"], "rate limit")

	// Operational endpoints stay reachable for throttled clients.
	rec, _ := doJSON(t, handler, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCategoriseCustomAPIVersion(t *testing.T) {
	t.Parallel()

	handler := newTestServer(t, Config{APIVersion: "v2"}).Handler()

	rec, _ := doJSON(t, handler, http.MethodPost, "/v2/categorise", `{"title": "Backend Dev"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, handler, http.MethodPost, "/v1/categorise", `{"title": "Backend Dev"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResponseRoundTrips(t *testing.T) {
	t.Parallel()

	// Absent axes serialize as omitted fields, warnings as a real array.
	handler := newTestServer(t, Config{}).Handler()
	_, payload := doJSON(t, handler, http.MethodPost, "/v1/categorise", `{"title": "VP of Engineering"}`)

	record := payload["results"].([]any)[0].(map[string]any)
	_, hasFunction := record["function"]
	assert.False(t, hasFunction, "absent function must be omitted: %v", record)
	assert.Equal(t, "VP", record["seniority"])

	warnings, ok := record["warnings"].([]any)
	require.True(t, ok)
	require.Len(t, warnings, 1)
	assert.Equal(t, fmt.Sprintf("%v", warnings[0]), taxonomy.WarnNoFunction)
}
