// ABOUTME: HTTP handlers for the percept collector API endpoints
// ABOUTME: Provides event ingestion, profile identify, pixel, journal read-back, and health

package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/percept-io/percept/internal/analytics"
	"github.com/percept-io/percept/internal/journal"
	"github.com/percept-io/percept/internal/observability"
)

// maxBodySize bounds ingestion request bodies.
const maxBodySize = 1 << 20

// transparentGIF is a 1x1 transparent GIF served by the pixel endpoint.
var transparentGIF, _ = base64.StdEncoding.DecodeString(
	"R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7")

// Handler provides HTTP handlers for the collector API.
type Handler struct {
	tracker *analytics.Tracker
	journal *journal.Journal
	metrics *observability.Metrics
}

// HandlerConfig holds configuration for API handlers. Tracker is
// required; Journal may be nil when journaling is disabled.
type HandlerConfig struct {
	Tracker *analytics.Tracker
	Journal *journal.Journal
	Metrics *observability.Metrics
}

// NewHandler creates a new API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		tracker: cfg.Tracker,
		journal: cfg.Journal,
		metrics: cfg.Metrics,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/track", h.HandleTrack)
	mux.HandleFunc("POST /api/v1/identify", h.HandleIdentify)
	mux.HandleFunc("GET /api/v1/pixel", h.HandlePixel)
	mux.HandleFunc("GET /api/v1/events/recent", h.HandleRecentEvents)
	mux.HandleFunc("GET /api/v1/stats", h.HandleStats)
	mux.HandleFunc("GET /api/v1/health", h.HandleHealth)
}

// Routes returns the full collector handler: API routes wrapped with
// the tracking and correlation middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return observability.CorrelationMiddleware(h.tracker.Middleware(mux))
}

// trackRequest is the body of POST /api/v1/track.
type trackRequest struct {
	Event      string               `json:"event"`
	Properties analytics.Properties `json:"properties"`
	User       *userPayload         `json:"user,omitempty"`
}

// userPayload carries the optional current-user attributes on
// ingestion requests.
type userPayload struct {
	ID    any    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u *userPayload) toUser() *analytics.User {
	if u == nil {
		return nil
	}
	return &analytics.User{ID: u.ID, Name: u.Name, Email: u.Email}
}

// HandleTrack handles event ingestion.
// POST /api/v1/track
func (h *Handler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Event == "" {
		writeError(w, http.StatusBadRequest, "event name is required")
		return
	}

	// The middleware already built a Scope from the request headers.
	// A user supplied in the body gets its own Process pass so the
	// profile sync happens for API callers without an auth layer.
	scope := analytics.ScopeFrom(r.Context())
	if user := req.User.toUser(); user != nil {
		scope = h.tracker.Process(r, user)
	}
	if scope == nil {
		scope = h.tracker.Process(r, nil)
	}

	scope.Track(r.Context(), r, req.Event, req.Properties)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"tracked":      !scope.DoNotTrack(),
		"do_not_track": scope.DoNotTrack(),
		"events":       len(scope.TrackedEvents()),
	})
}

// HandleIdentify handles profile sync requests.
// POST /api/v1/identify
func (h *Handler) HandleIdentify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req userPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	scope := analytics.ScopeFrom(r.Context())
	if scope == nil {
		scope = h.tracker.Process(r, nil)
	}

	scope.UpdateProfile(r.Context(), r, req.toUser())

	if scope.DoNotTrack() {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"synced":       false,
			"do_not_track": true,
		})
		return
	}
	if scope.Profile() == nil {
		writeError(w, http.StatusBadRequest, "user must have id, name, and email")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"synced":  true,
		"profile": scope.Profile(),
	})
}

// HandlePixel serves a 1x1 transparent GIF and tracks a page view.
// GET /api/v1/pixel
//
// The page path and referrer come from the query and headers of the
// pixel request itself; callers pass the viewed page as ?path=.
func (h *Handler) HandlePixel(w http.ResponseWriter, r *http.Request) {
	scope := analytics.ScopeFrom(r.Context())
	if scope == nil {
		scope = h.tracker.Process(r, nil)
	}

	props := analytics.Properties{}
	if page := r.URL.Query().Get("path"); page != "" {
		props["Current Path"] = page
	}
	scope.Track(r.Context(), r, "Page View", props)

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.WriteHeader(http.StatusOK)
	w.Write(transparentGIF)
}

// HandleRecentEvents returns the newest journal records.
// GET /api/v1/events/recent?n=
func (h *Handler) HandleRecentEvents(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "journal is not enabled")
		return
	}

	n := 20
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		if parsed > 1000 {
			parsed = 1000
		}
		n = parsed
	}

	records, err := h.journal.Recent(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("reading journal: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}

// HandleStats returns the metrics snapshot.
// GET /api/v1/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{}

	if h.metrics != nil {
		resp["tracking"] = h.metrics.Snapshot()
	}
	if h.journal != nil {
		resp["journal"] = h.journal.Stats()
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleHealth handles health check requests.
// GET /api/v1/health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := make(map[string]any)

	if h.journal != nil {
		stats := h.journal.Stats()
		checks["journal"] = fmt.Sprintf("ok (records: %d)", stats.Records)
	}
	if h.metrics != nil {
		snap := h.metrics.Snapshot()
		checks["sink_errors"] = snap.SinkErrors
		if snap.SinkErrors > 0 && snap.EventsTracked == 0 {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
