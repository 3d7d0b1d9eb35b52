package http

import (
	"net/http"
	"time"

	applog "findash/internal/log"
	"findash/internal/middleware/ratelimit"
	"findash/internal/middleware/security"
	"findash/internal/middleware/trace"
	"findash/internal/pipeline"
	"findash/internal/services"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w, r)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w, r)
}

// handleReady reports ready once a snapshot can be produced.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w, r)
		return
	}
	if err := s.svc.Ready(r.Context()); err != nil {
		ErrorFromService(r.Context(), err, http.StatusServiceUnavailable).Write(w, r)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w, r)
}

// selection parses the query selection of a GET endpoint, writing a 400 on
// failure.
func (s *Server) selection(w http.ResponseWriter, r *http.Request) (pipeline.Selection, bool) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w, r)
		return pipeline.Selection{}, false
	}
	sel, err := ParseSelection(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return pipeline.Selection{}, false
	}
	return sel, true
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	d, err := s.svc.Dashboard(r.Context(), sel)
	if err != nil {
		s.fail(w, r, err, http.StatusInternalServerError, applog.OpReport)
		return
	}
	NewJSONResponse().Body(d).Write(w, r)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	list, err := s.svc.Transactions(r.Context(), sel)
	if err != nil {
		s.fail(w, r, err, http.StatusInternalServerError, applog.OpReport)
		return
	}
	NewJSONResponse().Body(list).Write(w, r)
}

func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w, r)
		return
	}
	q, err := s.svc.Quality(r.Context())
	if err != nil {
		s.fail(w, r, err, http.StatusInternalServerError, applog.OpLoad)
		return
	}
	NewJSONResponse().Body(q).Write(w, r)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w, r)
		return
	}
	opts, err := s.svc.Options(r.Context())
	if err != nil {
		s.fail(w, r, err, http.StatusInternalServerError, applog.OpLoad)
		return
	}
	NewJSONResponse().Body(opts).Write(w, r)
}

// RefreshResponse is returned by POST /api/refresh.
type RefreshResponse struct {
	Refreshed bool                  `json:"refreshed"`
	Snapshot  services.SnapshotInfo `json:"snapshot"`
}

// handleRefresh discards the memoized snapshot and narratives and reloads
// synchronously.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w, r)
		return
	}
	info, err := s.svc.Refresh(r.Context())
	if err != nil {
		s.fail(w, r, err, http.StatusInternalServerError, applog.OpRefresh)
		return
	}
	s.structured.LogSnapshotLoaded(r.Context(), info.ID, info.Source, info.Rows, info.Warnings)
	NewJSONResponse().Body(RefreshResponse{Refreshed: true, Snapshot: info}).Write(w, r)
}

// handleNarrative generates the narrative for a selection given in the
// body or the query string. Failures here never affect other endpoints.
func (s *Server) handleNarrative(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w, r)
		return
	}
	sel, err := SelectionFromRequest(w, r)
	if err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}
	res, err := s.svc.Narrative(r.Context(), sel)
	if err != nil {
		s.fail(w, r, err, http.StatusBadGateway, applog.OpNarrate)
		return
	}
	s.structured.LogNarrative(r.Context(), res.Period, res.Provider, res.Cached)
	NewJSONResponse().Body(res).Write(w, r)
}

// MetricsResponse is the operational counters of the server.
type MetricsResponse struct {
	Service   services.Status           `json:"service"`
	HTTP      trace.Metrics             `json:"http"`
	RateLimit ratelimit.Metrics         `json:"rate_limit"`
	Security  security.DetectionMetrics `json:"security"`
	Time      time.Time                 `json:"time"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w, r)
		return
	}
	NewJSONResponse().Body(MetricsResponse{
		Service:   s.svc.Status(),
		HTTP:      s.tracer.GetMetrics(),
		RateLimit: s.limiter.GetMetrics(),
		Security:  s.detector.GetMetrics(),
		Time:      time.Now().UTC(),
	}).Write(w, r)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, fallback int, op string) {
	resp := ErrorFromService(r.Context(), err, fallback)
	if resp.StatusCode() >= http.StatusInternalServerError {
		s.structured.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op,
			applog.NewFields().WithRequestID(trace.GetRequestID(r.Context())))
	}
	resp.Write(w, r)
}
