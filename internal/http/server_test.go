package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/carlmjohnson/be"

	"findash/internal/loader"
	"findash/internal/middleware/ratelimit"
	"findash/internal/narrative"
	"findash/internal/pipeline"
	"findash/internal/services"
	"findash/internal/sheets/memory"
)

type stubProvider struct {
	calls int
	err   error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return "You spent $1,944.95 in March.", nil
}

func newTestServer(t *testing.T, provider narrative.Provider, opts ...Option) (*Server, *memory.Store) {
	t.Helper()
	tx, mapping := memory.Demo()
	engine, err := pipeline.New(pipeline.DefaultPolicy())
	be.NilErr(t, err)
	var n *narrative.Service
	if provider != nil {
		n = narrative.NewService(provider)
	}
	svc := services.NewReportService(loader.New(tx, mapping, engine), n, nil)
	srv := NewServer(":0", svc, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, tx
}

func do(srv *Server, method, target string, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, r)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	be.NilErr(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(srv, http.MethodGet, path, "")
		be.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestDashboardEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rr := do(srv, http.MethodGet, "/api/dashboard?months=mar", "")
	be.Equal(t, http.StatusOK, rr.Code)
	be.True(t, rr.Header().Get("X-Request-ID") != "")
	be.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	got := decode[struct {
		Selection struct {
			Months []string `json:"months"`
		} `json:"selection"`
		Metrics struct {
			ActualSpending struct {
				Amount  json.Number `json:"amount"`
				Display string      `json:"display"`
			} `json:"actual_spending"`
		} `json:"metrics"`
		Snapshot struct {
			Source string `json:"source"`
		} `json:"snapshot"`
		NarrativeEnabled bool `json:"narrative_enabled"`
	}](t, rr)
	be.AllEqual(t, []string{"March"}, got.Selection.Months)
	be.Equal(t, "$1,944.95", got.Metrics.ActualSpending.Display)
	be.Equal(t, json.Number("1944.95"), got.Metrics.ActualSpending.Amount)
	be.False(t, got.NarrativeEnabled)
}

func TestSelectionErrors(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"unknown month", http.MethodGet, "/api/dashboard?months=Smarch", http.StatusBadRequest},
		{"quarter out of range", http.MethodGet, "/api/transactions?quarters=5", http.StatusBadRequest},
		{"quarter not a number", http.MethodGet, "/api/dashboard?quarters=first", http.StatusBadRequest},
		{"post to read endpoint", http.MethodPost, "/api/dashboard", http.StatusMethodNotAllowed},
		{"get to refresh", http.MethodGet, "/api/refresh", http.StatusMethodNotAllowed},
		{"unknown route", http.MethodGet, "/api/expenses", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(srv, tt.method, tt.target, "")
			be.Equal(t, tt.want, rr.Code)
			be.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		})
	}
}

func TestFatalSourceReturns503(t *testing.T) {
	srv, tx := newTestServer(t, nil)
	tx.Set([]string{"Date", "Title", "Category", "Type"}, [][]string{{"1/1/2025", "x", "y", "Actual"}})

	rr := do(srv, http.MethodGet, "/api/dashboard", "")
	be.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := decode[ErrorBody](t, rr)
	be.Equal(t, CodeMissingColumns, body.Code)
	be.AllEqual(t, []string{"Amount"}, body.MissingFields)
	be.False(t, strings.Contains(rr.Body.String(), "metrics"))

	rr = do(srv, http.MethodGet, "/readyz", "")
	be.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = do(srv, http.MethodGet, "/healthz", "")
	be.Equal(t, http.StatusOK, rr.Code)
}

func TestTransactionsOptionsQuality(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(srv, http.MethodGet, "/api/transactions?quarters=Q1&include=Wants", "")
	be.Equal(t, http.StatusOK, rr.Code)
	list := decode[struct {
		Count int `json:"count"`
	}](t, rr)
	be.Equal(t, 3, list.Count)

	rr = do(srv, http.MethodGet, "/api/options", "")
	be.Equal(t, http.StatusOK, rr.Code)
	opts := decode[pipeline.Options](t, rr)
	be.AllEqual(t, []string{"January", "February", "March"}, opts.Months)

	rr = do(srv, http.MethodGet, "/api/quality", "")
	be.Equal(t, http.StatusOK, rr.Code)
	q := decode[struct {
		Summary services.QualitySummary `json:"summary"`
	}](t, rr)
	be.Equal(t, 20, q.Summary.Kept)
}

func TestRefreshEndpoint(t *testing.T) {
	srv, tx := newTestServer(t, nil)
	first := decode[struct {
		Snapshot services.SnapshotInfo `json:"snapshot"`
	}](t, do(srv, http.MethodGet, "/api/dashboard", ""))

	tx.Set([]string{"Date", "Title", "Category", "Type", "Amount"}, [][]string{
		{"1/5/2025", "Coffee", "Leisure", "Actual", "4.50"},
	})
	rr := do(srv, http.MethodPost, "/api/refresh", "")
	be.Equal(t, http.StatusOK, rr.Code)
	res := decode[RefreshResponse](t, rr)
	be.True(t, res.Refreshed)
	be.Equal(t, 1, res.Snapshot.Rows)
	be.True(t, res.Snapshot.ID != first.Snapshot.ID)
}

func TestNarrativeEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rr := do(srv, http.MethodPost, "/api/narrative?months=March", "")
	be.Equal(t, http.StatusServiceUnavailable, rr.Code)
	be.Equal(t, CodeNotConfigured, decode[ErrorBody](t, rr).Code)

	p := &stubProvider{}
	srv, _ = newTestServer(t, p)
	rr = do(srv, http.MethodPost, "/api/narrative", `{"months": ["mar"]}`)
	be.Equal(t, http.StatusOK, rr.Code)
	got := decode[struct {
		Text     string   `json:"text"`
		Provider string   `json:"provider"`
		Period   []string `json:"period"`
		Cached   bool     `json:"cached"`
	}](t, rr)
	be.Equal(t, "You spent $1,944.95 in March.", got.Text)
	be.Equal(t, "stub", got.Provider)
	be.False(t, got.Cached)

	rr = do(srv, http.MethodPost, "/api/narrative?months=March", "")
	be.Equal(t, http.StatusOK, rr.Code)
	be.Equal(t, 1, p.calls)

	rr = do(srv, http.MethodPost, "/api/narrative", `{"months": "March"}`)
	be.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNarrativeUpstreamFailureIsIsolated(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{err: errors.New("overloaded")})

	rr := do(srv, http.MethodPost, "/api/narrative", "")
	be.Equal(t, http.StatusBadGateway, rr.Code)
	be.Equal(t, CodeUpstream, decode[ErrorBody](t, rr).Code)

	rr = do(srv, http.MethodGet, "/api/dashboard", "")
	be.Equal(t, http.StatusOK, rr.Code)
}

func TestPostEndpointsAreRateLimited(t *testing.T) {
	srv, _ := newTestServer(t, nil, WithRateLimit(ratelimit.Config{Requests: 1, Window: time.Hour}))

	be.Equal(t, http.StatusOK, do(srv, http.MethodPost, "/api/refresh", "").Code)
	rr := do(srv, http.MethodPost, "/api/refresh", "")
	be.Equal(t, http.StatusTooManyRequests, rr.Code)
	be.Equal(t, CodeRateLimited, decode[ErrorBody](t, rr).Code)
	be.True(t, rr.Header().Get("Retry-After") != "")

	// reads are not limited
	for range 3 {
		be.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/api/options", "").Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, WithAllowedOrigins([]string{"*"}))
	do(srv, http.MethodGet, "/api/dashboard", "")

	r := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	r.Header.Set("Origin", "https://dash.example.com")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, r)
	be.Equal(t, http.StatusOK, rr.Code)
	be.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	m := decode[MetricsResponse](t, rr)
	be.Equal(t, 1, m.Service.Loads)
	be.True(t, m.Service.SnapshotID != "")
	be.Equal(t, int64(1), m.HTTP.TotalRequests)
}
