package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maypok86/otter/v2"

	"github.com/codeGROOVE-dev/scout/pkg/archetype"
	"github.com/codeGROOVE-dev/scout/pkg/enrich"
	"github.com/codeGROOVE-dev/scout/pkg/lead"
)

const (
	leadsCacheKey = "leads"
	leadsTTL      = 60 * time.Second
	enrichTimeout = 2 * time.Minute
	requestsPerIP = 15
)

// leadService is the part of enrich.Pipeline the server uses.
type leadService interface {
	Leads(ctx context.Context) ([]*lead.Lead, error)
	ProcessRow(ctx context.Context, row int) (*enrich.Result, error)
}

type rateLimiter struct {
	requests map[string][]time.Time
	limit    int
	mu       sync.Mutex
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Minute)

	var valid []time.Time
	for _, t := range rl.requests[ip] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[ip] = valid
		return false
	}

	rl.requests[ip] = append(valid, now)
	return true
}

type server struct {
	leads   leadService
	cache   *otter.Cache[string, []*lead.Lead]
	limiter *rateLimiter
	logger  *slog.Logger
}

func newServer(leads leadService, logger *slog.Logger) *server {
	return &server{
		leads: leads,
		cache: otter.Must(&otter.Options[string, []*lead.Lead]{
			MaximumSize:      16,
			ExpiryCalculator: otter.ExpiryWriting[string, []*lead.Lead](leadsTTL),
		}),
		limiter: newRateLimiter(requestsPerIP),
		logger:  logger,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/v1/leads", s.handleLeads)
	mux.HandleFunc("POST /api/v1/leads/{row}/enrich", s.handleEnrich)

	antiCSRF := http.NewCrossOriginProtection()
	return s.wrap(antiCSRF.Handler(mux))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *server) wrap(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		defer func() {
			if err := recover(); err != nil {
				const size = 64 << 10
				buf := make([]byte, size)
				buf = buf[:runtime.Stack(buf, false)]

				s.logger.Error("PANIC: Request handler crashed",
					"error", err,
					"path", r.URL.Path,
					"method", r.Method,
					"request_id", requestID,
					"client_ip", clientIP(r),
					"stack", string(buf))
				s.writeError(w, requestID, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", "")
			}
		}()

		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		handler.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (s *server) writeJSON(w http.ResponseWriter, requestID string, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response",
			"request_id", requestID,
			"error", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, requestID string, status int, code, msg, details string) {
	s.writeJSON(w, requestID, status, errorResponse{Error: msg, Details: details, Code: code})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, w.Header().Get("X-Request-ID"), http.StatusOK, map[string]string{"status": "ok"})
}

type leadView struct {
	*lead.Lead

	Initials  string          `json:"initials"`
	Archetype string          `json:"archetype"`
	Badge     archetype.Badge `json:"badge"`
	Labels    []string        `json:"labels"`
}

type leadsResponse struct {
	Leads    []leadView `json:"leads"`
	Statuses []string   `json:"statuses"`
	Total    int        `json:"total"`
}

func (s *server) loadLeads(ctx context.Context, refresh bool) ([]*lead.Lead, bool, error) {
	if refresh {
		s.cache.Invalidate(leadsCacheKey)
	} else if leads, ok := s.cache.GetIfPresent(leadsCacheKey); ok {
		return leads, true, nil
	}
	leads, err := s.leads.Leads(ctx)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(leadsCacheKey, leads)
	return leads, false, nil
}

func (s *server) handleLeads(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := w.Header().Get("X-Request-ID")
	q := r.URL.Query()

	all, hit, err := s.loadLeads(r.Context(), q.Get("refresh") == "1")
	if err != nil {
		s.logger.Error("Loading leads failed",
			"request_id", requestID,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		s.writeError(w, requestID, http.StatusBadGateway, "SHEET_ERROR", "Unable to load leads", "The spreadsheet could not be read. Please try again.")
		return
	}

	filtered := lead.Filter(all, q.Get("q"), q.Get("status"))
	resp := leadsResponse{
		Leads:    make([]leadView, 0, len(filtered)),
		Statuses: lead.Statuses(all),
		Total:    len(all),
	}
	for _, l := range filtered {
		label := l.Archetype()
		resp.Leads = append(resp.Leads, leadView{
			Lead:      l,
			Initials:  l.Initials(),
			Archetype: label,
			Badge:     archetype.BadgeFor(label),
			Labels:    l.Labels(),
		})
	}

	cache := "miss"
	if hit {
		cache = "memory-hit"
	}
	w.Header().Set("X-Cache", cache)
	s.writeJSON(w, requestID, http.StatusOK, resp)
	s.logger.Info("Leads request completed",
		"request_id", requestID,
		"returned", len(resp.Leads),
		"total", resp.Total,
		"cache", cache,
		"duration_ms", time.Since(start).Milliseconds())
}

func (s *server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := w.Header().Get("X-Request-ID")
	ip := clientIP(r)

	if !s.limiter.allow(ip) {
		s.logger.Error("Rate limit exceeded",
			"request_id", requestID,
			"client_ip", ip)
		s.writeError(w, requestID, http.StatusTooManyRequests, "RATE_LIMIT", "Rate limit exceeded", "")
		return
	}

	row, err := strconv.Atoi(r.PathValue("row"))
	if err != nil || row < 2 {
		s.writeError(w, requestID, http.StatusBadRequest, "INVALID_ROW", "Invalid row", "Rows start at 2; row 1 is the header.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), enrichTimeout)
	defer cancel()

	s.logger.Info("Enrichment started", "request_id", requestID, "row", row, "client_ip", ip)
	res, err := s.leads.ProcessRow(ctx, row)
	if err != nil {
		status, code, msg := http.StatusInternalServerError, "INTERNAL_ERROR", "Enrichment failed"
		switch {
		case errors.Is(err, enrich.ErrRowNotFound):
			status, code, msg = http.StatusNotFound, "ROW_NOT_FOUND", "Lead not found"
		case errors.Is(err, enrich.ErrSkipped):
			status, code, msg = http.StatusUnprocessableEntity, "NO_LINKEDIN", "Lead has no LinkedIn URL"
		case errors.Is(err, context.DeadlineExceeded):
			status, code, msg = http.StatusGatewayTimeout, "TIMEOUT", "Enrichment took too long"
		case errors.Is(err, context.Canceled):
			status, code, msg = http.StatusRequestTimeout, "CANCELED", "Request was canceled"
		}
		s.logger.Error("Enrichment failed",
			"request_id", requestID,
			"row", row,
			"code", code,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		s.writeError(w, requestID, status, code, msg, "")
		return
	}

	s.cache.Invalidate(leadsCacheKey)
	s.writeJSON(w, requestID, http.StatusOK, res)
	s.logger.Info("Enrichment completed",
		"request_id", requestID,
		"row", row,
		"archetype", res.Analysis.Archetype(),
		"duration_ms", time.Since(start).Milliseconds())
}
