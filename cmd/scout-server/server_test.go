package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/codeGROOVE-dev/scout/pkg/enrich"
	"github.com/codeGROOVE-dev/scout/pkg/lead"
)

type fakeLeads struct {
	leads      []*lead.Lead
	err        error
	processErr error
	loads      atomic.Int32
	processed  []int
}

func (f *fakeLeads) Leads(context.Context) ([]*lead.Lead, error) {
	f.loads.Add(1)
	return f.leads, f.err
}

func (f *fakeLeads) ProcessRow(_ context.Context, row int) (*enrich.Result, error) {
	f.processed = append(f.processed, row)
	if f.processErr != nil {
		return nil, f.processErr
	}
	return &enrich.Result{Row: row, Analysis: &enrich.Analysis{PsychProfile: "The Guardian"}, Dossier: "Archetype: The Guardian", Draft: "Hi Dana,"}, nil
}

func testLeads() []*lead.Lead {
	return []*lead.Lead{
		lead.FromRecord(2, map[string]string{"First Name": "Dana", "Last Name": "Reyes", "Firm": "Acme", "Status": "Email Found", "Dossier Summary": "Archetype: The Analyst"}),
		lead.FromRecord(3, map[string]string{"First Name": "Sam", "Firm": "Beta", "Status": "New"}),
	}
}

func newTestServer(f *fakeLeads) http.Handler {
	return newServer(f, slog.New(slog.NewTextHandler(io.Discard, nil))).routes()
}

func TestHandleLeads(t *testing.T) {
	f := &fakeLeads{leads: testLeads()}
	h := newTestServer(f)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/leads?q=acme", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if rec.Header().Get("X-Cache") != "miss" {
		t.Errorf("X-Cache = %q, want miss", rec.Header().Get("X-Cache"))
	}

	var resp struct {
		Leads []struct {
			FirstName string   `json:"first_name"`
			Initials  string   `json:"initials"`
			Archetype string   `json:"archetype"`
			Labels    []string `json:"labels"`
			Badge     struct {
				Code string `json:"code"`
			} `json:"badge"`
			Row int `json:"row"`
		} `json:"leads"`
		Statuses []string `json:"statuses"`
		Total    int      `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || len(resp.Leads) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	got := resp.Leads[0]
	if got.FirstName != "Dana" || got.Initials != "DR" || got.Archetype != "The Analyst" || got.Badge.Code != "ANLY" || got.Row != 2 {
		t.Errorf("lead = %+v", got)
	}
	if len(got.Labels) != 1 || got.Labels[0] != "Active" {
		t.Errorf("labels = %v", got.Labels)
	}
	if len(resp.Statuses) != 2 {
		t.Errorf("statuses = %v", resp.Statuses)
	}
}

func TestHandleLeadsCaching(t *testing.T) {
	f := &fakeLeads{leads: testLeads()}
	h := newTestServer(f)

	for i, want := range []string{"miss", "memory-hit"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/leads?status=New", http.NoBody))
		if got := rec.Header().Get("X-Cache"); got != want {
			t.Errorf("request %d X-Cache = %q, want %q", i, got, want)
		}
	}
	if f.loads.Load() != 1 {
		t.Errorf("sheet loads = %d, want 1", f.loads.Load())
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/leads?refresh=1", http.NoBody))
	if rec.Header().Get("X-Cache") != "miss" || f.loads.Load() != 2 {
		t.Errorf("refresh did not reload: X-Cache = %q, loads = %d", rec.Header().Get("X-Cache"), f.loads.Load())
	}
}

func TestHandleLeadsSheetError(t *testing.T) {
	h := newTestServer(&fakeLeads{err: fmt.Errorf("boom")})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/leads", http.NoBody))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != "SHEET_ERROR" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestHandleEnrich(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		processErr error
		wantStatus int
		wantCode   string
	}{
		{"ok", "/api/v1/leads/2/enrich", nil, http.StatusOK, ""},
		{"bad row", "/api/v1/leads/abc/enrich", nil, http.StatusBadRequest, "INVALID_ROW"},
		{"header row", "/api/v1/leads/1/enrich", nil, http.StatusBadRequest, "INVALID_ROW"},
		{"not found", "/api/v1/leads/9/enrich", fmt.Errorf("%w: 9", enrich.ErrRowNotFound), http.StatusNotFound, "ROW_NOT_FOUND"},
		{"skipped", "/api/v1/leads/3/enrich", enrich.ErrSkipped, http.StatusUnprocessableEntity, "NO_LINKEDIN"},
		{"timeout", "/api/v1/leads/2/enrich", fmt.Errorf("gathering intel: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "TIMEOUT"},
		{"other", "/api/v1/leads/2/enrich", fmt.Errorf("sheet down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&fakeLeads{processErr: tt.processErr})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, http.NoBody))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantCode == "" {
				var res enrich.Result
				if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
					t.Fatal(err)
				}
				if res.Draft != "Hi Dana," || res.Row != 2 {
					t.Errorf("result = %+v", res)
				}
				return
			}
			var resp errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleEnrichInvalidatesLeadCache(t *testing.T) {
	f := &fakeLeads{leads: testLeads()}
	h := newTestServer(f)

	get := func() string {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/leads", http.NoBody))
		return rec.Header().Get("X-Cache")
	}
	get()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/leads/2/enrich", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("enrich status = %d", rec.Code)
	}
	if got := get(); got != "miss" {
		t.Errorf("X-Cache after enrich = %q, want miss", got)
	}
}

func TestEnrichRateLimit(t *testing.T) {
	f := &fakeLeads{}
	h := newTestServer(f)

	var last int
	for range requestsPerIP + 1 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/leads/2/enrich", http.NoBody))
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("status after %d requests = %d, want 429", requestsPerIP+1, last)
	}
	if len(f.processed) != requestsPerIP {
		t.Errorf("processed %d requests, want %d", len(f.processed), requestsPerIP)
	}
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeLeads{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing")
	}
}
