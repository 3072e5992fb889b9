package sheet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openMemory(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

// seed writes rows starting at row 1.
func seed(t *testing.T, s Sheet, rows [][]string) {
	t.Helper()
	for r, row := range rows {
		for c, v := range row {
			if err := s.UpdateCell(context.Background(), r+1, c+1, v); err != nil {
				t.Fatalf("UpdateCell(%d, %d) error = %v", r+1, c+1, err)
			}
		}
	}
}

func TestColumnLetter(t *testing.T) {
	tests := map[int]string{1: "A", 2: "B", 26: "Z", 27: "AA", 52: "AZ", 53: "BA", 703: "AAA"}
	for col, want := range tests {
		if got := ColumnLetter(col); got != want {
			t.Errorf("ColumnLetter(%d) = %q, want %q", col, got, want)
		}
	}
}

func TestColumnIndex(t *testing.T) {
	headers := []string{"First Name", "Last Name", "Firm"}
	if i, err := ColumnIndex(headers, "Firm"); err != nil || i != 3 {
		t.Errorf("ColumnIndex(Firm) = %d, %v; want 3", i, err)
	}
	if _, err := ColumnIndex(headers, "Draft Email"); !errors.Is(err, ErrColumnNotFound) {
		t.Errorf("ColumnIndex(missing) error = %v, want ErrColumnNotFound", err)
	}
}

func TestSQLiteRecords(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	seed(t, s, [][]string{
		{"First Name", "Last Name", "Firm"},
		{"Dana", "Reyes", "Acme"},
		{"Sam"},
	})

	headers, err := s.Headers(ctx)
	if err != nil {
		t.Fatalf("Headers() error = %v", err)
	}
	if !reflect.DeepEqual(headers, []string{"First Name", "Last Name", "Firm"}) {
		t.Errorf("Headers() = %v", headers)
	}

	records, err := s.Records(ctx)
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Records() returned %d records, want 2", len(records))
	}
	if records[0].Row != 2 || records[0].Fields["Firm"] != "Acme" {
		t.Errorf("records[0] = %+v", records[0])
	}
	if records[1].Row != 3 || records[1].Fields["Firm"] != "" || records[1].Fields["First Name"] != "Sam" {
		t.Errorf("short row not padded: %+v", records[1])
	}
}

func TestSQLiteUpdateCell(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	seed(t, s, [][]string{{"First Name"}, {"Dana"}})
	if err := s.UpdateCell(ctx, 2, 1, "Danielle"); err != nil {
		t.Fatalf("UpdateCell() error = %v", err)
	}
	if err := s.UpdateCell(ctx, 3, 1, "Sam"); err != nil {
		t.Fatalf("UpdateCell() error = %v", err)
	}

	records, err := s.Records(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, r := range records {
		names = append(names, r.Fields["First Name"])
	}
	if !reflect.DeepEqual(names, []string{"Danielle", "Sam"}) {
		t.Errorf("names = %v", names)
	}

	if err := s.UpdateCell(ctx, 0, 1, "x"); err == nil {
		t.Error("UpdateCell(0, 1) should fail")
	}
}

func TestEnsureColumns(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	seed(t, s, [][]string{{"First Name", "Draft Email"}})

	headers, err := s.Headers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got, err := EnsureColumns(ctx, s, headers, []string{"Dossier Summary", "Draft Email", "Podcast URL"}, quiet())
	if err != nil {
		t.Fatalf("EnsureColumns() error = %v", err)
	}
	want := []string{"First Name", "Draft Email", "Dossier Summary", "Podcast URL"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EnsureColumns() mismatch (-want +got):\n%s", diff)
	}

	stored, err := s.Headers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(stored, want) {
		t.Errorf("stored headers = %v, want %v", stored, want)
	}
}

func TestGoogleReadAndUpdate(t *testing.T) {
	var updates atomic.Int32
	var failures atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/spreadsheets/sheet-123/values/") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			resp := map[string]any{
				"range":  "'Leads'!A1:C3",
				"values": [][]any{{"First Name", "Firm"}, {"Dana", "Acme"}},
			}
			if err := json.NewEncoder(w).Encode(resp); err != nil {
				t.Errorf("encode: %v", err)
			}
		case http.MethodPut:
			if !strings.HasSuffix(r.URL.Path, "'Leads'!C2") {
				t.Errorf("update path = %q", r.URL.Path)
			}
			if r.URL.Query().Get("valueInputOption") != "RAW" {
				t.Errorf("valueInputOption = %q", r.URL.Query().Get("valueInputOption"))
			}
			if failures.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				if _, err := w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded"}}`)); err != nil {
					t.Errorf("write: %v", err)
				}
				return
			}
			updates.Add(1)
			if _, err := w.Write([]byte(`{"updatedCells":1}`)); err != nil {
				t.Errorf("write: %v", err)
			}
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer server.Close()

	g, err := NewGoogle(context.Background(), "", "sheet-123", "Leads", quiet(),
		option.WithEndpoint(server.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewGoogle() error = %v", err)
	}
	g.retryDelay = time.Millisecond

	records, err := g.Records(context.Background())
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 1 || records[0].Fields["Firm"] != "Acme" || records[0].Row != 2 {
		t.Errorf("Records() = %+v", records)
	}

	if err := g.UpdateCell(context.Background(), 2, 3, "[GUESS] dana@acme.com"); err != nil {
		t.Fatalf("UpdateCell() error = %v", err)
	}
	if updates.Load() != 1 {
		t.Errorf("successful updates = %d, want 1 after a retried 429", updates.Load())
	}
}

func TestNewGoogleMissingCredentials(t *testing.T) {
	_, err := NewGoogle(context.Background(), "/nonexistent/credentials.json", "id", "", quiet())
	if err == nil {
		t.Error("NewGoogle() with missing credentials file should fail")
	}
}
