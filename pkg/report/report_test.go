package report

import (
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/codeGROOVE-dev/scout/pkg/enrich"
	"github.com/codeGROOVE-dev/scout/pkg/lead"
)

func init() {
	color.NoColor = true
}

func TestLeads(t *testing.T) {
	leads := []*lead.Lead{
		{FirstName: "Dana", LastName: "Reyes", Firm: "Acme", DossierSummary: "Archetype: The Analyst\nDriver: x", FoundEmail: "d@acme.com", Row: 2},
		{FirstName: "sam", Firm: "Beta", DossierSummary: "DISC: i", Row: 3},
		{FirstName: "Lee", LastName: "Park", Firm: strings.Repeat("Long Firm ", 5), Row: 4},
	}
	got := Leads(leads)
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("Leads() produced %d lines, want 5:\n%s", len(lines), got)
	}

	tests := []struct {
		line  string
		wants []string
	}{
		{lines[2], []string{"DR", "Dana Reyes", "Acme", "ANLY", "Email"}},
		{lines[3], []string{"S ", "sam", "Beta", "I "}},
		{lines[4], []string{"LP", "Lee Park", "…", "UNK"}},
	}
	for _, tt := range tests {
		for _, want := range tt.wants {
			if !strings.Contains(tt.line, want) {
				t.Errorf("line %q missing %q", tt.line, want)
			}
		}
	}
}

func TestLeadsEmpty(t *testing.T) {
	if got := Leads(nil); got != "No leads found\n" {
		t.Errorf("Leads(nil) = %q", got)
	}
}

func TestDistribution(t *testing.T) {
	leads := []*lead.Lead{
		{DossierSummary: "Archetype: The Guardian"},
		{DossierSummary: "Archetype: The Guardian"},
		{DossierSummary: "Archetype: The Controller"},
		{},
	}
	got := Distribution(leads)
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("Distribution() produced %d lines:\n%s", len(lines), got)
	}
	if !strings.HasPrefix(lines[2], "The Guardian") || !strings.HasSuffix(lines[2], strings.Repeat("█", maxBarWidth)+" 2") {
		t.Errorf("top bar = %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "The Controller") || !strings.HasSuffix(lines[3], strings.Repeat("█", maxBarWidth/2)+" 1") {
		t.Errorf("second bar = %q", lines[3])
	}

	if got := Distribution([]*lead.Lead{{}}); got != "No dossiers yet\n" {
		t.Errorf("Distribution(no dossiers) = %q", got)
	}
}

func TestSummary(t *testing.T) {
	got := Summary(enrich.Summary{Processed: 3, Skipped: 1, Failed: 2, LimitReached: true})
	want := "Enriched 3 · skipped 1 · failed 2 · safety limit reached\n"
	if got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}

func TestResult(t *testing.T) {
	res := &enrich.Result{
		Row:     4,
		Dossier: "Archetype: The Guardian\nDriver: Stability",
		Guess:   &enrich.Guess{Guess: "dana@acme.com", Reason: "New role"},
	}
	got, err := Result(res, "notty")
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	for _, want := range []string{"Row 4", "Archetype: The Guardian", "Driver: Stability", "dana@acme.com", "No draft generated"} {
		if !strings.Contains(got, want) {
			t.Errorf("Result() missing %q:\n%s", want, got)
		}
	}
}
