// Package lead models prospect records read from the leads sheet.
package lead

import (
	"strings"

	"github.com/codeGROOVE-dev/scout/pkg/archetype"
)

// Sheet column names.
const (
	ColFirstName   = "First Name"
	ColLastName    = "Last Name"
	ColFirm        = "Firm"
	ColLinkedInURL = "LinkedIn URL"
	ColFoundEmail  = "Found Email"
	ColStatus      = "Status"
	ColNotes       = "Notes"
	ColWebsite     = "Website"

	ColDossier      = "Dossier Summary"
	ColDraftEmail   = "Draft Email"
	ColProfileImage = "Profile Image"
	ColPodcastName  = "Podcast Name"
	ColPodcastURL   = "Podcast URL"
)

// EnrichmentColumns are added to the sheet on first use, in this order.
var EnrichmentColumns = []string{ColDossier, ColDraftEmail, ColProfileImage, ColPodcastName, ColPodcastURL}

// Lead is a single prospect row.
type Lead struct {
	Fields         map[string]string `json:"-"`
	FirstName      string            `json:"first_name"`
	LastName       string            `json:"last_name"`
	Firm           string            `json:"firm"`
	LinkedInURL    string            `json:"linkedin_url,omitempty"`
	FoundEmail     string            `json:"found_email,omitempty"`
	Status         string            `json:"status,omitempty"`
	Website        string            `json:"website,omitempty"`
	DossierSummary string            `json:"dossier_summary,omitempty"`
	DraftEmail     string            `json:"draft_email,omitempty"`
	ProfileImage   string            `json:"profile_image,omitempty"`
	PodcastName    string            `json:"podcast_name,omitempty"`
	PodcastURL     string            `json:"podcast_url,omitempty"`
	Row            int               `json:"row"` // 1-based sheet row; the header is row 1
}

// FromRecord builds a Lead from a sheet row keyed by header name.
func FromRecord(row int, record map[string]string) *Lead {
	fields := make(map[string]string, len(record))
	for k, v := range record {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		fields[k] = strings.TrimSpace(v)
	}

	return &Lead{
		Row:            row,
		Fields:         fields,
		FirstName:      fields[ColFirstName],
		LastName:       fields[ColLastName],
		Firm:           fields[ColFirm],
		LinkedInURL:    fields[ColLinkedInURL],
		FoundEmail:     fields[ColFoundEmail],
		Status:         fields[ColStatus],
		Website:        fields[ColWebsite],
		DossierSummary: fields[ColDossier],
		DraftEmail:     fields[ColDraftEmail],
		ProfileImage:   fields[ColProfileImage],
		PodcastName:    fields[ColPodcastName],
		PodcastURL:     fields[ColPodcastURL],
	}
}

// FullName returns "First Last".
func (l *Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// Initials returns up to two letters used in place of a profile image.
func (l *Lead) Initials() string {
	var b strings.Builder
	for _, s := range []string{l.FirstName, l.LastName} {
		for _, r := range s {
			b.WriteRune(r)
			break
		}
	}
	return strings.ToUpper(b.String())
}

// Enrichable reports whether the lead has enough to research. Leads without a
// LinkedIn URL are skipped entirely.
func (l *Lead) Enrichable() bool {
	return l.LinkedInURL != ""
}

// NeedsEmailGuess reports whether the email column is empty, marked not found,
// or holds an earlier guess that should be refreshed.
func (l *Lead) NeedsEmailGuess() bool {
	return l.FoundEmail == "" ||
		strings.Contains(l.FoundEmail, "Not Found") ||
		strings.Contains(l.FoundEmail, "GUESS")
}

// Archetype returns the archetype label recorded in the lead's dossier.
func (l *Lead) Archetype() string {
	return archetype.FromDossier(l.DossierSummary)
}

// Labels returns the status pills shown next to a lead.
func (l *Lead) Labels() []string {
	var labels []string
	if strings.Contains(l.Status, "Found") {
		labels = append(labels, "Active")
	}
	if l.FoundEmail != "" {
		labels = append(labels, "Email")
	}
	if l.LinkedInURL != "" {
		labels = append(labels, "LinkedIn")
	}
	if l.DraftEmail != "" {
		labels = append(labels, "Draft Ready")
	}
	return labels
}

// Filter returns the leads whose first name, last name or firm contains query
// (case-insensitive) and whose status equals status. An empty status or "All"
// matches every status.
func Filter(leads []*Lead, query, status string) []*Lead {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]*Lead, 0, len(leads))
	for _, l := range leads {
		if status != "" && status != "All" && l.Status != status {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(l.FirstName), query) &&
			!strings.Contains(strings.ToLower(l.LastName), query) &&
			!strings.Contains(strings.ToLower(l.Firm), query) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Statuses returns the distinct non-empty statuses in sheet order.
func Statuses(leads []*Lead) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range leads {
		if l.Status == "" || seen[l.Status] {
			continue
		}
		seen[l.Status] = true
		out = append(out, l.Status)
	}
	return out
}
