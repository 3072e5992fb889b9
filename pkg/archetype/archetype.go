// Package archetype defines the four sales-psychology drivers assigned to leads.
package archetype

import (
	"regexp"
	"strings"
)

// Archetype is one of the four hidden drivers a lead can be classified as.
type Archetype string

// The four drivers.
const (
	Controller    Archetype = "The Controller"
	SocialClimber Archetype = "The Social Climber"
	Guardian      Archetype = "The Guardian"
	Analyst       Archetype = "The Analyst"

	// Unknown is reported when a dossier carries no recognizable archetype.
	Unknown Archetype = "Unknown"

	// Default is the safest bet when the classifier is unsure.
	Default = Guardian
)

// All lists the drivers in the order the classifier prompt presents them.
var All = []Archetype{Controller, SocialClimber, Guardian, Analyst}

var (
	dossierArchetypeRegex = regexp.MustCompile(`(?i)Archetype:\s*(.+)`)
	dossierDISCRegex      = regexp.MustCompile(`(?i)DISC:\s*([DISC])`)
)

// Parse maps free text such as "Guardian" or "the analyst (logic)" to an Archetype.
func Parse(s string) (Archetype, bool) {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "controller"):
		return Controller, true
	case strings.Contains(lower, "social climber"):
		return SocialClimber, true
	case strings.Contains(lower, "guardian"):
		return Guardian, true
	case strings.Contains(lower, "analyst"):
		return Analyst, true
	default:
		return Unknown, false
	}
}

// FromDossier extracts the archetype label written into a dossier summary.
// Dossiers written by the older DISC classifier come back as "DISC: X".
func FromDossier(dossier string) string {
	if m := dossierArchetypeRegex.FindStringSubmatch(dossier); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := dossierDISCRegex.FindStringSubmatch(dossier); m != nil {
		return "DISC: " + strings.ToUpper(m[1])
	}
	return string(Unknown)
}

// Badge is the short code and color shown next to a lead.
type Badge struct {
	Code  string `json:"code"`
	Color string `json:"color"`
}

var unknownBadge = Badge{Code: "UNK", Color: "#9e9e9e"}

// BadgeFor returns the badge for a label produced by FromDossier.
func BadgeFor(label string) Badge {
	switch {
	case strings.Contains(label, "Controller"):
		return Badge{Code: "CTRL", Color: "#d32f2f"}
	case strings.Contains(label, "Social Climber"):
		return Badge{Code: "STAR", Color: "#7b1fa2"}
	case strings.Contains(label, "Guardian"):
		return Badge{Code: "GRDN", Color: "#388e3c"}
	case strings.Contains(label, "Analyst"):
		return Badge{Code: "ANLY", Color: "#1976d2"}
	case strings.HasPrefix(label, "DISC: "):
		letter := strings.TrimPrefix(label, "DISC: ")
		b := Badge{Code: letter, Color: unknownBadge.Color}
		switch letter {
		case "D":
			b.Color = "#d32f2f"
		case "I":
			b.Color = "#fbc02d"
		case "S":
			b.Color = "#388e3c"
		case "C":
			b.Color = "#1976d2"
		}
		return b
	default:
		return unknownBadge
	}
}

// Pitch returns the outreach strategy used when writing to a lead of this archetype.
func Pitch(a Archetype) string {
	switch a {
	case Controller:
		return `Appeal to Control. Strategy: 'Fully customizable plan designs' and 'boutique-level responsiveness'. "Get the control you want without losing network strength."`
	case SocialClimber:
		return `Appeal to Prestige. Strategy: 'White-glove service' and 'National Leader' status. "Exclusive partner that makes you look like a hero."`
	case Analyst:
		return `Appeal to Truth/Efficiency. Strategy: Hard numbers. "Reduced PEPM by 12%", "Rx savings of 18%". Focus on "Data transparency & analytics".`
	default:
		return `Appeal to Safety. Strategy: Lead with Network Strength (Cigna/Aetna/Anthem). "Seamless stop-loss integration" and "Predictable service".`
	}
}
