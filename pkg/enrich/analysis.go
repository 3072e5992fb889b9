// Package enrich turns raw lead intel into a dossier, a draft email and,
// when needed, a guessed email address, and writes them back to the sheet.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codeGROOVE-dev/scout/pkg/archetype"
)

const (
	defaultHook  = "I noticed your work in the industry."
	defaultOffer = "Point C Health TPA"
	guessIntel   = 500
)

// Generator produces model text for a prompt. GenerateJSON decodes the
// response into v and fails when it holds no usable JSON object.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string, v any) error
}

// PainPoints accepts either a JSON list or a single string.
type PainPoints []string

// UnmarshalJSON implements json.Unmarshaler.
func (p *PainPoints) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*p = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("pain points: %w", err)
	}
	if s == "" {
		*p = nil
		return nil
	}
	*p = PainPoints{s}
	return nil
}

// Analysis is the classifier's view of a lead.
type Analysis struct {
	PsychProfile      string     `json:"psych_profile"`
	UnconsciousDesire string     `json:"Unconscious_Desire"`
	ArchetypeEvidence string     `json:"Archetype_Evidence"`
	Hook              string     `json:"Hook"`
	PodcastName       string     `json:"Podcast_Name"`
	PodcastURL        string     `json:"Podcast_URL"`
	PainPoints        PainPoints `json:"Pain_Points"`
}

// Archetype returns the classified driver, or the default when the profile is
// missing or unrecognized.
func (a *Analysis) Archetype() archetype.Archetype {
	if got, ok := archetype.Parse(a.PsychProfile); ok {
		return got
	}
	return archetype.Default
}

// normalize drops the literal strings models use for "nothing".
func (a *Analysis) normalize() {
	for _, f := range []*string{&a.PsychProfile, &a.UnconsciousDesire, &a.ArchetypeEvidence, &a.Hook, &a.PodcastName, &a.PodcastURL} {
		*f = strings.TrimSpace(*f)
		switch strings.ToLower(*f) {
		case "null", "none", "n/a":
			*f = ""
		}
	}
}

func clean(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "**", ""), "__", "")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Dossier renders the analysis as the text stored in the Dossier Summary column.
func Dossier(a *Analysis) string {
	pain := make([]string, 2)
	copy(pain, a.PainPoints)

	return fmt.Sprintf("Archetype: %s\nDriver: %s\nEvidence: %s\nHook: %s\nPain Points:\n- %s\n- %s",
		clean(orDefault(a.PsychProfile, "Unknown")),
		clean(orDefault(a.UnconsciousDesire, "Unknown")),
		clean(orDefault(a.ArchetypeEvidence, "N/A")),
		clean(orDefault(a.Hook, "N/A")),
		clean(pain[0]),
		clean(pain[1]))
}

// Guess is a proposed email address with the model's explanation.
type Guess struct {
	Guess  string `json:"guess"`
	Reason string `json:"reason"`
}

// String renders the guess as stored in the Found Email column.
func (g Guess) String() string {
	return fmt.Sprintf("[GUESS] %s\n(Reason: %s)", g.Guess, g.Reason)
}

var fallbackGuess = Guess{Guess: "Unknown", Reason: "Could not generate guess."}

// Analyst wraps the model calls of the pipeline.
type Analyst struct {
	model  Generator
	logger *slog.Logger
	offer  string
}

// NewAnalyst creates an Analyst. An empty offer uses the default product line.
func NewAnalyst(model Generator, offer string, logger *slog.Logger) *Analyst {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyst{model: model, offer: orDefault(offer, defaultOffer), logger: logger}
}

// Classify asks the model for the lead's archetype and supporting detail.
func (a *Analyst) Classify(ctx context.Context, intelText, name, firm string) (*Analysis, error) {
	a.logger.Info("analyzing lead", "name", name)
	prompt, err := render(classifyTemplate, map[string]any{
		"Name":       name,
		"Firm":       firm,
		"Intel":      intelText,
		"Default":    archetype.Default,
		"Archetypes": archetype.All,
	})
	if err != nil {
		return &Analysis{}, fmt.Errorf("rendering classify prompt: %w", err)
	}

	var out Analysis
	if err := a.model.GenerateJSON(ctx, prompt, &out); err != nil {
		return &Analysis{}, fmt.Errorf("classifying %s: %w", name, err)
	}
	out.normalize()
	return &out, nil
}

// DraftEmail writes a short cold email tailored to the analysis.
func (a *Analyst) DraftEmail(ctx context.Context, an *Analysis, firstName string) (string, error) {
	a.logger.Info("writing email", "first_name", firstName)
	prompt, err := render(emailTemplate, map[string]any{
		"FirstName": firstName,
		"Archetype": an.Archetype(),
		"Pitches":   pitches(),
		"Hook":      orDefault(an.Hook, defaultHook),
		"Offer":     a.offer,
	})
	if err != nil {
		return "", fmt.Errorf("rendering email prompt: %w", err)
	}

	text, err := a.model.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("drafting email for %s: %w", firstName, err)
	}
	return strings.TrimSpace(text), nil
}

// GuessEmail asks the model for a likely address when none was found. It
// never fails: any error yields the "Unknown" guess.
func (a *Analyst) GuessEmail(ctx context.Context, name, firm, intelText string) Guess {
	a.logger.Info("guessing email", "name", name)
	prompt, err := render(guessTemplate, map[string]any{
		"Name":  name,
		"Firm":  firm,
		"Intel": truncate(intelText, guessIntel),
	})
	if err != nil {
		a.logger.Warn("rendering guess prompt", "error", err)
		return fallbackGuess
	}

	var g Guess
	if err := a.model.GenerateJSON(ctx, prompt, &g); err != nil {
		a.logger.Warn("email guess failed", "name", name, "error", err)
		return fallbackGuess
	}
	g.Guess = orDefault(strings.TrimSpace(g.Guess), "N/A")
	g.Reason = orDefault(strings.TrimSpace(g.Reason), "N/A")
	return g
}

// truncate returns at most n runes of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
