package enrich

import (
	"strings"
	"text/template"

	"github.com/codeGROOVE-dev/scout/pkg/archetype"
)

const classifyPrompt = `You are an expert in the "Bernays Protocol" of sales psychology. Your goal is to identify the UNCONSCIOUS DRIVER of this prospect.

PROSPECT: {{.Name}} at {{.Firm}}

RAW INTEL:
{{.Intel}}

ARCHETYPES (The 4 Hidden Drivers):
1. The 'Controller' (Driver/Dominant): Values power, customization, and 'beating the system'. Hates bureaucracy. Keywords: "Strategic", "Custom", "Bottom-line", "Aggressive".
2. The 'Social Climber' (Influencer/Status): Values reputation, relationships, and being seen as an 'Innovator'. Fears looking bad. Keywords: "Awards", "Power Broker", "Client wins".
3. The 'Guardian' (Steady/Safety): Risk-averse, fears disruption. Worries about 'noise'. Keywords: "Stability", "Service", "Member Experience", "Trust".
4. The 'Analyst' (Conscientious/Logic): Trusts data, skeptical of marketing. Wants proof. Keywords: "Charts", "Transparency", "Fiduciary Duty", "Analytics".

CRITICAL INSTRUCTIONS:
1. VERIFY FIRM MATCH: Ensure the intel relates to their CURRENT role at {{.Firm}}. Ignore past roles (e.g. previous companies) unless relevant to their current philosophy.
2. IGNORE "Welcome user" or login text.
3. Analyze their content (Podcasts, Posts) to find their TRUE driver.
4. If unsure, default to '{{.Default}}' (safest bet).
5. OUTPUT MUST BE VALID JSON. Do not use single quotes for keys. Escape any quotes inside strings.

Return a JSON object with:
- "psych_profile": (One of: {{range $i, $a := .Archetypes}}{{if $i}}, {{end}}"{{$a}}"{{end}})
- "Unconscious_Desire": (A short phrase explaining WHAT they really want)
- "Archetype_Evidence": (A specific quote, post topic, or behavior from the intel that justifies this Archetype. e.g. "Posted about 'Winning the President's Club award' 3 times.")
- "Hook": (A specific sentence referencing their recent content/interview. If none, reference their role.)
- "Pain_Points": [List of 2 likely challenges based on their Archetype]
- "Podcast_Name": (Name of their podcast if they host one, else null)
- "Podcast_URL": (URL to the podcast if found, else null)
`

const emailPrompt = `Write a cold email to this broker.

CRITICAL INSTRUCTION: Start the email with "Hi {{.FirstName}},"

Strategy: Appeal to their Archetype: '{{.Archetype}}'.
{{range .Pitches}}
- If '{{.Archetype}}': {{.Pitch}}{{end}}

Hook: Use '{{.Hook}}'.
Offer: {{.Offer}}.
Constraint: Keep it under 100 words. No fluff.
`

const guessPrompt = `The email address for {{.Name}} at {{.Firm}} was NOT found in public searches.

Based on the firm's likely domain and standard corporate patterns, provide:
1. A Best Guess Email (e.g. first.last@company.com)
2. A Reasonable Explanation for why it wasn't found (e.g. "Strict spam filters", "New role", "Small digital footprint", "Uses parent company domain").

INTEL CONTEXT:
{{.Intel}}...

OUTPUT FORMAT:
Return ONLY a JSON object:
{
    "guess": "name@company.com",
    "reason": "Explanation here..."
}
`

var (
	classifyTemplate = template.Must(template.New("classify").Parse(classifyPrompt))
	emailTemplate    = template.Must(template.New("email").Parse(emailPrompt))
	guessTemplate    = template.Must(template.New("guess").Parse(guessPrompt))
)

type pitch struct {
	Archetype archetype.Archetype
	Pitch     string
}

func pitches() []pitch {
	out := make([]pitch, 0, len(archetype.All))
	for _, a := range archetype.All {
		out = append(out, pitch{Archetype: a, Pitch: archetype.Pitch(a)})
	}
	return out
}

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
