package plan

import "strings"

// Kind groups sections by the heading the coach was asked to emit.
type Kind string

const (
	KindCalculations Kind = "calculations"
	KindTraining     Kind = "training"
	KindNutrition    Kind = "nutrition"
	KindMeal         Kind = "meal"
	KindStatus       Kind = "status"
	KindOther        Kind = "other"
)

func classify(title, trainingMarker string) Kind {
	if strings.Contains(title, trainingMarker) {
		return KindTraining
	}
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "calculation"):
		return KindCalculations
	case strings.Contains(lower, "nutrition"):
		return KindNutrition
	case strings.Contains(lower, "meal"):
		return KindMeal
	case strings.Contains(lower, "status"):
		return KindStatus
	}
	return KindOther
}

// Line is a body line ready for display.
type Line struct {
	Text     string `json:"text"`
	Emphasis bool   `json:"emphasis,omitempty"`
}

// RenderBody returns the section's body with exercise markup stripped.
func (s Section) RenderBody() []Line {
	out := make([]Line, 0, len(s.Body))
	for _, l := range s.Body {
		out = append(out, Line{
			Text:     StripMarkup(l),
			Emphasis: strings.Contains(l, AcceptanceGlyph),
		})
	}
	return out
}

// UniqueTokens returns Tokens with exact duplicates removed, first
// occurrence order preserved.
func (s Section) UniqueTokens() []string {
	seen := make(map[string]struct{}, len(s.Tokens))
	var out []string
	for _, t := range s.Tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Markdown renders the section for a file export.
func (s Section) Markdown() string {
	var b strings.Builder
	b.WriteString(HeadingMarker)
	b.WriteString(s.Title)
	b.WriteString("\n")
	for _, l := range s.RenderBody() {
		b.WriteString(l.Text)
		b.WriteString("\n")
	}
	return b.String()
}
