// Package plan splits coach replies into typed sections and extracts the
// bracketed exercise names the illustration binder works from.
package plan

import (
	"regexp"
	"strings"
)

const (
	// HeadingMarker starts a section heading line.
	HeadingMarker = "## "
	// DefaultTrainingMarker identifies the training-program heading.
	DefaultTrainingMarker = "Training Program"
	// AcceptanceGlyph marks a line rendered with emphasis.
	AcceptanceGlyph = "✅"
)

var exerciseSpan = regexp.MustCompile(`\[(.*?)\]`)

// Section is one heading-delimited slice of a reply.
type Section struct {
	Ordinal int      `json:"ordinal"`
	Title   string   `json:"title"`
	Body    []string `json:"body"`
	Kind    Kind     `json:"kind"`
	// Training is true when the title carries the training marker.
	Training bool `json:"training"`
	// Tokens are the exercise names in order of appearance, duplicates kept.
	Tokens []string `json:"tokens"`
	// Raw is the untrimmed slice of the original content.
	Raw string `json:"-"`
	// Text is Raw with surrounding whitespace trimmed.
	Text string `json:"-"`
}

// Parser splits reply text into sections. The zero value uses
// DefaultTrainingMarker.
type Parser struct {
	TrainingMarker string
}

// NewParser returns a parser matching training sections by marker.
func NewParser(trainingMarker string) *Parser {
	return &Parser{TrainingMarker: trainingMarker}
}

func (p *Parser) marker() string {
	if p == nil || p.TrainingMarker == "" {
		return DefaultTrainingMarker
	}
	return p.TrainingMarker
}

// Parse splits content into sections. It never fails: text without any
// heading yields a single section.
func (p *Parser) Parse(content string) []Section {
	marker := p.marker()
	var sections []Section
	for _, raw := range SplitRaw(content) {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		lines := strings.Split(text, "\n")
		title := strings.TrimPrefix(lines[0], HeadingMarker)
		sections = append(sections, Section{
			Ordinal:  len(sections),
			Title:    title,
			Body:     lines[1:],
			Kind:     classify(title, marker),
			Training: strings.Contains(title, marker),
			Tokens:   ExtractTokens(text),
			Raw:      raw,
			Text:     text,
		})
	}
	return sections
}

// SplitRaw cuts content immediately before every line that starts with the
// heading marker. The pieces concatenate back to content exactly.
func SplitRaw(content string) []string {
	if content == "" {
		return nil
	}
	var pieces []string
	start := 0
	for i := 1; i < len(content); i++ {
		if content[i-1] == '\n' && strings.HasPrefix(content[i:], HeadingMarker) {
			pieces = append(pieces, content[start:i])
			start = i
		}
	}
	return append(pieces, content[start:])
}

// ExtractTokens returns every bracket-delimited name in text, left to right,
// with the brackets removed.
func ExtractTokens(text string) []string {
	matches := exerciseSpan.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		tokens = append(tokens, stripBrackets(m))
	}
	return tokens
}

// StripMarkup removes the bracket characters from exercise spans while
// keeping their text.
func StripMarkup(line string) string {
	return exerciseSpan.ReplaceAllStringFunc(line, stripBrackets)
}

func stripBrackets(s string) string {
	return strings.NewReplacer("[", "", "]", "").Replace(s)
}
