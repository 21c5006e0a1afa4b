package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReply = `## Numerical Calculations
BMR: 1680 kcal
TDEE: 2600 kcal

## Training Program
Day 1: [Squat] 4x8, [Bench Press] 4x10
Day 2: [Squat] 3x5

## Nutrition Program
Eggs and [oats] for breakfast

## Meal Assessment
Verdict: [Accepted ✅]

## Status Report
Keep going.
`

func TestParseSectionsAndTitles(t *testing.T) {
	sections := NewParser("").Parse(sampleReply)
	require.Len(t, sections, 5)

	titles := make([]string, 0, len(sections))
	for i, s := range sections {
		assert.Equal(t, i, s.Ordinal)
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{
		"Numerical Calculations",
		"Training Program",
		"Nutrition Program",
		"Meal Assessment",
		"Status Report",
	}, titles)

	assert.Equal(t, []string{"BMR: 1680 kcal", "TDEE: 2600 kcal"}, sections[0].Body)
	assert.Equal(t, KindCalculations, sections[0].Kind)
	assert.Equal(t, KindTraining, sections[1].Kind)
	assert.Equal(t, KindNutrition, sections[2].Kind)
	assert.Equal(t, KindMeal, sections[3].Kind)
	assert.Equal(t, KindStatus, sections[4].Kind)
}

func TestParseTrainingClassification(t *testing.T) {
	sections := NewParser("").Parse(sampleReply)

	var training []Section
	for _, s := range sections {
		if s.Training {
			training = append(training, s)
		}
	}
	require.Len(t, training, 1)
	assert.Equal(t, []string{"Squat", "Bench Press", "Squat"}, training[0].Tokens)
	assert.Equal(t, []string{"Squat", "Bench Press"}, training[0].UniqueTokens())

	// Bracketed text outside the training section is still extracted but the
	// section is not marked as training.
	assert.False(t, sections[2].Training)
	assert.Equal(t, []string{"oats"}, sections[2].Tokens)
}

func TestParseCustomMarker(t *testing.T) {
	p := NewParser("البرنامج التدريبي")
	sections := p.Parse("## البرنامج التدريبي\n[تمرين الضغط - Pushups] 3x12")
	require.Len(t, sections, 1)
	assert.True(t, sections[0].Training)
	assert.Equal(t, []string{"تمرين الضغط - Pushups"}, sections[0].Tokens)
}

func TestParseLeadingTextBecomesSection(t *testing.T) {
	sections := NewParser("").Parse("Hey champ, here is your plan.\n## Training Program\n[Deadlift]")
	require.Len(t, sections, 2)
	assert.Equal(t, "Hey champ, here is your plan.", sections[0].Title)
	assert.Empty(t, sections[0].Body)
	assert.Equal(t, "Training Program", sections[1].Title)
}

func TestParseUnstructuredText(t *testing.T) {
	sections := NewParser("").Parse("  just some text\nwith no headings  ")
	require.Len(t, sections, 1)
	assert.Equal(t, "just some text", sections[0].Title)
	assert.Equal(t, []string{"with no headings"}, sections[0].Body)
	assert.Empty(t, sections[0].Tokens)
}

func TestParseEmptyAndWhitespace(t *testing.T) {
	assert.Empty(t, NewParser("").Parse(""))
	assert.Empty(t, NewParser("").Parse(" \n\t\n"))
}

func TestParseHeadingMustStartLine(t *testing.T) {
	sections := NewParser("").Parse("## Status Report\nscore ## not a heading")
	require.Len(t, sections, 1)
	assert.Equal(t, []string{"score ## not a heading"}, sections[0].Body)
}

func TestParseKeepsBodyLineWhitespace(t *testing.T) {
	sections := NewParser("").Parse("## Training Program\n  - [Squat]  \n\n- [Row]")
	require.Len(t, sections, 1)
	assert.Equal(t, []string{"  - [Squat]  ", "", "- [Row]"}, sections[0].Body)
}

func TestSplitRawIsLossless(t *testing.T) {
	inputs := []string{
		sampleReply,
		"",
		"no headings at all",
		"## A\n## B\n## C",
		"\n\n## A\nbody\n\n\n## B\n",
		"prefix ## inline\n## Real\ntext",
	}
	for _, in := range inputs {
		assert.Equal(t, in, strings.Join(SplitRaw(in), ""), "input %q", in)

		var trimmed []string
		for _, s := range NewParser("").Parse(in) {
			assert.Equal(t, strings.TrimSpace(s.Raw), s.Text)
			trimmed = append(trimmed, s.Text)
		}
		var expected []string
		for _, piece := range SplitRaw(in) {
			if tp := strings.TrimSpace(piece); tp != "" {
				expected = append(expected, tp)
			}
		}
		assert.Equal(t, expected, trimmed)
	}
}

func TestParseIsDeterministic(t *testing.T) {
	p := NewParser("")
	first := p.Parse(sampleReply)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, p.Parse(sampleReply))
	}
}

func TestExtractTokens(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "none", in: "plain", want: nil},
		{name: "single", in: "do [Push-ups] now", want: []string{"Push-ups"}},
		{name: "ordered", in: "[B] then [A] then [B]", want: []string{"B", "A", "B"}},
		{name: "nested opening bracket", in: "[[Squat]", want: []string{"Squat"}},
		{name: "empty brackets", in: "[]", want: []string{""}},
		{name: "no newline crossing", in: "[open\nclose]", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTokens(tt.in))
		})
	}
}

func TestRenderBodyStripsMarkup(t *testing.T) {
	sections := NewParser("").Parse("## Training Program\nDay 1: [Push-ups] 3x12\nVerdict: accepted ✅")
	require.Len(t, sections, 1)

	lines := sections[0].RenderBody()
	require.Len(t, lines, 2)
	assert.Equal(t, "Day 1: Push-ups 3x12", lines[0].Text)
	assert.False(t, lines[0].Emphasis)
	assert.True(t, lines[1].Emphasis)
	assert.Equal(t, []string{"Push-ups"}, sections[0].Tokens)
}

func TestSectionMarkdown(t *testing.T) {
	sections := NewParser("").Parse("## Training Program\n[Squat] 5x5")
	require.Len(t, sections, 1)
	assert.Equal(t, "## Training Program\nSquat 5x5\n", sections[0].Markdown())
}
