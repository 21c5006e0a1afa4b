package coach

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ashureev/bpb-coach/internal/domain"
)

// SystemInstruction fixes the five-section reply layout the parser relies on.
const SystemInstruction = `You are BPB - Build Perfect Body, an AI coach specialised in aesthetic physique programs (hypertrophy + fat loss).

Strict reply rules (use these headings exactly, they are used to split the program):

1. Always start with:
## Numerical Calculations
(include BMR, TDEE and the target calories)

2. Then add:
## Training Program
(a 4 day schedule. Very important: put every exercise name in square brackets like [Exercise Name] so an illustration can be shown for it, for example: [Push-ups])

3. Then add:
## Nutrition Program
(practical local foods, high protein)

4. Only when a meal photo is attached:
## Meal Assessment
(analysis, [Accepted ✅/Rejected ❌], an alternative)

5. Finish with:
## Status Report

Keep an energetic, motivating coaching tone.`

// ReplanMessage asks the coach to revise the program after a profile edit.
const ReplanMessage = "Coach, I have updated my data. Can you review my program and adjust it based on the new data?"

// ProfilePrompt builds the opening submission from a profile.
func ProfilePrompt(p *domain.UserProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi coach, here is my data: age %d, weight %skg, height %scm. ",
		p.Age, formatMeasure(p.WeightKg), formatMeasure(p.HeightCm))
	fmt.Fprintf(&b, "My level is %s and my goal is %s.", p.Level, p.Goal)
	if strings.TrimSpace(p.AvailableDays) != "" {
		fmt.Fprintf(&b, " I can train %s.", p.AvailableDays)
	}
	switch {
	case p.BodyPhoto != "" && p.MealPhoto != "":
		b.WriteString(" I attached my body photo and a photo of my usual meal.")
	case p.BodyPhoto != "":
		b.WriteString(" I attached my body photo.")
	case p.MealPhoto != "":
		b.WriteString(" I attached a photo of my usual meal.")
	}
	b.WriteString(" Analyze my body and design my complete program with illustrations.")
	return b.String()
}

func formatMeasure(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
