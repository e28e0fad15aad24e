package harvest

// Grade is the discretized quality of a harvest.
type Grade uint8

const (
	GradePoor Grade = iota
	GradeFair
	GradeGood
	GradeExcellent
	GradePremium
)

var gradeNames = [...]string{"poor", "fair", "good", "excellent", "premium"}

func (g Grade) String() string {
	if int(g) < len(gradeNames) {
		return gradeNames[g]
	}
	return "unknown"
}

// gradeBreakpoints discretize readiness into grades.
var gradeBreakpoints = [...]float64{0.6, 0.75, 0.85, 0.95}

// GradeFor maps a readiness score to its base grade.
func GradeFor(readiness float64) Grade {
	g := GradePoor
	for _, bp := range gradeBreakpoints {
		if readiness < bp {
			break
		}
		g++
	}
	return g
}

// Bump raises a grade by n steps, clamped to GradePremium. Stacked yield and
// potency bonuses can otherwise push the discretized grade past its range.
func (g Grade) Bump(n int) Grade {
	v := int(g) + n
	if v > int(GradePremium) {
		return GradePremium
	}
	if v < int(GradePoor) {
		return GradePoor
	}
	return Grade(v)
}
