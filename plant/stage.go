package plant

// GrowthStage identifies the coarse lifecycle phase of a plant.
type GrowthStage uint8

const (
	StageSeedling GrowthStage = iota
	StageVegetative
	StageFlowering
	StageMature
	StageDormant
)

var stageNames = [...]string{"seedling", "vegetative", "flowering", "mature", "dormant"}

func (s GrowthStage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// ParseStage maps a stage name back to its value. The second return is false
// for unrecognized names.
func ParseStage(name string) (GrowthStage, bool) {
	for i, n := range stageNames {
		if n == name {
			return GrowthStage(i), true
		}
	}
	return StageSeedling, false
}

// CanTransitionTo reports whether a direct transition from s to next is legal.
// Transitions move forward one stage at a time; Dormant is reachable from any
// stage, and Dormant back to Seedling restarts the cycle. Stage skips and
// backward moves are rejected.
func (s GrowthStage) CanTransitionTo(next GrowthStage) bool {
	if next == s {
		return false
	}
	if next == StageDormant {
		return true
	}
	if s == StageDormant {
		return next == StageSeedling
	}
	return next == s+1 && next <= StageMature
}

// Next returns the forward stage after s, or false when s is terminal in the
// forward direction.
func (s GrowthStage) Next() (GrowthStage, bool) {
	if s >= StageMature {
		return s, false
	}
	return s + 1, true
}
