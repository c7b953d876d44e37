package plans

import "strings"

type Level string

// Level constants (single source of truth)
const (
	LevelFree       Level = "free"
	LevelBasic      Level = "basic"
	LevelPremium    Level = "premium"
	LevelEnterprise Level = "enterprise"
)

// levelOrder is the fixed total order over plan levels. Rank comparisons
// everywhere in the app go through LevelRank so the hierarchy lives here only.
var levelOrder = []Level{LevelFree, LevelBasic, LevelPremium, LevelEnterprise}

// LevelRank returns the position of a level in the hierarchy, -1 for unknown.
func LevelRank(l Level) int {
	normalized := Level(strings.ToLower(strings.TrimSpace(string(l))))
	for i, known := range levelOrder {
		if known == normalized {
			return i
		}
	}
	return -1
}

type Cycle string

const (
	CycleMonthly Cycle = "monthly"
	CycleYearly  Cycle = "yearly"
	CycleOneTime Cycle = "oneTime"
)

// cycleOrder ranks billing cycles: monthly < yearly < oneTime. A higher rank
// is "nominally bigger" but not necessarily more expensive, which is why
// ClassifyChange lets price override cycle rank.
var cycleOrder = []Cycle{CycleMonthly, CycleYearly, CycleOneTime}

// CycleRank returns the position of a billing cycle, -1 for unknown.
func CycleRank(c Cycle) int {
	for i, known := range cycleOrder {
		if known == c {
			return i
		}
	}
	return -1
}
