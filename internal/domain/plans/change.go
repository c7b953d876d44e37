package plans

// ChangeType classifies a requested plan change relative to the current
// subscription.
type ChangeType string

const (
	ChangeSubscribe  ChangeType = "subscribe"
	ChangeUpgrade    ChangeType = "upgrade"
	ChangeDowngrade  ChangeType = "downgrade"
	ChangeSwitchUp   ChangeType = "switch_up"
	ChangeSwitchDown ChangeType = "switch_down"
	ChangeSame       ChangeType = "same"
)

// ClassifyChange decides what kind of transition a plan selection is.
// Pure and deterministic; prices are optional and only consulted for
// same-tier cycle switches, where price beats nominal cycle rank
// (a yearly plan is not automatically "more" than a monthly one).
//
// Priority:
//  1. no paid plan yet -> subscribe
//  2. identical level and cycle -> same
//  3. tier change wins over any cycle change (entitlements change)
//  4. same tier, both prices known -> price decides
//  5. same tier, prices unknown -> cycle rank decides
func ClassifyChange(currentLevel Level, currentCycle Cycle, targetLevel Level, targetCycle Cycle, currentPrice, targetPrice *float64) ChangeType {
	currentRank := LevelRank(currentLevel)
	targetRank := LevelRank(targetLevel)
	currentCycleRank := CycleRank(currentCycle)
	targetCycleRank := CycleRank(targetCycle)

	if currentLevel == LevelFree {
		return ChangeSubscribe
	}

	if targetRank == currentRank && targetCycleRank == currentCycleRank {
		return ChangeSame
	}

	if targetRank > currentRank {
		return ChangeUpgrade
	}
	if targetRank < currentRank {
		return ChangeDowngrade
	}

	// Same tier, different cycle. Price is the authority when known.
	if currentPrice != nil && targetPrice != nil {
		if *targetPrice >= *currentPrice && targetCycleRank > currentCycleRank {
			return ChangeSwitchUp
		}
		if *targetPrice < *currentPrice {
			return ChangeDowngrade
		}
	}

	if targetCycleRank > currentCycleRank {
		return ChangeSwitchUp
	}
	if targetCycleRank < currentCycleRank {
		return ChangeSwitchDown
	}

	return ChangeSame
}

// Availability reports whether a plan/cycle pair can be selected at all,
// with a machine reason when it cannot.
type Availability struct {
	Available bool
	Reason    string
}

// CheckAvailability enforces the selection rules that exist independently of
// the transition type: no re-buying the current plan, and lifetime purchases
// only ever move up to a bigger lifetime tier.
func CheckAvailability(currentPlanID string, currentLevel Level, currentCycle Cycle, target *Plan, targetCycle Cycle) Availability {
	if target == nil {
		return Availability{Available: false, Reason: "unknown_plan"}
	}
	if currentPlanID == "" {
		return Availability{Available: true}
	}

	if currentPlanID == target.PlanID && currentCycle == targetCycle {
		return Availability{Available: false, Reason: "already_subscribed"}
	}

	if currentCycle == CycleOneTime && targetCycle == CycleOneTime {
		if LevelRank(target.Level) > LevelRank(currentLevel) {
			return Availability{Available: true}
		}
		return Availability{Available: false, Reason: "lifetime_downgrade_blocked"}
	}

	if currentCycle == CycleOneTime && targetCycle != CycleOneTime {
		return Availability{Available: false, Reason: "lifetime_to_subscription_blocked"}
	}

	return Availability{Available: true}
}
