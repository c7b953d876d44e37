package plans

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func price(v float64) *float64 { return &v }

func TestClassifyChangeFromFree(t *testing.T) {
	// Anything chosen from free is a subscribe, even the same nominal cycle.
	assert.Equal(t, ChangeSubscribe, ClassifyChange(LevelFree, CycleMonthly, LevelBasic, CycleMonthly, nil, nil))
	assert.Equal(t, ChangeSubscribe, ClassifyChange(LevelFree, CycleMonthly, LevelEnterprise, CycleOneTime, nil, nil))
	assert.Equal(t, ChangeSubscribe, ClassifyChange(LevelFree, CycleMonthly, LevelFree, CycleMonthly, nil, nil))
}

func TestClassifyChangeSame(t *testing.T) {
	assert.Equal(t, ChangeSame, ClassifyChange(LevelBasic, CycleMonthly, LevelBasic, CycleMonthly, price(10), price(10)))
	assert.Equal(t, ChangeSame, ClassifyChange(LevelPremium, CycleYearly, LevelPremium, CycleYearly, nil, nil))
}

func TestClassifyChangeTierWinsOverCycle(t *testing.T) {
	// A tier change is an upgrade/downgrade no matter what the cycle does.
	assert.Equal(t, ChangeUpgrade, ClassifyChange(LevelBasic, CycleYearly, LevelPremium, CycleMonthly, price(100), price(20)))
	assert.Equal(t, ChangeDowngrade, ClassifyChange(LevelPremium, CycleMonthly, LevelBasic, CycleYearly, price(20), price(100)))
	assert.Equal(t, ChangeUpgrade, ClassifyChange(LevelBasic, CycleMonthly, LevelEnterprise, CycleMonthly, nil, nil))
}

func TestClassifyChangeSameTierPriceDecides(t *testing.T) {
	// Monthly -> yearly at a higher price is a switch up.
	assert.Equal(t, ChangeSwitchUp, ClassifyChange(LevelBasic, CycleMonthly, LevelBasic, CycleYearly, price(10), price(96)))
	// Yearly -> monthly at a lower price is a downgrade, not a switch down:
	// the user will pay less.
	assert.Equal(t, ChangeDowngrade, ClassifyChange(LevelBasic, CycleYearly, LevelBasic, CycleMonthly, price(96), price(10)))
	// Equal price with a higher cycle rank still switches up.
	assert.Equal(t, ChangeSwitchUp, ClassifyChange(LevelBasic, CycleMonthly, LevelBasic, CycleYearly, price(10), price(10)))
}

func TestClassifyChangeSameTierNoPricesUsesCycleRank(t *testing.T) {
	assert.Equal(t, ChangeSwitchUp, ClassifyChange(LevelBasic, CycleMonthly, LevelBasic, CycleYearly, nil, nil))
	assert.Equal(t, ChangeSwitchDown, ClassifyChange(LevelBasic, CycleYearly, LevelBasic, CycleMonthly, nil, nil))
	assert.Equal(t, ChangeSwitchUp, ClassifyChange(LevelPremium, CycleYearly, LevelPremium, CycleOneTime, nil, nil))
}

func TestClassifyChangeOnePriceMissingFallsBackToCycleRank(t *testing.T) {
	// A single known price is not enough to compare; cycle rank decides.
	assert.Equal(t, ChangeSwitchUp, ClassifyChange(LevelBasic, CycleMonthly, LevelBasic, CycleYearly, price(10), nil))
	assert.Equal(t, ChangeSwitchDown, ClassifyChange(LevelBasic, CycleYearly, LevelBasic, CycleMonthly, nil, price(10)))
}

func TestLevelRank(t *testing.T) {
	assert.Equal(t, 0, LevelRank(LevelFree))
	assert.Equal(t, 3, LevelRank(LevelEnterprise))
	assert.Equal(t, 1, LevelRank(" Basic "))
	assert.Equal(t, -1, LevelRank("platinum"))
}

func TestCycleRank(t *testing.T) {
	assert.Equal(t, 0, CycleRank(CycleMonthly))
	assert.Equal(t, 2, CycleRank(CycleOneTime))
	assert.Equal(t, -1, CycleRank("weekly"))
}

func TestCheckAvailability(t *testing.T) {
	premium := &Plan{PlanID: "premium", Level: LevelPremium}
	basic := &Plan{PlanID: "basic", Level: LevelBasic}

	t.Run("unknown plan", func(t *testing.T) {
		got := CheckAvailability("basic", LevelBasic, CycleMonthly, nil, CycleMonthly)
		assert.False(t, got.Available)
		assert.Equal(t, "unknown_plan", got.Reason)
	})

	t.Run("no current plan", func(t *testing.T) {
		got := CheckAvailability("", LevelFree, "", premium, CycleMonthly)
		assert.True(t, got.Available)
	})

	t.Run("already subscribed", func(t *testing.T) {
		got := CheckAvailability("premium", LevelPremium, CycleMonthly, premium, CycleMonthly)
		assert.False(t, got.Available)
		assert.Equal(t, "already_subscribed", got.Reason)

		// Same plan on a different cycle is selectable.
		got = CheckAvailability("premium", LevelPremium, CycleMonthly, premium, CycleYearly)
		assert.True(t, got.Available)
	})

	t.Run("lifetime rules", func(t *testing.T) {
		got := CheckAvailability("basic", LevelBasic, CycleOneTime, premium, CycleOneTime)
		assert.True(t, got.Available)

		got = CheckAvailability("premium", LevelPremium, CycleOneTime, basic, CycleOneTime)
		assert.False(t, got.Available)
		assert.Equal(t, "lifetime_downgrade_blocked", got.Reason)

		got = CheckAvailability("premium", LevelPremium, CycleOneTime, premium, CycleMonthly)
		assert.False(t, got.Available)
		assert.Equal(t, "lifetime_to_subscription_blocked", got.Reason)
	})
}
