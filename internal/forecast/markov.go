package forecast

import "github.com/codisol/dripstock/internal/domain/inventory"

// Regime is a coarse classification of recent demand intensity.
type Regime string

const (
	RegimeLowActivity    Regime = "low_activity"
	RegimeNormalActivity Regime = "normal_activity"
	RegimeHighActivity   Regime = "high_activity"
)

// regimeWindowDays is the trailing window the classifier looks at.
const regimeWindowDays = 7

// Mean-demand thresholds separating the regimes.
const (
	normalActivityThreshold = 3
	highActivityThreshold   = 8
)

// MarkovState is the classifier output. It is recomputed from scratch each
// call; transition counts and the streak length only carry forward when the
// caller threads the previous state back in.
type MarkovState struct {
	Current          Regime         `json:"current"`
	TransitionCounts map[string]int `json:"transition_counts"`
	ConsecutiveDays  int            `json:"consecutive_days"`
}

// ClassifyRegime classifies the trailing seven days of the demand series.
// With zero history it returns low_activity with an empty count map and a
// zero streak. A non-nil previous state seeds the transition counts and
// extends the streak when the regime held, else resets it to one.
func ClassifyRegime(series []inventory.HistoricalDemandPoint, previous *MarkovState) MarkovState {
	if len(series) == 0 {
		return MarkovState{
			Current:          RegimeLowActivity,
			TransitionCounts: map[string]int{},
			ConsecutiveDays:  0,
		}
	}

	window := series
	if len(window) > regimeWindowDays {
		window = window[len(window)-regimeWindowDays:]
	}

	var sum float64
	for _, p := range window {
		sum += p.StockOutVolume
	}
	mean := sum / float64(len(window))

	current := RegimeHighActivity
	switch {
	case mean < normalActivityThreshold:
		current = RegimeLowActivity
	case mean < highActivityThreshold:
		current = RegimeNormalActivity
	}

	state := MarkovState{
		Current:          current,
		TransitionCounts: map[string]int{},
		ConsecutiveDays:  1,
	}

	if previous != nil {
		for k, v := range previous.TransitionCounts {
			state.TransitionCounts[k] = v
		}
		state.TransitionCounts[string(previous.Current)+"_to_"+string(current)]++
		if previous.Current == current {
			state.ConsecutiveDays = previous.ConsecutiveDays + 1
		}
	}

	return state
}
