// Package forecast implements online demand forecasting for drug profiles:
// a discrete activity-regime classifier, an Echo State Network demand
// predictor with a mean-based fallback for sparse history, and expiry-aware
// risk scoring. Like the inventory package it is pure: callers pass data in
// and get value objects back.
package forecast

import "time"

// Config holds the forecasting parameters for a single call. It is an
// immutable value: callers copy DefaultConfig and override fields; nothing
// here is mutated by the engine.
type Config struct {
	// ReservoirSize is the number of reservoir neurons.
	ReservoirSize int
	// SpectralRadius is the target spectral radius of the reservoir weights.
	SpectralRadius float64
	// InputScaling scales input features before projection into the reservoir.
	InputScaling float64
	// LeakingRate is the leaky-integrator rate of the state update.
	LeakingRate float64
	// RidgeLambda regularizes the per-dimension readout regression.
	RidgeLambda float64
	// SafetyStockMultiplier scales the computed safety stock.
	SafetyStockMultiplier float64
	// ForecastHorizon is the number of days to roll the forecast forward.
	ForecastHorizon int
	// RetrainThreshold is the readout RMSE above which a stored model's
	// readout is retrained instead of reused.
	RetrainThreshold float64
	// LeadTimeDays is the replenishment lead time used for safety stock.
	LeadTimeDays int
	// ServiceLevel selects the z-score: 1.65 at or above 0.95, 1.28 below.
	ServiceLevel float64
	// Seed feeds the deterministic random source used for reservoir and
	// input-projection weights.
	Seed int64
	// AsOf anchors "today" for prediction dates and expiry math. Zero means
	// the current UTC day.
	AsOf time.Time
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		ReservoirSize:         50,
		SpectralRadius:        0.95,
		InputScaling:          0.3,
		LeakingRate:           0.3,
		RidgeLambda:           0.01,
		SafetyStockMultiplier: 1.5,
		ForecastHorizon:       30,
		RetrainThreshold:      0.5,
		LeadTimeDays:          7,
		ServiceLevel:          0.95,
		Seed:                  42,
	}
}

// normalized fills in zero values so a partially specified config behaves
// like the defaults.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.ReservoirSize <= 0 {
		c.ReservoirSize = def.ReservoirSize
	}
	if c.SpectralRadius <= 0 {
		c.SpectralRadius = def.SpectralRadius
	}
	if c.InputScaling <= 0 {
		c.InputScaling = def.InputScaling
	}
	if c.LeakingRate <= 0 {
		c.LeakingRate = def.LeakingRate
	}
	if c.RidgeLambda <= 0 {
		c.RidgeLambda = def.RidgeLambda
	}
	if c.SafetyStockMultiplier <= 0 {
		c.SafetyStockMultiplier = def.SafetyStockMultiplier
	}
	if c.ForecastHorizon <= 0 {
		c.ForecastHorizon = def.ForecastHorizon
	}
	if c.RetrainThreshold <= 0 {
		c.RetrainThreshold = def.RetrainThreshold
	}
	if c.LeadTimeDays <= 0 {
		c.LeadTimeDays = def.LeadTimeDays
	}
	if c.ServiceLevel <= 0 {
		c.ServiceLevel = def.ServiceLevel
	}
	if c.Seed == 0 {
		c.Seed = def.Seed
	}
	if c.AsOf.IsZero() {
		c.AsOf = time.Now().UTC()
	}
	return c
}
