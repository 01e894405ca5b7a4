package forecast

import (
	"errors"
	"math"
	"time"

	"github.com/codisol/dripstock/internal/domain/inventory"
)

// ErrNoMatchingDrug indicates a forecast request for a profile with zero
// batches. It carries no numeric result; callers map it to an empty response.
var ErrNoMatchingDrug = errors.New("no batches match drug profile")

// Fallback path constants: flat mean forecast with a ±50% band and a fixed
// low confidence.
const (
	fallbackMinHistory = 3
	fallbackConfidence = 30
	fallbackBandRatio  = 0.5
)

// confidenceBandSigma is the reservoir path's band half-width in units of the
// historical standard deviation.
const confidenceBandSigma = 0.2

// Prediction is one forecast day.
type Prediction struct {
	Date            time.Time `json:"date"`
	PredictedDemand float64   `json:"predicted_demand"`
	ConfidenceLower float64   `json:"confidence_lower"`
	ConfidenceUpper float64   `json:"confidence_upper"`
	StockLevel      float64   `json:"stock_level"`
}

// ForecastResult is the full forecasting output for one drug profile.
type ForecastResult struct {
	Profile         inventory.DrugProfile `json:"profile"`
	CurrentStock    int                   `json:"current_stock"`
	Predictions     []Prediction          `json:"predictions"`
	SafetyStock     int                   `json:"safety_stock"`
	ReorderPoint    int                   `json:"reorder_point"`
	ExpiryWarnings  []ExpiryWarning       `json:"expiry_warnings"`
	NextRestockDate *time.Time            `json:"next_restock_date,omitempty"`
	RiskLevel       RiskLevel             `json:"risk_level"`
	ModelConfidence float64               `json:"model_confidence"`
	MarkovState     MarkovState           `json:"markov_state"`

	// Model is the reservoir used on the recurrent path, returned so the
	// caller may persist it and pass it back as Input.StoredModel. Nil on
	// the fallback path.
	Model *ReservoirModel `json:"model,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Input bundles the caller-supplied collections for one forecast call. The
// engine never mutates Batches or Movements. StoredModel and PreviousState
// are optional continuity carried by the caller; the engine itself keeps no
// state between calls.
type Input struct {
	Batches       []inventory.InventoryBatch
	Movements     []inventory.StockMovement
	Profile       inventory.DrugProfile
	StoredModel   *ReservoirModel
	PreviousState *MarkovState
}

// Generate runs the full pipeline for one drug profile: daily demand series,
// regime classification, reservoir (or fallback) demand rollout, and risk
// scoring. Returns ErrNoMatchingDrug when the profile has no batches.
// Insufficient history is not an error: it selects the fallback path with
// lowered model confidence.
func Generate(in Input, cfg Config) (*ForecastResult, error) {
	cfg = cfg.normalized()

	currentStock := 0
	matched := false
	for _, b := range in.Batches {
		if b.Profile() == in.Profile {
			matched = true
			currentStock += b.Quantity
		}
	}
	if !matched {
		return nil, ErrNoMatchingDrug
	}

	series := inventory.BuildDailySeries(in.Movements, in.Batches, in.Profile)
	markov := ClassifyRegime(series, in.PreviousState)
	asOfDay := truncateDay(cfg.AsOf)

	var (
		predictions []Prediction
		confidence  float64
		model       *ReservoirModel
	)

	if len(series) < fallbackMinHistory {
		predictions = fallbackRollout(series, currentStock, asOfDay, cfg)
		confidence = fallbackConfidence
	} else {
		model = prepareModel(in.StoredModel, series, cfg)
		predictions = reservoirRollout(model, currentStock, asOfDay, cfg)
		confidence = math.Min(100, float64(len(series))/30*100)
	}

	predicted := make([]float64, len(predictions))
	for i, p := range predictions {
		predicted[i] = p.PredictedDemand
	}

	safety := safetyStock(predicted, cfg)
	reorder := reorderPoint(predicted, safety)
	warnings := expiryWarnings(in.Batches, in.Profile, asOfDay)

	return &ForecastResult{
		Profile:         in.Profile,
		CurrentStock:    currentStock,
		Predictions:     predictions,
		SafetyStock:     safety,
		ReorderPoint:    reorder,
		ExpiryWarnings:  warnings,
		NextRestockDate: nextRestockDate(predictions, reorder),
		RiskLevel:       classifyRisk(currentStock, reorder, predictions, warnings),
		ModelConfidence: confidence,
		MarkovState:     markov,
		Model:           model,
		GeneratedAt:     cfg.AsOf,
	}, nil
}

// fallbackRollout projects the overall mean historical demand (1 when there
// is no history at all) flat across the horizon with a ±50% band.
func fallbackRollout(series []inventory.HistoricalDemandPoint, currentStock int, asOfDay time.Time, cfg Config) []Prediction {
	demand := 1.0
	if len(series) > 0 {
		sum := 0.0
		for _, p := range series {
			sum += p.StockOutVolume
		}
		demand = sum / float64(len(series))
	}
	if demand < 0 {
		demand = 0
	}

	predictions := make([]Prediction, 0, cfg.ForecastHorizon)
	stock := float64(currentStock)
	for d := 1; d <= cfg.ForecastHorizon; d++ {
		stock = math.Max(0, stock-demand)
		predictions = append(predictions, Prediction{
			Date:            asOfDay.AddDate(0, 0, d),
			PredictedDemand: demand,
			ConfidenceLower: math.Max(0, demand*(1-fallbackBandRatio)),
			ConfidenceUpper: demand * (1 + fallbackBandRatio),
			StockLevel:      stock,
		})
	}
	return predictions
}

// prepareModel drives the normalized history through the reservoir and makes
// sure a usable readout is in place. A stored model's readout is reused only
// while its RMSE over the training targets stays within the retrain
// threshold; otherwise it is retrained in place.
func prepareModel(stored *ReservoirModel, series []inventory.HistoricalDemandPoint, cfg Config) *ReservoirModel {
	model := stored
	if model == nil || model.Size != cfg.ReservoirSize || len(model.Weights) != cfg.ReservoirSize {
		model = NewReservoirModel(cfg)
	}
	model.ResetState()

	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.StockOutVolume
	}
	mean, sd := normalizationParams(values)
	model.Mean, model.StdDev = mean, sd

	norm := make([]float64, len(values))
	for i, v := range values {
		norm[i] = (v - mean) / sd
	}

	states := make([][]float64, 0, len(norm)-1)
	targets := make([]float64, 0, len(norm)-1)
	for t := 0; t < len(norm)-1; t++ {
		model.Update([]float64{norm[t], timePosition(t, len(norm))})
		snapshot := make([]float64, len(model.State))
		copy(snapshot, model.State)
		states = append(states, snapshot)
		targets = append(targets, norm[t+1])
	}

	if model.readoutRMSE(states, targets) > cfg.RetrainThreshold {
		model.TrainReadout(states, targets, cfg.RidgeLambda)
	}

	// Feed the final observation so the state reflects the full history
	// before rollout begins.
	model.Update([]float64{norm[len(norm)-1], timePosition(len(norm)-1, len(norm))})

	return model
}

// reservoirRollout rolls the trained reservoir forward over the horizon,
// denormalizing each step, depleting the running stock level, and feeding the
// normalized prediction back in as the next input.
func reservoirRollout(model *ReservoirModel, currentStock int, asOfDay time.Time, cfg Config) []Prediction {
	predictions := make([]Prediction, 0, cfg.ForecastHorizon)
	stock := float64(currentStock)

	for d := 1; d <= cfg.ForecastHorizon; d++ {
		predNorm := model.Predict()
		demand := math.Max(0, predNorm*model.StdDev+model.Mean)
		stock = math.Max(0, stock-demand)

		predictions = append(predictions, Prediction{
			Date:            asOfDay.AddDate(0, 0, d),
			PredictedDemand: demand,
			ConfidenceLower: math.Max(0, demand-confidenceBandSigma*model.StdDev),
			ConfidenceUpper: demand + confidenceBandSigma*model.StdDev,
			StockLevel:      stock,
		})

		model.Update([]float64{predNorm, timePosition(d, cfg.ForecastHorizon)})
	}

	return predictions
}

// normalizationParams returns the series mean and standard deviation, with
// the deviation floored at 1 so flat series do not divide by zero.
func normalizationParams(values []float64) (mean, sd float64) {
	if len(values) == 0 {
		return 0, 1
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	sd = math.Sqrt(variance / float64(len(values)))
	if sd == 0 {
		sd = 1
	}
	return mean, sd
}

// timePosition is the auxiliary input feature marking progress through the
// sequence.
func timePosition(step, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(step) / float64(total)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
