package forecast

import (
	"math"
	"math/rand"
)

// reservoirInputDim is the fixed input feature count: normalized demand plus
// a time-position feature.
const reservoirInputDim = 2

// reservoirDensity is the fraction of non-zero recurrent weights.
const reservoirDensity = 0.1

// ReservoirModel is a small Echo State Network: a fixed sparse recurrent
// weight matrix, a fixed input projection, a leaky-integrator state vector,
// and a trained per-dimension readout. The input projection is generated once
// from the seeded source and stored on the model, so repeated forecasts with
// the same model and inputs are deterministic. Callers may persist the whole
// struct and hand it back as a stored model.
type ReservoirModel struct {
	Size           int         `json:"size"`
	Weights        [][]float64 `json:"weights"`
	InputWeights   [][]float64 `json:"input_weights"`
	State          []float64   `json:"state"`
	ReadoutWeights []float64   `json:"readout_weights"`

	// Normalization parameters of the series the readout was trained on.
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`

	LeakingRate  float64 `json:"leaking_rate"`
	InputScaling float64 `json:"input_scaling"`
}

// NewReservoirModel builds a reservoir from the config's seed. Roughly 10% of
// the N×N recurrent entries are drawn uniformly from (-1,1); the matrix is
// then rescaled by targetRadius/maxAbsRowSum, which approximates the target
// spectral radius without an eigenvalue computation.
func NewReservoirModel(cfg Config) *ReservoirModel {
	cfg = cfg.normalized()
	rng := rand.New(rand.NewSource(cfg.Seed))
	n := cfg.ReservoirSize

	weights := make([][]float64, n)
	maxRowSum := 0.0
	for i := range weights {
		weights[i] = make([]float64, n)
		rowSum := 0.0
		for j := range weights[i] {
			if rng.Float64() < reservoirDensity {
				weights[i][j] = rng.Float64()*2 - 1
			}
			rowSum += math.Abs(weights[i][j])
		}
		if rowSum > maxRowSum {
			maxRowSum = rowSum
		}
	}

	if maxRowSum > 0 {
		scale := cfg.SpectralRadius / maxRowSum
		for i := range weights {
			for j := range weights[i] {
				weights[i][j] *= scale
			}
		}
	}

	inputWeights := make([][]float64, n)
	for i := range inputWeights {
		inputWeights[i] = make([]float64, reservoirInputDim)
		for f := range inputWeights[i] {
			inputWeights[i][f] = rng.Float64()*2 - 1
		}
	}

	return &ReservoirModel{
		Size:         n,
		Weights:      weights,
		InputWeights: inputWeights,
		State:        make([]float64, n),
		LeakingRate:  cfg.LeakingRate,
		InputScaling: cfg.InputScaling,
	}
}

// ResetState zeroes the recurrent state without touching the weights.
func (m *ReservoirModel) ResetState() {
	m.State = make([]float64, m.Size)
}

// Update advances the reservoir one step: each neuron accumulates the scaled
// input projection and the recurrent term, then leak-integrates through tanh.
func (m *ReservoirModel) Update(inputs []float64) {
	next := make([]float64, m.Size)
	for i := 0; i < m.Size; i++ {
		activation := 0.0
		for f, v := range inputs {
			if f >= reservoirInputDim {
				break
			}
			activation += v * m.InputScaling * m.InputWeights[i][f]
		}
		for j := 0; j < m.Size; j++ {
			activation += m.Weights[i][j] * m.State[j]
		}
		next[i] = (1-m.LeakingRate)*m.State[i] + m.LeakingRate*math.Tanh(activation)
	}
	m.State = next
}

// TrainReadout fits one regression coefficient per state dimension
// independently: w_i = sum_t(state_t[i]*target_t) / (sum_t(state_t[i]^2) + λ).
// This per-dimension ridge approximation is intentional; it is not a solved
// normal-equations system over the full state covariance.
func (m *ReservoirModel) TrainReadout(states [][]float64, targets []float64, lambda float64) {
	readout := make([]float64, m.Size)
	for i := 0; i < m.Size; i++ {
		num, den := 0.0, 0.0
		for t := range states {
			if t >= len(targets) {
				break
			}
			num += states[t][i] * targets[t]
			den += states[t][i] * states[t][i]
		}
		readout[i] = num / (den + lambda)
	}
	m.ReadoutWeights = readout
}

// Predict returns the readout's next-step estimate from the current state,
// clamped at zero: demand cannot be negative.
func (m *ReservoirModel) Predict() float64 {
	if len(m.ReadoutWeights) != m.Size {
		return 0
	}
	sum := 0.0
	for i := 0; i < m.Size; i++ {
		sum += m.State[i] * m.ReadoutWeights[i]
	}
	if sum < 0 {
		return 0
	}
	return sum
}

// readoutRMSE measures how well the current readout reproduces the training
// targets; used against the retrain threshold for stored models.
func (m *ReservoirModel) readoutRMSE(states [][]float64, targets []float64) float64 {
	if len(m.ReadoutWeights) != m.Size || len(states) == 0 {
		return math.Inf(1)
	}
	sum := 0.0
	count := 0
	for t := range states {
		if t >= len(targets) {
			break
		}
		pred := 0.0
		for i := 0; i < m.Size; i++ {
			pred += states[t][i] * m.ReadoutWeights[i]
		}
		diff := pred - targets[t]
		sum += diff * diff
		count++
	}
	if count == 0 {
		return math.Inf(1)
	}
	return math.Sqrt(sum / float64(count))
}
