package forecast

import (
	"math"
	"testing"
)

func TestNewReservoirModelDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	a := NewReservoirModel(cfg)
	b := NewReservoirModel(cfg)

	for i := range a.Weights {
		for j := range a.Weights[i] {
			if a.Weights[i][j] != b.Weights[i][j] {
				t.Fatal("same seed must yield identical reservoir weights")
			}
		}
	}
	for i := range a.InputWeights {
		for f := range a.InputWeights[i] {
			if a.InputWeights[i][f] != b.InputWeights[i][f] {
				t.Fatal("same seed must yield identical input weights")
			}
		}
	}

	cfg.Seed = 7
	c := NewReservoirModel(cfg)
	same := true
	for i := range a.Weights {
		for j := range a.Weights[i] {
			if a.Weights[i][j] != c.Weights[i][j] {
				same = false
			}
		}
	}
	if same {
		t.Error("different seeds should yield different weights")
	}
}

func TestNewReservoirModelSparsityAndScale(t *testing.T) {
	model := NewReservoirModel(DefaultConfig())

	nonZero := 0
	maxRowSum := 0.0
	for i := range model.Weights {
		rowSum := 0.0
		for _, w := range model.Weights[i] {
			if w != 0 {
				nonZero++
			}
			rowSum += math.Abs(w)
		}
		if rowSum > maxRowSum {
			maxRowSum = rowSum
		}
	}

	total := model.Size * model.Size
	density := float64(nonZero) / float64(total)
	if density < 0.03 || density > 0.25 {
		t.Errorf("density %v far from the ~10%% target", density)
	}

	// After rescaling, the max abs row sum equals the target spectral radius.
	if math.Abs(maxRowSum-DefaultConfig().SpectralRadius) > 1e-9 {
		t.Errorf("max abs row sum %v, want %v", maxRowSum, DefaultConfig().SpectralRadius)
	}
}

func TestReservoirUpdateLeakyBounds(t *testing.T) {
	model := NewReservoirModel(DefaultConfig())
	for step := 0; step < 100; step++ {
		model.Update([]float64{1.5, 0.5})
	}
	// tanh activations bound each leaky-integrated component to (-1, 1).
	for i, s := range model.State {
		if math.Abs(s) >= 1 {
			t.Fatalf("state[%d] = %v escaped tanh bounds", i, s)
		}
	}
}

func TestTrainReadoutPerDimensionFormula(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReservoirSize = 2
	model := NewReservoirModel(cfg)

	states := [][]float64{{1, 0}, {2, 0}, {3, 0}}
	targets := []float64{2, 4, 6}
	model.TrainReadout(states, targets, 0.01)

	// w_0 = (1*2 + 2*4 + 3*6) / (1 + 4 + 9 + 0.01) = 28 / 14.01
	want := 28.0 / 14.01
	if math.Abs(model.ReadoutWeights[0]-want) > 1e-12 {
		t.Errorf("w0 = %v, want %v", model.ReadoutWeights[0], want)
	}
	// A dimension with zero activation trains to zero under the ridge term.
	if model.ReadoutWeights[1] != 0 {
		t.Errorf("w1 = %v, want 0", model.ReadoutWeights[1])
	}
}

func TestPredictClampsNegative(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReservoirSize = 2
	model := NewReservoirModel(cfg)
	model.State = []float64{1, 1}
	model.ReadoutWeights = []float64{-2, -3}
	if got := model.Predict(); got != 0 {
		t.Errorf("negative readout must clamp to 0, got %v", got)
	}
}

func TestPredictWithoutReadout(t *testing.T) {
	model := NewReservoirModel(DefaultConfig())
	if got := model.Predict(); got != 0 {
		t.Errorf("untrained model should predict 0, got %v", got)
	}
}

func TestResetState(t *testing.T) {
	model := NewReservoirModel(DefaultConfig())
	model.Update([]float64{1, 0})
	model.ResetState()
	for _, s := range model.State {
		if s != 0 {
			t.Fatal("reset must zero the state")
		}
	}
}
