package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/codisol/dripstock/internal/api/middleware"
	"github.com/codisol/dripstock/internal/domain/inventory"
	"github.com/codisol/dripstock/internal/forecast"
	"github.com/codisol/dripstock/internal/infrastructure/postgres"
	"github.com/codisol/dripstock/internal/observability/metrics"
)

// historyWindowDays bounds how far back dispensing history is loaded for a
// forecast run.
const historyWindowDays = 90

// ForecastHandler handles on-demand forecast generation
type ForecastHandler struct {
	store   *postgres.Store
	metrics *metrics.Metrics
	cfg     forecast.Config
	logger  *zap.Logger
}

// NewForecastHandler creates a new handler
func NewForecastHandler(store *postgres.Store, m *metrics.Metrics, cfg forecast.Config, logger *zap.Logger) *ForecastHandler {
	return &ForecastHandler{store: store, metrics: m, cfg: cfg, logger: logger}
}

// ForecastRequest is the request body for a forecast run
type ForecastRequest struct {
	GenericName string `json:"generic_name"`
	BrandName   string `json:"brand_name"`
	Strength    string `json:"strength"`
}

// Generate handles POST /forecasts
func (h *ForecastHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("forecast-handler")
	ctx, span := tracer.Start(ctx, "generate_forecast")
	defer span.End()

	var req ForecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	profile := inventory.DrugProfile{
		GenericName: req.GenericName,
		BrandName:   req.BrandName,
		Strength:    req.Strength,
	}
	span.SetAttributes(attribute.String("profile", profile.Key()))

	cfg := h.cfg
	cfg.AsOf = time.Now().UTC()

	batches, err := h.store.ListBatchesByProfile(ctx, profile)
	if err != nil {
		h.logger.Error("list batches failed", zap.Error(err))
		h.jsonError(w, "failed to load inventory", http.StatusInternalServerError)
		return
	}

	movements, err := h.store.ListMovements(ctx, cfg.AsOf.AddDate(0, 0, -historyWindowDays))
	if err != nil {
		h.logger.Error("list movements failed", zap.Error(err))
		h.jsonError(w, "failed to load movements", http.StatusInternalServerError)
		return
	}

	in := forecast.Input{
		Batches:   batches,
		Movements: movements,
		Profile:   profile,
	}
	if snap, err := h.store.LoadModelSnapshot(ctx, profile.Key()); err != nil {
		h.logger.Warn("load model snapshot failed", zap.Error(err))
	} else if snap != nil {
		in.StoredModel, in.PreviousState = decodeSnapshot(snap, h.logger)
	}

	start := time.Now()
	result, err := forecast.Generate(in, cfg)
	if err != nil {
		if errors.Is(err, forecast.ErrNoMatchingDrug) {
			h.jsonError(w, "no batches match drug profile", http.StatusNotFound)
			return
		}
		h.logger.Error("forecast failed", zap.Error(err))
		h.jsonError(w, "failed to generate forecast", http.StatusInternalServerError)
		return
	}

	h.metrics.ForecastDuration.Observe(time.Since(start).Seconds())
	h.metrics.ForecastsGenerated.WithLabelValues(string(result.RiskLevel)).Inc()
	span.SetAttributes(attribute.String("risk_level", string(result.RiskLevel)))

	h.persistSnapshot(ctx, profile, result)

	h.logger.Info("forecast generated",
		zap.String("profile", profile.Key()),
		zap.String("risk_level", string(result.RiskLevel)),
		zap.Float64("confidence", result.ModelConfidence),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// persistSnapshot stores the reservoir model and regime state for reuse on
// the next run. A fallback-path result carries no model and updates only the
// regime state when one already exists.
func (h *ForecastHandler) persistSnapshot(ctx context.Context, profile inventory.DrugProfile, result *forecast.ForecastResult) {
	stateJSON, err := json.Marshal(result.MarkovState)
	if err != nil {
		h.logger.Warn("marshal markov state failed", zap.Error(err))
		return
	}

	var modelJSON json.RawMessage
	if result.Model != nil {
		modelJSON, err = json.Marshal(result.Model)
		if err != nil {
			h.logger.Warn("marshal model failed", zap.Error(err))
			return
		}
	}

	snap := &postgres.ModelSnapshot{
		ProfileKey:  profile.Key(),
		Model:       modelJSON,
		MarkovState: stateJSON,
	}
	if err := h.store.SaveModelSnapshot(ctx, snap); err != nil {
		h.logger.Warn("save model snapshot failed",
			zap.String("profile", profile.Key()),
			zap.Error(err))
	}
}

// decodeSnapshot unmarshals a stored snapshot, tolerating partial or corrupt
// entries by dropping them.
func decodeSnapshot(snap *postgres.ModelSnapshot, logger *zap.Logger) (*forecast.ReservoirModel, *forecast.MarkovState) {
	var model *forecast.ReservoirModel
	if len(snap.Model) > 0 {
		model = &forecast.ReservoirModel{}
		if err := json.Unmarshal(snap.Model, model); err != nil {
			logger.Warn("decode stored model failed", zap.Error(err))
			model = nil
		}
	}

	var state *forecast.MarkovState
	if len(snap.MarkovState) > 0 {
		state = &forecast.MarkovState{}
		if err := json.Unmarshal(snap.MarkovState, state); err != nil {
			logger.Warn("decode markov state failed", zap.Error(err))
			state = nil
		}
	}

	return model, state
}

func (h *ForecastHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
