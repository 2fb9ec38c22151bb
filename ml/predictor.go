package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"

	"airquality/aqi"
)

// DefaultMockNoiseStdDev is the spread of the noise added to mock predictions.
const DefaultMockNoiseStdDev = 10.0

// NoiseSource draws standard normal values. *rand.Rand satisfies it.
type NoiseSource interface {
	NormFloat64() float64
}

type globalNoise struct{}

func (globalNoise) NormFloat64() float64 { return rand.NormFloat64() }

// PredictionResult is one clamped AQI with its level and the features it came from.
type PredictionResult struct {
	AQI         float64
	Level       aqi.Level
	ModelLoaded bool
	Features    FeatureVector
	// Error is set when inference failed and AQI is the degraded estimate.
	Error string
}

// ModelInfo describes what serves predictions.
type ModelInfo struct {
	ModelType    string   `json:"model_type"`
	ModelLoaded  bool     `json:"model_loaded"`
	FeatureCount int      `json:"feature_count"`
	Features     []string `json:"features"`
	Output       string   `json:"output"`
}

// PredictorOption configures a Predictor.
type PredictorOption func(*Predictor)

// WithNoise replaces the mock-mode noise source and its standard deviation.
// A zero stddev makes mock predictions deterministic.
func WithNoise(source NoiseSource, stddev float64) PredictorOption {
	return func(p *Predictor) {
		if source != nil {
			p.noise = source
		}
		p.noiseStdDev = stddev
	}
}

// Predictor turns feature vectors into AQI values. It is safe for concurrent use.
type Predictor struct {
	artifacts *Artifacts
	logger    *zap.Logger

	noiseMu     sync.Mutex
	noise       NoiseSource
	noiseStdDev float64
}

// NewPredictor wraps loaded artifacts. A nil logger discards output.
func NewPredictor(artifacts *Artifacts, logger *zap.Logger, opts ...PredictorOption) *Predictor {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Predictor{
		artifacts:   artifacts,
		logger:      logger,
		noise:       globalNoise{},
		noiseStdDev: DefaultMockNoiseStdDev,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ModelLoaded reports whether a trained artifact serves predictions.
func (p *Predictor) ModelLoaded() bool {
	return p.artifacts.ModelLoaded()
}

// Mode returns LSTM, Dummy or Mock.
func (p *Predictor) Mode() Mode {
	return p.artifacts.Mode
}

// Info reports the model type and feature layout.
func (p *Predictor) Info() ModelInfo {
	return ModelInfo{
		ModelType:    string(p.artifacts.Mode),
		ModelLoaded:  p.ModelLoaded(),
		FeatureCount: FeatureCount,
		Features:     FeatureNames(),
		Output:       "AQI (Air Quality Index)",
	}
}

// FeatureImportance weights every feature equally; the model exposes no attribution.
func (p *Predictor) FeatureImportance() map[string]float64 {
	names := FeatureNames()
	weight := math.Round(1000/float64(len(names))) / 1000
	importance := make(map[string]float64, len(names))
	for _, name := range names {
		importance[name] = weight
	}
	return importance
}

// Predict validates features and returns a clamped AQI. Only ErrInvalidInput
// is returned as an error; inference failures degrade to a cruder estimate
// reported in PredictionResult.Error.
func (p *Predictor) Predict(features []float64) (PredictionResult, error) {
	if err := ValidateFeatures(features); err != nil {
		return PredictionResult{}, err
	}
	vector := append(FeatureVector(nil), features...)
	result := PredictionResult{
		ModelLoaded: p.ModelLoaded(),
		Features:    vector,
	}

	if p.artifacts.Mode == ModeMock {
		result.AQI = p.mock(vector)
		result.Level = aqi.LevelFor(result.AQI)
		return result, nil
	}

	value, err := p.Infer(vector)
	if err != nil {
		p.logger.Error("prediction error, using fallback estimate", zap.Error(err))
		result.AQI = aqi.Clamp(mean(vector) * 2)
		result.Error = err.Error()
		result.Level = aqi.LevelFor(result.AQI)
		return result, nil
	}
	result.AQI = value
	result.Level = aqi.LevelFor(result.AQI)
	return result, nil
}

// PredictBatch predicts every sample. The first invalid sample fails the whole batch.
func (p *Predictor) PredictBatch(samples [][]float64) ([]PredictionResult, error) {
	for i, features := range samples {
		if err := ValidateFeatures(features); err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
	}
	results := make([]PredictionResult, 0, len(samples))
	for _, features := range samples {
		result, err := p.Predict(features)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Infer runs scale, reshape and forward pass, returning the clamped AQI
// rounded to two decimals. Failures, including a panicking model, wrap
// ErrInferenceFailure.
func (p *Predictor) Infer(features FeatureVector) (value float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, err = 0, fmt.Errorf("%w: model panicked: %v", ErrInferenceFailure, r)
		}
	}()
	if p.artifacts.Model == nil || p.artifacts.Scaler == nil {
		return 0, fmt.Errorf("%w: no model available", ErrInferenceFailure)
	}
	scaled, err := p.artifacts.Scaler.Transform(features)
	if err != nil {
		return 0, fmt.Errorf("%w: scale: %w", ErrInferenceFailure, err)
	}
	// (samples, timesteps, features)
	input := [][][]float64{{scaled}}
	output, err := p.artifacts.Model.Predict(input)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInferenceFailure, err)
	}
	if len(output) != 1 || len(output[0]) == 0 {
		return 0, fmt.Errorf("%w: unexpected output shape", ErrInferenceFailure)
	}
	value = output[0][0]
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: model produced %v", ErrInferenceFailure, value)
	}
	return math.Round(aqi.Clamp(value)*100) / 100, nil
}

func (p *Predictor) mock(features FeatureVector) float64 {
	p.noiseMu.Lock()
	noise := p.noise.NormFloat64() * p.noiseStdDev
	p.noiseMu.Unlock()
	return aqi.Clamp(mean(features)*2 + noise)
}

// IsInvalidInput reports whether err came from feature validation.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
