package ml

import (
	"fmt"

	"go.uber.org/zap"
)

// FallbackMode selects what stands in for a model that could not be loaded.
type FallbackMode string

const (
	// FallbackDummy substitutes an untrained network of the same shape.
	FallbackDummy FallbackMode = "dummy"
	// FallbackMock skips the model and uses a statistical formula over the raw features.
	FallbackMock FallbackMode = "mock"
)

// Mode describes what actually serves predictions.
type Mode string

const (
	ModeTrained Mode = "LSTM"
	ModeDummy   Mode = "Dummy"
	ModeMock    Mode = "Mock"
)

// ParseFallbackMode maps a config value to a FallbackMode; empty means dummy.
func ParseFallbackMode(s string) (FallbackMode, error) {
	switch FallbackMode(s) {
	case "", FallbackDummy:
		return FallbackDummy, nil
	case FallbackMock:
		return FallbackMock, nil
	default:
		return "", fmt.Errorf("unknown fallback mode %q", s)
	}
}

// LoaderConfig lists where to look for artifacts and what to do when the model is missing.
type LoaderConfig struct {
	ModelResolvers  []Resolver
	ScalerResolvers []Resolver
	Fallback        FallbackMode
	DummySeed       uint64
}

// Artifacts is the outcome of a load. It is read-only once returned.
type Artifacts struct {
	Model      Model
	Scaler     *Scaler
	Mode       Mode
	ModelPath  string
	ScalerPath string
	// ModelErr and ScalerErr hold the reason a fallback was used, if any.
	// ScalerErr is only set when a trained model was loaded.
	ModelErr  error
	ScalerErr error
}

// ModelLoaded reports whether a trained model artifact was decoded.
func (a *Artifacts) ModelLoaded() bool {
	return a.Mode == ModeTrained
}

// ArtifactLoader resolves and decodes the model and scaler once at startup.
type ArtifactLoader struct {
	config LoaderConfig
	logger *zap.Logger
}

// NewArtifactLoader returns a loader; a nil logger discards output.
func NewArtifactLoader(config LoaderConfig, logger *zap.Logger) *ArtifactLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactLoader{config: config, logger: logger}
}

// Load never fails: each missing or broken artifact is replaced by its fallback.
// A scaler artifact is only paired with a trained model; the dummy network
// always runs on DefaultScaler.
func (l *ArtifactLoader) Load() *Artifacts {
	artifacts := &Artifacts{}

	model, modelPath, modelErr := l.loadModel()
	artifacts.ModelErr = modelErr

	switch {
	case modelErr == nil:
		artifacts.Model = model
		artifacts.ModelPath = modelPath
		artifacts.Mode = ModeTrained
		l.logger.Info("model loaded", zap.String("path", modelPath))
	case l.config.Fallback == FallbackMock:
		artifacts.Mode = ModeMock
		l.logger.Warn("model unavailable, using mock predictions", zap.Error(modelErr))
		return artifacts
	default:
		artifacts.Model = NewDummyNetwork(l.config.DummySeed)
		artifacts.Scaler = DefaultScaler()
		artifacts.Mode = ModeDummy
		l.logger.Warn("model unavailable, using untrained dummy network with default scaler",
			zap.Error(modelErr), zap.Uint64("seed", l.config.DummySeed))
		return artifacts
	}

	scaler, scalerPath, scalerErr := l.loadScaler()
	if scalerErr != nil {
		artifacts.Scaler = DefaultScaler()
		artifacts.ScalerErr = scalerErr
		l.logger.Warn("scaler unavailable, using default scaler fitted on reference sample", zap.Error(scalerErr))
		return artifacts
	}
	artifacts.Scaler = scaler
	artifacts.ScalerPath = scalerPath
	l.logger.Info("scaler loaded", zap.String("path", scalerPath), zap.String("kind", string(scaler.Kind)))
	return artifacts
}

func (l *ArtifactLoader) loadModel() (*Sequential, string, error) {
	path, err := ResolveFirst(l.config.ModelResolvers...)
	if err != nil {
		return nil, "", err
	}
	l.logger.Debug("model file found", zap.String("path", path))
	model, err := LoadModel(path)
	if err != nil {
		return nil, path, err
	}
	return model, path, nil
}

func (l *ArtifactLoader) loadScaler() (*Scaler, string, error) {
	path, err := ResolveFirst(l.config.ScalerResolvers...)
	if err != nil {
		return nil, "", err
	}
	l.logger.Debug("scaler file found", zap.String("path", path))
	scaler, err := LoadScaler(path)
	if err != nil {
		return nil, path, fmt.Errorf("%w: %w", ErrArtifactUnavailable, err)
	}
	if scaler.Dim() != FeatureCount {
		return nil, path, fmt.Errorf("%w: scaler %s has %d features, want %d",
			ErrArtifactUnavailable, path, scaler.Dim(), FeatureCount)
	}
	return scaler, path, nil
}
