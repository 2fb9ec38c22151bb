package ml

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCandidatePathsFirstExisting(t *testing.T) {
	dir := t.TempDir()
	second := filepath.Join(dir, "second.json")
	third := filepath.Join(dir, "third.json")
	for _, p := range []string{second, third} {
		if err := os.WriteFile(p, []byte("{}"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	path, err := CandidatePaths{filepath.Join(dir, "missing.json"), second, third}.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != second {
		t.Fatalf("expected %s, got %s", second, path)
	}

	if _, err := (CandidatePaths{dir}).Resolve(); !errors.Is(err, ErrArtifactUnavailable) {
		t.Fatalf("expected directory to be skipped, got %v", err)
	}
}

func TestPointerFile(t *testing.T) {
	dir := t.TempDir()
	modelDir := filepath.Join(dir, "models")
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(modelDir, "lstm.json")
	if err := os.WriteFile(target, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	pointer := filepath.Join(dir, "model_path.txt")
	if err := os.WriteFile(pointer, []byte("models/lstm.json\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path, err := PointerFile(pointer).Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != target {
		t.Fatalf("expected %s, got %s", target, path)
	}

	if err := os.WriteFile(pointer, []byte("models/gone.json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := PointerFile(pointer).Resolve(); !errors.Is(err, ErrArtifactUnavailable) {
		t.Fatalf("expected ErrArtifactUnavailable for dangling pointer, got %v", err)
	}
	if _, err := PointerFile("").Resolve(); err == nil {
		t.Fatal("expected error for unset pointer")
	}
}

func TestResolveFirstOrder(t *testing.T) {
	dir := t.TempDir()
	direct := filepath.Join(dir, "direct.json")
	if err := os.WriteFile(direct, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	pointer := filepath.Join(dir, "model_path.txt")
	if err := os.WriteFile(pointer, []byte("direct.json"), 0o600); err != nil {
		t.Fatal(err)
	}

	path, err := ResolveFirst(CandidatePaths{filepath.Join(dir, "nope.json")}, PointerFile(pointer))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != direct {
		t.Fatalf("expected pointer tier to resolve %s, got %s", direct, path)
	}

	_, err = ResolveFirst(CandidatePaths{filepath.Join(dir, "nope.json")}, PointerFile(filepath.Join(dir, "none.txt")))
	if !errors.Is(err, ErrArtifactUnavailable) {
		t.Fatalf("expected ErrArtifactUnavailable, got %v", err)
	}
}

func TestArtifactLoaderTrainedModel(t *testing.T) {
	dir := t.TempDir()
	modelPath := writeLSTMModel(t, dir, "air_quality_lstm_model.json")
	scalerPath := filepath.Join(dir, "scaler.json")
	scaler, err := FitMinMaxScaler([][]float64{make([]float64, FeatureCount), ReferenceSample()})
	if err != nil {
		t.Fatal(err)
	}
	if err := scaler.Save(scalerPath); err != nil {
		t.Fatal(err)
	}

	artifacts := NewArtifactLoader(LoaderConfig{
		ModelResolvers:  []Resolver{CandidatePaths{filepath.Join(dir, "missing.json"), modelPath}},
		ScalerResolvers: []Resolver{CandidatePaths{scalerPath}},
	}, nil).Load()

	if !artifacts.ModelLoaded() || artifacts.Mode != ModeTrained {
		t.Fatalf("expected trained model, got mode %s (%v)", artifacts.Mode, artifacts.ModelErr)
	}
	if artifacts.ModelPath != modelPath || artifacts.ScalerPath != scalerPath {
		t.Fatalf("unexpected paths %s, %s", artifacts.ModelPath, artifacts.ScalerPath)
	}
	if artifacts.Scaler.Kind != ScalerMinMax {
		t.Fatalf("expected loaded minmax scaler, got %s", artifacts.Scaler.Kind)
	}
}

func TestArtifactLoaderMissingScalerKeepsModel(t *testing.T) {
	dir := t.TempDir()
	modelPath := writeLSTMModel(t, dir, "model.json")

	artifacts := NewArtifactLoader(LoaderConfig{
		ModelResolvers:  []Resolver{CandidatePaths{modelPath}},
		ScalerResolvers: []Resolver{CandidatePaths{filepath.Join(dir, "scaler.json")}},
	}, nil).Load()

	if !artifacts.ModelLoaded() {
		t.Fatalf("expected model to stay loaded, got %v", artifacts.ModelErr)
	}
	if !errors.Is(artifacts.ScalerErr, ErrArtifactUnavailable) {
		t.Fatalf("expected scaler error, got %v", artifacts.ScalerErr)
	}
	if artifacts.Scaler == nil || artifacts.Scaler.Dim() != FeatureCount {
		t.Fatal("expected default scaler")
	}
}

func TestArtifactLoaderWrongWidthScaler(t *testing.T) {
	dir := t.TempDir()
	modelPath := writeLSTMModel(t, dir, "model.json")
	scalerPath := filepath.Join(dir, "scaler.json")
	narrow, _ := FitStandardScaler([][]float64{{1, 2, 3}})
	if err := narrow.Save(scalerPath); err != nil {
		t.Fatal(err)
	}

	artifacts := NewArtifactLoader(LoaderConfig{
		ModelResolvers:  []Resolver{CandidatePaths{modelPath}},
		ScalerResolvers: []Resolver{CandidatePaths{scalerPath}},
	}, nil).Load()

	if artifacts.ScalerErr == nil || artifacts.Scaler.Dim() != FeatureCount {
		t.Fatalf("expected default scaler in place of 3-feature scaler, got %+v", artifacts.Scaler)
	}
}

func TestArtifactLoaderInvertedMinMaxScaler(t *testing.T) {
	dir := t.TempDir()
	modelPath := writeLSTMModel(t, dir, "model.json")
	scalerPath := filepath.Join(dir, "scaler.json")
	lows := make([]string, FeatureCount)
	highs := make([]string, FeatureCount)
	for i := range lows {
		lows[i], highs[i] = "10", "20"
	}
	lows[4] = "30"
	payload := `{"kind":"minmax","min":[` + strings.Join(lows, ",") + `],"max":[` + strings.Join(highs, ",") + `]}`
	if err := os.WriteFile(scalerPath, []byte(payload), 0o600); err != nil {
		t.Fatal(err)
	}

	artifacts := NewArtifactLoader(LoaderConfig{
		ModelResolvers:  []Resolver{CandidatePaths{modelPath}},
		ScalerResolvers: []Resolver{CandidatePaths{scalerPath}},
	}, nil).Load()

	if !errors.Is(artifacts.ScalerErr, ErrArtifactUnavailable) {
		t.Fatalf("expected ErrArtifactUnavailable, got %v", artifacts.ScalerErr)
	}
	if artifacts.ScalerPath != "" || artifacts.Scaler.Kind != ScalerStandard {
		t.Fatalf("expected default scaler, got %s from %q", artifacts.Scaler.Kind, artifacts.ScalerPath)
	}
}

func TestArtifactLoaderDummyIgnoresScalerFile(t *testing.T) {
	dir := t.TempDir()
	scalerPath := filepath.Join(dir, "scaler.json")
	scaler, err := FitMinMaxScaler([][]float64{make([]float64, FeatureCount), ReferenceSample()})
	if err != nil {
		t.Fatal(err)
	}
	if err := scaler.Save(scalerPath); err != nil {
		t.Fatal(err)
	}

	artifacts := NewArtifactLoader(LoaderConfig{
		ModelResolvers:  []Resolver{CandidatePaths{filepath.Join(dir, "missing.json")}},
		ScalerResolvers: []Resolver{CandidatePaths{scalerPath}},
		Fallback:        FallbackDummy,
		DummySeed:       7,
	}, nil).Load()

	if artifacts.Mode != ModeDummy {
		t.Fatalf("expected dummy mode, got %s", artifacts.Mode)
	}
	if artifacts.ScalerPath != "" || artifacts.ScalerErr != nil {
		t.Fatalf("scaler file should not be consulted, got path %q err %v", artifacts.ScalerPath, artifacts.ScalerErr)
	}
	if diff := cmp.Diff(DefaultScaler(), artifacts.Scaler); diff != "" {
		t.Fatalf("expected default scaler (-want +got):\n%s", diff)
	}
}

func TestArtifactLoaderFallbacks(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "saved_model.json")
	if err := os.WriteFile(corrupt, []byte("not a model"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		resolvers []Resolver
		fallback  FallbackMode
		wantMode  Mode
	}{
		{name: "missing model dummy", resolvers: []Resolver{CandidatePaths{filepath.Join(dir, "none.json")}}, fallback: FallbackDummy, wantMode: ModeDummy},
		{name: "corrupt model dummy", resolvers: []Resolver{CandidatePaths{corrupt}}, fallback: FallbackDummy, wantMode: ModeDummy},
		{name: "missing model mock", resolvers: []Resolver{CandidatePaths{filepath.Join(dir, "none.json")}}, fallback: FallbackMock, wantMode: ModeMock},
		{name: "no resolvers", resolvers: nil, fallback: "", wantMode: ModeDummy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artifacts := NewArtifactLoader(LoaderConfig{
				ModelResolvers: tt.resolvers,
				Fallback:       tt.fallback,
				DummySeed:      1,
			}, nil).Load()

			if artifacts.Mode != tt.wantMode {
				t.Fatalf("expected mode %s, got %s", tt.wantMode, artifacts.Mode)
			}
			if artifacts.ModelLoaded() {
				t.Fatal("expected model_loaded false")
			}
			if !errors.Is(artifacts.ModelErr, ErrArtifactUnavailable) {
				t.Fatalf("expected ErrArtifactUnavailable, got %v", artifacts.ModelErr)
			}
			if tt.wantMode == ModeDummy && (artifacts.Model == nil || artifacts.Scaler == nil) {
				t.Fatal("expected dummy model and default scaler")
			}
			if tt.wantMode == ModeMock && artifacts.Model != nil {
				t.Fatal("expected no model in mock mode")
			}
		})
	}
}

func TestParseFallbackMode(t *testing.T) {
	if mode, err := ParseFallbackMode(""); err != nil || mode != FallbackDummy {
		t.Fatalf("expected dummy default, got %s, %v", mode, err)
	}
	if mode, err := ParseFallbackMode("mock"); err != nil || mode != FallbackMock {
		t.Fatalf("expected mock, got %s, %v", mode, err)
	}
	if _, err := ParseFallbackMode("zero"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
