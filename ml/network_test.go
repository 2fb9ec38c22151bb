package ml

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestLSTMForward(t *testing.T) {
	lstm, err := NewLSTM(
		[][]float64{{0, 0, 0, 0}},
		[][]float64{{0, 0, 0, 0}},
		[]float64{0, 0, 1, 0},
		false,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := lstm.Forward([][]float64{{3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// i = f = o = 0.5, g = tanh(1), c = 0.5*tanh(1)
	want := 0.5 * math.Tanh(0.5*math.Tanh(1))
	if len(out) != 1 || math.Abs(out[0][0]-want) > 1e-12 {
		t.Fatalf("expected %f, got %v", want, out)
	}

	seq, err := (&LSTM{
		Units:           lstm.Units,
		Kernel:          lstm.Kernel,
		RecurrentKernel: lstm.RecurrentKernel,
		Bias:            lstm.Bias,
		ReturnSequences: true,
	}).Forward([][]float64{{1}, {1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seq) != 2 {
		t.Fatalf("expected 2 timesteps, got %d", len(seq))
	}
	if seq[1][0] <= seq[0][0] {
		t.Fatalf("expected cell state to accumulate: %v", seq)
	}
}

func TestNewLSTMShapeChecks(t *testing.T) {
	if _, err := NewLSTM([][]float64{{0, 0, 0}}, [][]float64{{0, 0, 0}}, []float64{0, 0, 0}, false); err == nil {
		t.Fatal("expected error for kernel width not divisible by 4")
	}
	if _, err := NewLSTM([][]float64{{0, 0, 0, 0}}, [][]float64{{0, 0}}, []float64{0, 0, 0, 0}, false); err == nil {
		t.Fatal("expected error for recurrent kernel shape")
	}
}

func TestDenseForward(t *testing.T) {
	dense, err := NewDense([][]float64{{1, -1}, {2, -2}}, []float64{0.5, 0}, "relu")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := dense.Forward([][]float64{{1, 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0][0] != 3.5 || out[0][1] != 0 {
		t.Fatalf("unexpected output: %v", out)
	}
	if _, err := NewDense([][]float64{{1}}, []float64{0}, "softsign"); err == nil {
		t.Fatal("expected error for unsupported activation")
	}
}

func TestNewSequentialWidthMismatch(t *testing.T) {
	a, _ := NewDense([][]float64{{1, 1}}, []float64{0, 0}, "")
	b, _ := NewDense([][]float64{{1}, {1}, {1}}, []float64{0}, "")
	if _, err := NewSequential("bad", a, b); err == nil {
		t.Fatal("expected error for mismatched layer widths")
	}
}

func TestSequentialPredictShapes(t *testing.T) {
	network := NewDummyNetwork(7)
	if network.InputDim() != FeatureCount || network.OutputDim() != 1 {
		t.Fatalf("unexpected dummy shape %d -> %d", network.InputDim(), network.OutputDim())
	}
	out, err := network.Predict([][][]float64{{make([]float64, FeatureCount)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || len(out[0]) != 1 {
		t.Fatalf("expected (1, 1) output, got %v", out)
	}
	if _, err := network.Predict([][][]float64{{make([]float64, 9)}}); err == nil {
		t.Fatal("expected error for wrong feature width")
	}
	if _, err := network.Predict(nil); err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func TestDummyNetworkIsSeeded(t *testing.T) {
	input := [][][]float64{{{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}}}
	a, _ := NewDummyNetwork(42).Predict(input)
	b, _ := NewDummyNetwork(42).Predict(input)
	if a[0][0] != b[0][0] {
		t.Fatalf("expected identical output for identical seed: %f != %f", a[0][0], b[0][0])
	}
}

func TestLoadModel(t *testing.T) {
	dir := t.TempDir()
	path := writeLSTMModel(t, dir, "model.json")

	model, err := LoadModel(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := model.Predict([][][]float64{{make([]float64, FeatureCount)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0][0] != 42 {
		t.Fatalf("expected 42, got %f", out[0][0])
	}

	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "keras h5", file: "model.h5", body: "HDF"},
		{name: "corrupt json", file: "corrupt.json", body: "{"},
		{name: "wrong format", file: "format.json", body: `{"format":"keras","layers":[]}`},
		{name: "no layers", file: "empty.json", body: `{"format":"sequential/v1","layers":[]}`},
		{name: "wrong input width", file: "narrow.json", body: `{"format":"sequential/v1","layers":[{"type":"dense","units":1,"kernel":[[1]],"bias":[0]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := filepath.Join(dir, tt.file)
			if err := os.WriteFile(bad, []byte(tt.body), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := LoadModel(bad)
			if !errors.Is(err, ErrArtifactUnavailable) {
				t.Fatalf("expected ErrArtifactUnavailable, got %v", err)
			}
		})
	}
}

// writeLSTMModel saves a 10 -> LSTM(2) -> Dense(1) network whose output is always 42.
func writeLSTMModel(t *testing.T, dir, name string) string {
	t.Helper()
	kernel := make([][]float64, FeatureCount)
	for i := range kernel {
		kernel[i] = make([]float64, 8)
	}
	lstm, err := NewLSTM(kernel, [][]float64{make([]float64, 8), make([]float64, 8)}, make([]float64, 8), false)
	if err != nil {
		t.Fatal(err)
	}
	dense, err := NewDense([][]float64{{0}, {0}}, []float64{42}, "linear")
	if err != nil {
		t.Fatal(err)
	}
	network, err := NewSequential("fixture", lstm, dense)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := network.Save(path); err != nil {
		t.Fatal(err)
	}
	return path
}
