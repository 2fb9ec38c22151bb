package ml

import (
	"fmt"
	"math"
	"math/rand/v2"
	"path/filepath"
	"strings"
)

// LoadModel decodes the model at path, choosing the decoder by file extension.
func LoadModel(path string) (*Sequential, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		network, err := LoadNetwork(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrArtifactUnavailable, err)
		}
		if network.InputDim() != FeatureCount {
			return nil, fmt.Errorf("%w: model %s expects %d features, want %d",
				ErrArtifactUnavailable, path, network.InputDim(), FeatureCount)
		}
		if network.OutputDim() != 1 {
			return nil, fmt.Errorf("%w: model %s has %d outputs, want 1",
				ErrArtifactUnavailable, path, network.OutputDim())
		}
		return network, nil
	default:
		return nil, fmt.Errorf("%w: unsupported model type %q", ErrArtifactUnavailable, filepath.Ext(path))
	}
}

// NewDummyNetwork builds an untrained Dense(10 relu) -> Dense(5 relu) -> Dense(1)
// network with Glorot-uniform weights drawn from seed. Its output has the right
// shape and no meaning.
func NewDummyNetwork(seed uint64) *Sequential {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	shape := []struct {
		units      int
		activation string
	}{
		{10, "relu"},
		{5, "relu"},
		{1, "linear"},
	}
	layers := make([]Layer, 0, len(shape))
	in := FeatureCount
	for _, s := range shape {
		limit := math.Sqrt(6 / float64(in+s.units))
		kernel := make([][]float64, in)
		for i := range kernel {
			kernel[i] = make([]float64, s.units)
			for j := range kernel[i] {
				kernel[i][j] = (rng.Float64()*2 - 1) * limit
			}
		}
		dense, err := NewDense(kernel, make([]float64, s.units), s.activation)
		if err != nil {
			panic(err)
		}
		layers = append(layers, dense)
		in = s.units
	}
	network, err := NewSequential("dummy", layers...)
	if err != nil {
		panic(err)
	}
	return network
}
