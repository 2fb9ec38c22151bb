package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// NetworkFormat identifies the JSON layout written by Sequential.Save.
const NetworkFormat = "sequential/v1"

// Model maps a (batch, timesteps, features) tensor to a (batch, outputs) tensor.
type Model interface {
	Predict(input [][][]float64) ([][]float64, error)
}

// Layer transforms a (timesteps, width) sequence.
type Layer interface {
	Forward(seq [][]float64) ([][]float64, error)
	InputDim() int
	OutputDim() int
}

// Sequential runs its layers in order and reads the last timestep of the final layer.
type Sequential struct {
	Name   string
	layers []Layer
}

type networkFile struct {
	Format string      `json:"format"`
	Name   string      `json:"name,omitempty"`
	Layers []layerSpec `json:"layers"`
}

type layerSpec struct {
	Type            string      `json:"type"`
	Units           int         `json:"units"`
	Activation      string      `json:"activation,omitempty"`
	ReturnSequences bool        `json:"return_sequences,omitempty"`
	Kernel          [][]float64 `json:"kernel"`
	RecurrentKernel [][]float64 `json:"recurrent_kernel,omitempty"`
	Bias            []float64   `json:"bias"`
}

// NewSequential chains layers, checking that adjacent widths agree.
func NewSequential(name string, layers ...Layer) (*Sequential, error) {
	if len(layers) == 0 {
		return nil, errors.New("network has no layers")
	}
	for i := 1; i < len(layers); i++ {
		if layers[i].InputDim() != layers[i-1].OutputDim() {
			return nil, fmt.Errorf("layer %d expects width %d, previous layer produces %d",
				i, layers[i].InputDim(), layers[i-1].OutputDim())
		}
	}
	return &Sequential{Name: name, layers: layers}, nil
}

// InputDim is the feature width of the first layer.
func (n *Sequential) InputDim() int {
	return n.layers[0].InputDim()
}

// OutputDim is the width of the last layer.
func (n *Sequential) OutputDim() int {
	return n.layers[len(n.layers)-1].OutputDim()
}

// Predict runs each sample through every layer and keeps the last timestep.
func (n *Sequential) Predict(input [][][]float64) ([][]float64, error) {
	if len(input) == 0 {
		return nil, errors.New("empty batch")
	}
	outputs := make([][]float64, len(input))
	for b, seq := range input {
		if len(seq) == 0 {
			return nil, fmt.Errorf("sample %d has no timesteps", b)
		}
		for t, step := range seq {
			if len(step) != n.InputDim() {
				return nil, fmt.Errorf("sample %d timestep %d has width %d, expected %d", b, t, len(step), n.InputDim())
			}
		}
		current := seq
		for i, layer := range n.layers {
			next, err := layer.Forward(current)
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
			current = next
		}
		outputs[b] = current[len(current)-1]
	}
	return outputs, nil
}

// Save writes the network in NetworkFormat.
func (n *Sequential) Save(path string) error {
	file := networkFile{Format: NetworkFormat, Name: n.Name}
	for _, layer := range n.layers {
		switch l := layer.(type) {
		case *Dense:
			file.Layers = append(file.Layers, layerSpec{
				Type:       "dense",
				Units:      l.OutputDim(),
				Activation: l.Activation,
				Kernel:     l.Kernel,
				Bias:       l.Bias,
			})
		case *LSTM:
			file.Layers = append(file.Layers, layerSpec{
				Type:            "lstm",
				Units:           l.Units,
				ReturnSequences: l.ReturnSequences,
				Kernel:          l.Kernel,
				RecurrentKernel: l.RecurrentKernel,
				Bias:            l.Bias,
			})
		default:
			return fmt.Errorf("cannot serialize layer %T", layer)
		}
	}
	payload, err := json.Marshal(file)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// LoadNetwork reads a network written by Save.
func LoadNetwork(path string) (*Sequential, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file networkFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, fmt.Errorf("decode network %s: %w", path, err)
	}
	if file.Format != NetworkFormat {
		return nil, fmt.Errorf("network %s: unsupported format %q", path, file.Format)
	}
	layers := make([]Layer, 0, len(file.Layers))
	for i, spec := range file.Layers {
		layer, err := spec.build()
		if err != nil {
			return nil, fmt.Errorf("network %s layer %d: %w", path, i, err)
		}
		layers = append(layers, layer)
	}
	return NewSequential(file.Name, layers...)
}

func (s layerSpec) build() (Layer, error) {
	switch s.Type {
	case "dense":
		return NewDense(s.Kernel, s.Bias, s.Activation)
	case "lstm":
		return NewLSTM(s.Kernel, s.RecurrentKernel, s.Bias, s.ReturnSequences)
	default:
		return nil, fmt.Errorf("unsupported layer type %q", s.Type)
	}
}

// Dense applies act(x·Kernel + Bias) to every timestep. Kernel is (input, units).
type Dense struct {
	Kernel     [][]float64
	Bias       []float64
	Activation string
	act        func(float64) float64
}

// NewDense validates kernel and bias shapes and resolves the activation by name.
func NewDense(kernel [][]float64, bias []float64, activation string) (*Dense, error) {
	units, err := matrixWidth(kernel)
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	if len(bias) != units {
		return nil, fmt.Errorf("bias has %d entries, expected %d", len(bias), units)
	}
	act, err := activationFunc(activation)
	if err != nil {
		return nil, err
	}
	return &Dense{Kernel: kernel, Bias: bias, Activation: activation, act: act}, nil
}

// InputDim and OutputDim report the kernel shape.
func (d *Dense) InputDim() int  { return len(d.Kernel) }
func (d *Dense) OutputDim() int { return len(d.Bias) }

// Forward applies the layer to every timestep.
func (d *Dense) Forward(seq [][]float64) ([][]float64, error) {
	out := make([][]float64, len(seq))
	for t, x := range seq {
		if len(x) != d.InputDim() {
			return nil, fmt.Errorf("dense input width %d, expected %d", len(x), d.InputDim())
		}
		y := affine(x, d.Kernel, d.Bias)
		for j := range y {
			y[j] = d.act(y[j])
		}
		out[t] = y
	}
	return out, nil
}

// LSTM is a single recurrent layer with Keras weight layout: Kernel is
// (input, 4*units), RecurrentKernel is (units, 4*units), gates ordered i, f, c, o.
type LSTM struct {
	Units           int
	Kernel          [][]float64
	RecurrentKernel [][]float64
	Bias            []float64
	ReturnSequences bool
}

// NewLSTM infers units from the kernel width and validates the other shapes.
func NewLSTM(kernel, recurrent [][]float64, bias []float64, returnSequences bool) (*LSTM, error) {
	width, err := matrixWidth(kernel)
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	if width%4 != 0 {
		return nil, fmt.Errorf("kernel width %d is not a multiple of 4", width)
	}
	units := width / 4
	recurrentWidth, err := matrixWidth(recurrent)
	if err != nil {
		return nil, fmt.Errorf("recurrent kernel: %w", err)
	}
	if len(recurrent) != units || recurrentWidth != width {
		return nil, fmt.Errorf("recurrent kernel is %dx%d, expected %dx%d", len(recurrent), recurrentWidth, units, width)
	}
	if len(bias) != width {
		return nil, fmt.Errorf("bias has %d entries, expected %d", len(bias), width)
	}
	return &LSTM{
		Units:           units,
		Kernel:          kernel,
		RecurrentKernel: recurrent,
		Bias:            bias,
		ReturnSequences: returnSequences,
	}, nil
}

// InputDim and OutputDim report the input width and unit count.
func (l *LSTM) InputDim() int  { return len(l.Kernel) }
func (l *LSTM) OutputDim() int { return l.Units }

// Forward runs the recurrence from zero state, returning every hidden state
// or only the last one depending on ReturnSequences.
func (l *LSTM) Forward(seq [][]float64) ([][]float64, error) {
	u := l.Units
	h := make([]float64, u)
	c := make([]float64, u)
	var out [][]float64
	for _, x := range seq {
		if len(x) != l.InputDim() {
			return nil, fmt.Errorf("lstm input width %d, expected %d", len(x), l.InputDim())
		}
		z := affine(x, l.Kernel, l.Bias)
		r := affine(h, l.RecurrentKernel, nil)
		next := make([]float64, u)
		for j := 0; j < u; j++ {
			i := sigmoid(z[j] + r[j])
			f := sigmoid(z[u+j] + r[u+j])
			g := math.Tanh(z[2*u+j] + r[2*u+j])
			o := sigmoid(z[3*u+j] + r[3*u+j])
			c[j] = f*c[j] + i*g
			next[j] = o * math.Tanh(c[j])
		}
		h = next
		if l.ReturnSequences {
			out = append(out, h)
		}
	}
	if !l.ReturnSequences {
		out = [][]float64{h}
	}
	return out, nil
}

// affine computes x·w + b; b may be nil.
func affine(x []float64, w [][]float64, b []float64) []float64 {
	width := 0
	if len(w) > 0 {
		width = len(w[0])
	}
	y := make([]float64, width)
	if b != nil {
		copy(y, b)
	}
	for i, xi := range x {
		if xi == 0 {
			continue
		}
		row := w[i]
		for j := range y {
			y[j] += xi * row[j]
		}
	}
	return y
}

func matrixWidth(m [][]float64) (int, error) {
	if len(m) == 0 || len(m[0]) == 0 {
		return 0, errors.New("matrix is empty")
	}
	width := len(m[0])
	for i, row := range m {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), width)
		}
	}
	return width, nil
}

func activationFunc(name string) (func(float64) float64, error) {
	switch name {
	case "", "linear":
		return func(v float64) float64 { return v }, nil
	case "relu":
		return func(v float64) float64 { return math.Max(0, v) }, nil
	case "sigmoid":
		return sigmoid, nil
	case "tanh":
		return math.Tanh, nil
	default:
		return nil, fmt.Errorf("unsupported activation %q", name)
	}
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}
