package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// ScalerKind names the transform a Scaler applies.
type ScalerKind string

const (
	// ScalerStandard centers on the mean and divides by the population standard deviation.
	ScalerStandard ScalerKind = "standard"
	// ScalerMinMax maps each feature onto [0, 1] using the fitted bounds.
	ScalerMinMax ScalerKind = "minmax"
)

// Scaler is a fitted per-feature linear transform. It is not modified after Fit or Load.
type Scaler struct {
	Kind  ScalerKind `json:"kind"`
	Mean  []float64  `json:"mean,omitempty"`
	Scale []float64  `json:"scale,omitempty"`
	Min   []float64  `json:"min,omitempty"`
	Max   []float64  `json:"max,omitempty"`
}

// FitStandardScaler fits per-column mean and population standard deviation.
// A constant column gets scale 1.
func FitStandardScaler(rows [][]float64) (*Scaler, error) {
	width, err := checkRows(rows)
	if err != nil {
		return nil, err
	}
	means := make([]float64, width)
	scales := make([]float64, width)
	for col := 0; col < width; col++ {
		var sum float64
		for _, row := range rows {
			sum += row[col]
		}
		m := sum / float64(len(rows))
		var sq float64
		for _, row := range rows {
			d := row[col] - m
			sq += d * d
		}
		std := math.Sqrt(sq / float64(len(rows)))
		if std == 0 {
			std = 1
		}
		means[col] = m
		scales[col] = std
	}
	return &Scaler{Kind: ScalerStandard, Mean: means, Scale: scales}, nil
}

// FitMinMaxScaler fits per-column bounds.
func FitMinMaxScaler(rows [][]float64) (*Scaler, error) {
	if _, err := checkRows(rows); err != nil {
		return nil, err
	}
	mins := append([]float64(nil), rows[0]...)
	maxs := append([]float64(nil), rows[0]...)
	for _, row := range rows[1:] {
		for col, value := range row {
			if value < mins[col] {
				mins[col] = value
			}
			if value > maxs[col] {
				maxs[col] = value
			}
		}
	}
	return &Scaler{Kind: ScalerMinMax, Min: mins, Max: maxs}, nil
}

// DefaultScaler is a standard scaler fitted on ReferenceSample alone, so it
// only subtracts the reference values.
func DefaultScaler() *Scaler {
	scaler, err := FitStandardScaler([][]float64{ReferenceSample()})
	if err != nil {
		panic(err)
	}
	return scaler
}

// Dim returns the number of features the scaler was fitted on.
func (s *Scaler) Dim() int {
	switch s.Kind {
	case ScalerMinMax:
		return len(s.Min)
	default:
		return len(s.Mean)
	}
}

// Transform scales values, which must match Dim.
func (s *Scaler) Transform(values []float64) ([]float64, error) {
	if len(values) != s.Dim() {
		return nil, fmt.Errorf("scaler expects %d features, got %d", s.Dim(), len(values))
	}
	switch s.Kind {
	case ScalerStandard:
		result := make([]float64, len(values))
		for i, v := range values {
			result[i] = (v - s.Mean[i]) / s.Scale[i]
		}
		return result, nil
	case ScalerMinMax:
		return NormalizeVector(values, s.Min, s.Max)
	default:
		return nil, fmt.Errorf("unsupported scaler kind %q", s.Kind)
	}
}

// Save writes the scaler as indented JSON.
func (s *Scaler) Save(path string) error {
	if err := s.validate(); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// LoadScaler reads and validates a scaler written by Save.
func LoadScaler(path string) (*Scaler, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var scaler Scaler
	if err := json.Unmarshal(payload, &scaler); err != nil {
		return nil, fmt.Errorf("decode scaler %s: %w", path, err)
	}
	if err := scaler.validate(); err != nil {
		return nil, fmt.Errorf("scaler %s: %w", path, err)
	}
	return &scaler, nil
}

func (s *Scaler) validate() error {
	switch s.Kind {
	case ScalerStandard:
		if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
			return errors.New("mean/scale length mismatch")
		}
		for i, scale := range s.Scale {
			if scale == 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
				return fmt.Errorf("invalid scale at feature %d", i)
			}
		}
	case ScalerMinMax:
		if len(s.Min) == 0 || len(s.Min) != len(s.Max) {
			return errors.New("min/max length mismatch")
		}
		for i := range s.Min {
			lo, hi := s.Min[i], s.Max[i]
			if math.IsNaN(lo) || math.IsInf(lo, 0) || math.IsNaN(hi) || math.IsInf(hi, 0) {
				return fmt.Errorf("invalid bounds at feature %d", i)
			}
			if lo > hi {
				return fmt.Errorf("min %v exceeds max %v at feature %d", lo, hi, i)
			}
		}
	default:
		return fmt.Errorf("unsupported scaler kind %q", s.Kind)
	}
	return nil
}

func checkRows(rows [][]float64) (int, error) {
	if len(rows) == 0 {
		return 0, errors.New("rows is empty")
	}
	width := len(rows[0])
	if width == 0 {
		return 0, errors.New("rows have no columns")
	}
	for i, row := range rows {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), width)
		}
	}
	return width, nil
}

// NormalizeFeature maps value onto [0, 1] for in-range input; equal bounds give 0.
func NormalizeFeature(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (value - min) / (max - min)
}

// NormalizeVector applies NormalizeFeature element-wise.
func NormalizeVector(values []float64, mins []float64, maxs []float64) ([]float64, error) {
	if len(values) != len(mins) || len(values) != len(maxs) {
		return nil, errors.New("values/mins/maxs length mismatch")
	}
	result := make([]float64, len(values))
	for i := range values {
		result[i] = NormalizeFeature(values[i], mins[i], maxs[i])
	}
	return result, nil
}
