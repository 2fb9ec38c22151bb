package ml

import (
	"fmt"
	"math"
)

// FeatureCount is the width of every feature vector the model accepts.
const FeatureCount = 10

// FeatureVector is an ordered set of measurements; positions follow FeatureNames.
type FeatureVector []float64

// Measurements holds one observation by name.
type Measurements struct {
	PM25        float64
	PM10        float64
	SO2         float64
	NO2         float64
	CO          float64
	O3          float64
	Temperature float64
	Humidity    float64
	WindSpeed   float64
	Pressure    float64
}

// Vector lays the measurements out in the order the scaler and model were fit on.
func (m Measurements) Vector() FeatureVector {
	return FeatureVector{
		m.PM25,
		m.PM10,
		m.SO2,
		m.NO2,
		m.CO,
		m.O3,
		m.Temperature,
		m.Humidity,
		m.WindSpeed,
		m.Pressure,
	}
}

// FeatureNames returns the JSON names of the features in vector order.
func FeatureNames() []string {
	return []string{
		"pm25",
		"pm10",
		"so2",
		"no2",
		"co",
		"o3",
		"temperature",
		"humidity",
		"wind_speed",
		"pressure",
	}
}

// ReferenceSample is the observation the default scaler is fitted on.
func ReferenceSample() FeatureVector {
	return Measurements{
		PM25:        35,
		PM10:        55,
		SO2:         15,
		NO2:         40,
		CO:          1,
		O3:          60,
		Temperature: 25,
		Humidity:    60,
		WindSpeed:   10,
		Pressure:    1013,
	}.Vector()
}

// ValidateFeatures reports ErrInvalidInput unless features holds exactly
// FeatureCount finite values.
func ValidateFeatures(features []float64) error {
	if len(features) != FeatureCount {
		return fmt.Errorf("%w: expected %d features, got %d", ErrInvalidInput, FeatureCount, len(features))
	}
	names := FeatureNames()
	for i, value := range features {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("%w: %s is not a finite number", ErrInvalidInput, names[i])
		}
	}
	return nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
