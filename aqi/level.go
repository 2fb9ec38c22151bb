// Package aqi maps Air Quality Index values to severity levels.
package aqi

const (
	// MinValue is the lowest AQI the service reports.
	MinValue = 0.0
	// MaxValue is the highest AQI the service reports.
	MaxValue = 500.0
)

// Level is one AQI severity tier as shown to clients.
type Level struct {
	Name        string `json:"level"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

type tier struct {
	upper float64
	level Level
}

// tiers is ascending; each upper bound is inclusive.
var tiers = []tier{
	{50, Level{Name: "Good", Color: "#00e400", Description: "Air quality is satisfactory"}},
	{100, Level{Name: "Moderate", Color: "#ffff00", Description: "Air quality is acceptable"}},
	{150, Level{Name: "Unhealthy for Sensitive Groups", Color: "#ff7e00", Description: "Sensitive groups may experience health effects"}},
	{200, Level{Name: "Unhealthy", Color: "#ff0000", Description: "Everyone may begin to experience health effects"}},
	{300, Level{Name: "Very Unhealthy", Color: "#8f3f97", Description: "Health alert: everyone may experience more serious health effects"}},
}

var hazardous = Level{Name: "Hazardous", Color: "#7e0023", Description: "Health warnings of emergency conditions"}

// LevelFor returns the level whose range contains value.
func LevelFor(value float64) Level {
	for _, t := range tiers {
		if value <= t.upper {
			return t.level
		}
	}
	return hazardous
}

// Levels returns every level in ascending order.
func Levels() []Level {
	levels := make([]Level, 0, len(tiers)+1)
	for _, t := range tiers {
		levels = append(levels, t.level)
	}
	return append(levels, hazardous)
}

// Clamp limits value to [MinValue, MaxValue].
func Clamp(value float64) float64 {
	if value < MinValue {
		return MinValue
	}
	if value > MaxValue {
		return MaxValue
	}
	return value
}
