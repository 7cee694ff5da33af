package assessment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/i474232898/wildfire-risk-assessment/internal/common"
)

// RiskLevel is the ordered wildfire ignition risk classification.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
	RiskExtreme  RiskLevel = "Extreme"
)

var riskLevels = []RiskLevel{RiskLow, RiskModerate, RiskHigh, RiskExtreme}

// Rank returns the position of the level in Low < Moderate < High < Extreme,
// or -1 for an unrecognized value.
func (l RiskLevel) Rank() int {
	for i, lvl := range riskLevels {
		if l == lvl {
			return i
		}
	}
	return -1
}

// Valid reports whether l is one of the four canonical levels.
func (l RiskLevel) Valid() bool {
	return l.Rank() >= 0
}

// ParseRiskLevel matches s case-insensitively against the canonical level names.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	s = strings.TrimSpace(s)
	for _, lvl := range riskLevels {
		if strings.EqualFold(s, string(lvl)) {
			return lvl, true
		}
	}
	return "", false
}

// Field names one of the seven environmental inputs.
type Field string

const (
	FieldTemperature Field = "temperature"
	FieldHumidity    Field = "humidity"
	FieldWindSpeed   Field = "windSpeed"
	FieldRainfall    Field = "rainfall"
	FieldFFMC        Field = "ffmc"
	FieldDMC         Field = "dmc"
	FieldDC          Field = "dc"
)

// ErrUnknownField is returned when a field name does not match any parameter.
var ErrUnknownField = errors.New("unknown weather parameter")

// FieldDomain describes the closed interval a field is kept in.
type FieldDomain struct {
	Field Field   `json:"field"`
	Label string  `json:"label"`
	Unit  string  `json:"unit,omitempty"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Clamp bounds v to the domain.
func (d FieldDomain) Clamp(v float64) float64 {
	return common.Clamp(v, d.Min, d.Max)
}

// domains is kept in display order.
var domains = []FieldDomain{
	{Field: FieldTemperature, Label: "Temperature", Unit: "°C", Min: 0, Max: 50},
	{Field: FieldHumidity, Label: "Relative Humidity", Unit: "%", Min: 0, Max: 100},
	{Field: FieldWindSpeed, Label: "Wind Speed", Unit: "km/h", Min: 0, Max: 120},
	{Field: FieldRainfall, Label: "Rainfall (24h)", Unit: "mm", Min: 0, Max: 100},
	{Field: FieldFFMC, Label: "FFMC (Fine Fuel Moisture Code)", Min: 0, Max: 101},
	{Field: FieldDMC, Label: "DMC (Duff Moisture Code)", Min: 0, Max: 200},
	{Field: FieldDC, Label: "DC (Drought Code)", Min: 0, Max: 800},
}

// Domains returns every field domain in display order.
func Domains() []FieldDomain {
	out := make([]FieldDomain, len(domains))
	copy(out, domains)
	return out
}

// Domain returns the domain of f.
func Domain(f Field) (FieldDomain, bool) {
	for _, d := range domains {
		if d.Field == f {
			return d, true
		}
	}
	return FieldDomain{}, false
}

// ParseField resolves a wire name such as "windSpeed" into a Field.
func ParseField(name string) (Field, error) {
	if _, ok := Domain(Field(name)); ok {
		return Field(name), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// WeatherParameters is an immutable snapshot of the environmental inputs.
type WeatherParameters struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
	Rainfall    float64 `json:"rainfall"`
	FFMC        float64 `json:"ffmc"`
	DMC         float64 `json:"dmc"`
	DC          float64 `json:"dc"`
}

// DefaultParameters returns the startup parameter set.
func DefaultParameters() WeatherParameters {
	return WeatherParameters{
		Temperature: 28,
		Humidity:    45,
		WindSpeed:   15,
		Rainfall:    0,
		FFMC:        85,
		DMC:         30,
		DC:          150,
	}
}

// Get returns the value of f.
func (p WeatherParameters) Get(f Field) (float64, error) {
	switch f {
	case FieldTemperature:
		return p.Temperature, nil
	case FieldHumidity:
		return p.Humidity, nil
	case FieldWindSpeed:
		return p.WindSpeed, nil
	case FieldRainfall:
		return p.Rainfall, nil
	case FieldFFMC:
		return p.FFMC, nil
	case FieldDMC:
		return p.DMC, nil
	case FieldDC:
		return p.DC, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, string(f))
}

// With returns a copy of p with f set to value clamped into its domain.
func (p WeatherParameters) With(f Field, value float64) (WeatherParameters, error) {
	d, ok := Domain(f)
	if !ok {
		return p, fmt.Errorf("%w: %q", ErrUnknownField, string(f))
	}
	v := d.Clamp(value)

	switch f {
	case FieldTemperature:
		p.Temperature = v
	case FieldHumidity:
		p.Humidity = v
	case FieldWindSpeed:
		p.WindSpeed = v
	case FieldRainfall:
		p.Rainfall = v
	case FieldFFMC:
		p.FFMC = v
	case FieldDMC:
		p.DMC = v
	case FieldDC:
		p.DC = v
	}
	return p, nil
}

// Clamped returns p with every field forced into its domain.
func (p WeatherParameters) Clamped() WeatherParameters {
	for _, d := range domains {
		v, _ := p.Get(d.Field)
		p, _ = p.With(d.Field, v)
	}
	return p
}

// PredictionResult is a validated wildfire risk assessment.
type PredictionResult struct {
	RiskLevel       RiskLevel `json:"riskLevel"`
	Probability     float64   `json:"probability"`
	Reasoning       string    `json:"reasoning"`
	Recommendations []string  `json:"recommendations"`
	SpreadIndex     float64   `json:"spreadIndex"`
}

// FallbackResult returns the fixed result published whenever a real assessment
// cannot be obtained or validated.
func FallbackResult() PredictionResult {
	return PredictionResult{
		RiskLevel:       RiskModerate,
		Probability:     50,
		Reasoning:       "Analysis interrupted. Standard moderate caution advised.",
		Recommendations: []string{"Stay alert for local weather updates."},
		SpreadIndex:     40,
	}
}

// Outcome tells a genuine assessment apart from a fallback.
type Outcome string

const (
	OutcomeNone     Outcome = "none"
	OutcomeSuccess  Outcome = "success"
	OutcomeFallback Outcome = "fallback"
)

// Assessment is one completed request cycle.
type Assessment struct {
	ID         string            `json:"id"`
	Parameters WeatherParameters `json:"parameters"`
	Result     PredictionResult  `json:"result"`
	Outcome    Outcome           `json:"outcome"`
	AssessedAt time.Time         `json:"assessedAt"` // always UTC
	Latency    time.Duration     `json:"-"`
}

// HistoricalDataPoint is a labeled risk sample for the trend chart.
type HistoricalDataPoint struct {
	Label     string  `json:"label"`
	RiskValue float64 `json:"riskValue"`
}
