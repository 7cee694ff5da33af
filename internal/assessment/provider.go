package assessment

import (
	"context"
	"fmt"
)

// Provider abstracts the external risk inference service. Predict returns the
// raw structured text the service produced; any failure to obtain it is
// reported as an error, preferably a *PredictionFailure.
type Provider interface {
	Name() string
	Predict(ctx context.Context, params WeatherParameters) ([]byte, error)
}

// Recorder receives every completed assessment cycle.
type Recorder interface {
	Record(ctx context.Context, a Assessment) error
}

// TrendSource produces the ordered risk history shown next to the gauge.
type TrendSource interface {
	Trend(ctx context.Context) ([]HistoricalDataPoint, error)
}

// Failure stages. They are logged, never branched on.
const (
	StageConfig    = "config"
	StageTransport = "transport"
	StageStatus    = "status"
	StageDecode    = "decode"
	StageTimeout   = "timeout"
	StageCircuit   = "circuit"
	StageSchema    = "schema"
)

// PredictionFailure is any failure to obtain a usable assessment from the provider.
type PredictionFailure struct {
	Stage string
	Err   error
}

func (e *PredictionFailure) Error() string {
	if e.Err == nil {
		return "prediction failed (" + e.Stage + ")"
	}
	return fmt.Sprintf("prediction failed (%s): %v", e.Stage, e.Err)
}

func (e *PredictionFailure) Unwrap() error {
	return e.Err
}

// Failf builds a PredictionFailure for stage.
func Failf(stage, format string, args ...any) *PredictionFailure {
	return &PredictionFailure{Stage: stage, Err: fmt.Errorf(format, args...)}
}
