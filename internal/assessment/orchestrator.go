package assessment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 45 * time.Second

// State is the presentation read contract. Result is nil until the first
// cycle completes; presentation must not render result panels until then.
type State struct {
	Parameters   WeatherParameters `json:"parameters"`
	Result       *PredictionResult `json:"result"`
	Outcome      Outcome           `json:"outcome"`
	InFlight     bool              `json:"inFlight"`
	AssessmentID string            `json:"assessmentId,omitempty"`
	AssessedAt   *time.Time        `json:"assessedAt,omitempty"`
}

// Observation is a set of measured surface conditions that can replace the
// corresponding parameters in one step.
type Observation struct {
	Source       string    `json:"source"`
	ObservedAt   time.Time `json:"observedAt"`
	TemperatureC float64   `json:"temperature"`
	HumidityPct  float64   `json:"humidity"`
	WindSpeedKmh float64   `json:"windSpeed"`
	RainfallMm   float64   `json:"rainfall"`
}

// Orchestrator owns the current parameters and the published assessment, and
// runs at most one provider request at a time. A trigger while a request is in
// flight is dropped, not queued.
type Orchestrator struct {
	params    *ParameterStore
	provider  Provider
	recorders []Recorder
	timeout   time.Duration
	now       func() time.Time

	mu       sync.Mutex
	inFlight bool
	done     chan struct{}
	last     *Assessment
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder adds a sink that receives every completed cycle.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorders = append(o.recorders, r)
		}
	}
}

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithInitialParameters replaces DefaultParameters as the startup snapshot.
func WithInitialParameters(p WeatherParameters) Option {
	return func(o *Orchestrator) {
		o.params = NewParameterStore(p)
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates an orchestrator and immediately starts the initial
// assessment against the startup parameters. ctx bounds that first request.
func NewOrchestrator(ctx context.Context, provider Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		params:   NewParameterStore(DefaultParameters()),
		provider: provider,
		timeout:  DefaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.TriggerAsync(ctx)
	return o
}

// Parameters returns the current parameter snapshot.
func (o *Orchestrator) Parameters() WeatherParameters {
	return o.params.Get()
}

// UpdateParameter clamps and stores one field. It does not trigger a new
// assessment; an in-flight request keeps the snapshot it started with.
func (o *Orchestrator) UpdateParameter(f Field, value float64) (WeatherParameters, error) {
	return o.params.Set(f, value)
}

// ApplyObservation copies the measured conditions into the parameters.
// Fuel moisture codes are left untouched.
func (o *Orchestrator) ApplyObservation(obs Observation) (WeatherParameters, error) {
	return o.params.Update(map[Field]float64{
		FieldTemperature: obs.TemperatureC,
		FieldHumidity:    obs.HumidityPct,
		FieldWindSpeed:   obs.WindSpeedKmh,
		FieldRainfall:    obs.RainfallMm,
	})
}

// State returns a consistent view of parameters, published result and the
// in-flight flag.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := State{
		Parameters: o.params.Get(),
		Outcome:    OutcomeNone,
		InFlight:   o.inFlight,
	}
	if o.last != nil {
		res := o.last.Result
		res.Recommendations = append([]string(nil), res.Recommendations...)
		at := o.last.AssessedAt

		st.Result = &res
		st.Outcome = o.last.Outcome
		st.AssessmentID = o.last.ID
		st.AssessedAt = &at
	}
	return st
}

// Last returns the most recent completed assessment, if any.
func (o *Orchestrator) Last() (Assessment, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return Assessment{}, false
	}
	return *o.last, true
}

// InFlight reports whether a provider request is outstanding.
func (o *Orchestrator) InFlight() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

// Trigger runs one assessment cycle and blocks until it settles. When another
// request is already in flight the call is dropped and ok is false.
func (o *Orchestrator) Trigger(ctx context.Context) (Assessment, bool) {
	snapshot, done, ok := o.begin()
	if !ok {
		return Assessment{}, false
	}
	return o.run(ctx, snapshot, done), true
}

// TriggerAsync starts a cycle in the background. The in-flight flag is set
// before it returns. It reports false when the trigger was dropped.
func (o *Orchestrator) TriggerAsync(ctx context.Context) bool {
	snapshot, done, ok := o.begin()
	if !ok {
		return false
	}
	go o.run(ctx, snapshot, done)
	return true
}

// Wait blocks until no request is in flight or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	if !o.inFlight {
		o.mu.Unlock()
		return nil
	}
	done := o.done
	o.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// begin moves Idle -> Requesting and binds the request to the parameter
// snapshot taken now.
func (o *Orchestrator) begin() (WeatherParameters, chan struct{}, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.inFlight {
		log.Printf("DEBUG: assessment already in flight; trigger dropped")
		return WeatherParameters{}, nil, false
	}
	o.inFlight = true
	o.done = make(chan struct{})
	return o.params.Get(), o.done, true
}

func (o *Orchestrator) run(ctx context.Context, snapshot WeatherParameters, done chan struct{}) Assessment {
	a := Assessment{
		ID:         uuid.NewString(),
		Parameters: snapshot,
		Outcome:    OutcomeFallback,
		Result:     FallbackResult(),
	}
	start := o.now()

	// The in-flight flag is released on every exit path.
	settled := false
	defer func() {
		if settled {
			return
		}
		o.mu.Lock()
		o.inFlight = false
		close(done)
		o.mu.Unlock()
	}()

	raw, err := o.predict(ctx, snapshot)
	result, outcome, cause := Validate(raw, err)

	a.Result = result
	a.Outcome = outcome
	end := o.now()
	a.AssessedAt = end.UTC()
	a.Latency = end.Sub(start)

	o.mu.Lock()
	published := a
	o.last = &published
	o.inFlight = false
	close(done)
	settled = true
	o.mu.Unlock()

	if cause != nil {
		log.Printf("WARN: assessment %s fell back after %s: %v", a.ID, a.Latency, cause)
	} else {
		log.Printf("INFO: assessment %s completed in %s: level=%s probability=%.1f spread=%.1f",
			a.ID, a.Latency, a.Result.RiskLevel, a.Result.Probability, a.Result.SpreadIndex)
	}

	for _, r := range o.recorders {
		o.record(ctx, r, a)
	}

	return a
}

// record hands a to one recorder. The caller's cancellation does not abort
// it, but each call is bounded by the orchestrator timeout.
func (o *Orchestrator) record(ctx context.Context, r Recorder, a Assessment) {
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()

	if err := r.Record(recCtx, a); err != nil {
		log.Printf("ERROR: recording assessment %s failed: %v", a.ID, err)
	}
}

// predict calls the provider under the configured timeout and converts a
// missing provider, an expired deadline or a panic into a PredictionFailure.
func (o *Orchestrator) predict(ctx context.Context, params WeatherParameters) (raw []byte, err error) {
	if o.provider == nil {
		return nil, Failf(StageConfig, "no prediction provider configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			raw, err = nil, Failf(StageTransport, "provider %s panicked: %v", o.provider.Name(), r)
		}
	}()

	raw, err = o.provider.Predict(callCtx, params)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return nil, &PredictionFailure{
			Stage: StageTimeout,
			Err:   fmt.Errorf("provider %s exceeded %s: %w", o.provider.Name(), o.timeout, err),
		}
	}
	return raw, err
}
