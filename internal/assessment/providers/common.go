package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/wildfire-risk-assessment/internal/assessment"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

// DefaultBackoff is used by providers unless overridden.
var DefaultBackoff = BackoffConfig{
	MaxRetries:      2,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// statusError carries a non-2xx status out of the circuit breaker.
type statusError struct {
	code int
	kind error
}

func (e *statusError) Error() string { return fmt.Sprintf("%v: %d", e.kind, e.code) }
func (e *statusError) Unwrap() error { return e.kind }

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
}

// doRequestWithResilience executes the HTTP request with retries, exponential backoff,
// and a circuit breaker. buildRequest is called once per attempt so request bodies
// can be replayed. Every failure comes back as an *assessment.PredictionFailure.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, &assessment.PredictionFailure{Stage: assessment.StageConfig, Err: errNoHTTPClient}
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, &assessment.PredictionFailure{Stage: assessment.StageConfig, Err: errInvalidConfig}
	}

	var attempt int

	for {
		if err := ctx.Err(); err != nil {
			return nil, contextFailure(err)
		}

		req, err := buildRequest()
		if err != nil {
			return nil, &assessment.PredictionFailure{Stage: assessment.StageConfig, Err: err}
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}

			// Drain so the connection can be reused.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
			resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return nil, &statusError{code: resp.StatusCode, kind: errRateLimited}
			case resp.StatusCode >= 500:
				return nil, &statusError{code: resp.StatusCode, kind: errServerError}
			default:
				return nil, &statusError{code: resp.StatusCode, kind: errUnexpected}
			}
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, assessment.Failf(assessment.StageDecode, "unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &assessment.PredictionFailure{
				Stage: assessment.StageCircuit,
				Err:   fmt.Errorf("%w: %v", errCircuitOpen, err),
			}
		}

		var se *statusError
		isStatus := errors.As(err, &se)
		if isStatus && !se.retryable() {
			return nil, &assessment.PredictionFailure{Stage: assessment.StageStatus, Err: err}
		}

		if attempt >= cfg.Backoff.MaxRetries {
			if isStatus {
				return nil, &assessment.PredictionFailure{Stage: assessment.StageStatus, Err: err}
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, contextFailure(ctxErr)
			}
			return nil, &assessment.PredictionFailure{Stage: assessment.StageTransport, Err: err}
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, contextFailure(ctx.Err())
		case <-timer.C:
		}

		attempt++
	}
}

func contextFailure(err error) *assessment.PredictionFailure {
	if errors.Is(err, context.DeadlineExceeded) {
		return &assessment.PredictionFailure{Stage: assessment.StageTimeout, Err: err}
	}
	return &assessment.PredictionFailure{Stage: assessment.StageTransport, Err: err}
}
