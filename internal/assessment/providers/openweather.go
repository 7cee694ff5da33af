package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/wildfire-risk-assessment/internal/assessment"
	"github.com/i474232898/wildfire-risk-assessment/internal/common"
)

// OpenWeatherObserver reads current surface conditions from OpenWeatherMap so
// the temperature, humidity, wind and rainfall parameters can be seeded from a
// real location.
type OpenWeatherObserver struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherObserver(client *http.Client, apiKey string) *OpenWeatherObserver {
	return &OpenWeatherObserver{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newBreaker("openweather"),
	}
}

// WithBaseURL points the observer at another endpoint.
func (p *OpenWeatherObserver) WithBaseURL(u string) *OpenWeatherObserver {
	p.baseURL = u
	return p
}

func (p *OpenWeatherObserver) Name() string {
	return p.name
}

// Observe fetches current conditions for city[,country].
func (p *OpenWeatherObserver) Observe(ctx context.Context, city, country string) (assessment.Observation, error) {
	if p.apiKey == "" {
		return assessment.Observation{}, fmt.Errorf("openweather api key is not configured")
	}
	if city == "" {
		return assessment.Observation{}, fmt.Errorf("city is required")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")

		q := city
		if country != "" {
			q = fmt.Sprintf("%s,%s", city, country)
		}
		values.Set("q", q)

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return assessment.Observation{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"` // m/s with units=metric
		} `json:"wind"`
		Rain struct {
			OneH   float64 `json:"1h"`
			ThreeH float64 `json:"3h"`
		} `json:"rain"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return assessment.Observation{}, fmt.Errorf("decode openweather response: %w", err)
	}

	ts := time.Now().UTC()
	if payload.Dt > 0 {
		ts = time.Unix(payload.Dt, 0).UTC()
	}

	precip := payload.Rain.OneH
	if precip == 0 {
		precip = payload.Rain.ThreeH
	}

	return assessment.Observation{
		Source:       p.name,
		ObservedAt:   ts,
		TemperatureC: payload.Main.Temp,
		HumidityPct:  payload.Main.Humidity,
		WindSpeedKmh: common.Round2(payload.Wind.Speed * 3.6),
		RainfallMm:   precip,
	}, nil
}
