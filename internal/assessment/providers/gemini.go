package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/wildfire-risk-assessment/internal/assessment"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultGeminiModel   = "gemini-3-pro-preview"

	maxResponseBytes = 1 << 20
)

// GeminiConfig is everything the provider needs; nothing is read from the
// environment at call time.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Backoff BackoffConfig
}

// GeminiProvider implements assessment.Provider against the Gemini
// generateContent API with a fixed structured-output schema.
type GeminiProvider struct {
	name    string
	apiKey  string
	baseURL string
	model   string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewGeminiProvider(client *http.Client, cfg GeminiConfig) *GeminiProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Backoff == (BackoffConfig{}) {
		cfg.Backoff = DefaultBackoff
	}

	return &GeminiProvider{
		name:    "gemini",
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: cfg.Backoff,
		},
		circuit: newBreaker("gemini"),
	}
}

func (p *GeminiProvider) Name() string {
	return p.name
}

// Enabled reports whether a credential is configured.
func (p *GeminiProvider) Enabled() bool {
	return p.apiKey != ""
}

func (p *GeminiProvider) endpoint() string {
	return p.baseURL + "/" + p.model + ":generateContent"
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseMimeType string         `json:"responseMimeType"`
		ResponseSchema   schemaProperty `json:"responseSchema"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// Predict returns the model's structured text for params. A missing API key is
// reported here, at call time, so the rest of the service stays usable.
func (p *GeminiProvider) Predict(ctx context.Context, params assessment.WeatherParameters) ([]byte, error) {
	if p.apiKey == "" {
		return nil, assessment.Failf(assessment.StageConfig, "gemini api key is not configured")
	}

	var body geminiRequest
	body.Contents = []geminiContent{{Parts: []geminiPart{{Text: BuildPrompt(params)}}}}
	body.GenerationConfig.ResponseMimeType = "application/json"
	body.GenerationConfig.ResponseSchema = predictionSchema()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &assessment.PredictionFailure{Stage: assessment.StageConfig, Err: err}
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, p.endpoint(), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", p.apiKey)
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &assessment.PredictionFailure{Stage: assessment.StageTransport, Err: err}
	}

	var gr geminiResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return nil, &assessment.PredictionFailure{Stage: assessment.StageDecode, Err: err}
	}

	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, assessment.Failf(assessment.StageDecode, "empty response from gemini")
	}

	var text strings.Builder
	for _, part := range gr.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return []byte(text.String()), nil
}
