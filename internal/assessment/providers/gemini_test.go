package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wildfire-risk-assessment/internal/assessment"
)

var fastBackoff = BackoffConfig{
	MaxRetries:      2,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

const modelText = `{"riskLevel":"High","probability":73,"reasoning":"Dry fuels.","recommendations":["a","b","c"],"spreadIndex":60}`

func geminiBody(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{
				"content":      map[string]any{"parts": []any{map[string]any{"text": text}}},
				"finishReason": "STOP",
			},
		},
	})
	return string(b)
}

func newTestGemini(serverURL, key string) *GeminiProvider {
	return NewGeminiProvider(&http.Client{Timeout: 5 * time.Second}, GeminiConfig{
		APIKey:  key,
		BaseURL: serverURL,
		Model:   "test-model",
		Backoff: fastBackoff,
	})
}

func failureStage(t *testing.T, err error) string {
	t.Helper()
	var pf *assessment.PredictionFailure
	require.ErrorAs(t, err, &pf)
	return pf.Stage
}

func TestGemini_MissingKeyFailsAtCallTime(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	p := newTestGemini(server.URL, "")
	assert.False(t, p.Enabled())

	_, err := p.Predict(context.Background(), assessment.DefaultParameters())
	assert.Equal(t, assessment.StageConfig, failureStage(t, err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestGemini_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.Query().Get("key"))

		var req geminiRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)
			assert.ElementsMatch(t,
				[]string{"riskLevel", "probability", "reasoning", "recommendations", "spreadIndex"},
				req.GenerationConfig.ResponseSchema.Required)
			if assert.Len(t, req.Contents, 1) && assert.NotEmpty(t, req.Contents[0].Parts) {
				assert.Contains(t, req.Contents[0].Parts[0].Text, "Temperature: 28°C")
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(geminiBody(modelText)))
	}))
	defer server.Close()

	raw, err := newTestGemini(server.URL, "secret").Predict(context.Background(), assessment.DefaultParameters())
	require.NoError(t, err)
	assert.JSONEq(t, modelText, string(raw))

	res, outcome, err := assessment.Validate(raw, nil)
	require.NoError(t, err)
	assert.Equal(t, assessment.OutcomeSuccess, outcome)
	assert.Equal(t, assessment.RiskHigh, res.RiskLevel)
}

func TestGemini_RetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(geminiBody(modelText)))
	}))
	defer server.Close()

	raw, err := newTestGemini(server.URL, "secret").Predict(context.Background(), assessment.DefaultParameters())
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestGemini_ExhaustedRetriesIsStatusFailure(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestGemini(server.URL, "secret").Predict(context.Background(), assessment.DefaultParameters())
	assert.Equal(t, assessment.StageStatus, failureStage(t, err))
	assert.Equal(t, int32(1+fastBackoff.MaxRetries), atomic.LoadInt32(&hits))
}

func TestGemini_ClientErrorIsNotRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestGemini(server.URL, "bad").Predict(context.Background(), assessment.DefaultParameters())
	assert.Equal(t, assessment.StageStatus, failureStage(t, err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestGemini_UndecodableEnvelope(t *testing.T) {
	cases := map[string]string{
		"not json":      "<html>oops</html>",
		"no candidates": `{"candidates":[]}`,
		"no parts":      `{"candidates":[{"content":{"parts":[]}}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer server.Close()

			_, err := newTestGemini(server.URL, "secret").Predict(context.Background(), assessment.DefaultParameters())
			assert.Equal(t, assessment.StageDecode, failureStage(t, err))
		})
	}
}

func TestGemini_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := newTestGemini(server.URL, "secret").Predict(ctx, assessment.DefaultParameters())
	assert.Equal(t, assessment.StageTimeout, failureStage(t, err))
}

func TestGemini_SchemaViolationFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiBody(`{"riskLevel":"High","probability":73}`)))
	}))
	defer server.Close()

	raw, err := newTestGemini(server.URL, "secret").Predict(context.Background(), assessment.DefaultParameters())
	require.NoError(t, err)

	res, outcome, cause := assessment.Validate(raw, err)
	assert.Equal(t, assessment.FallbackResult(), res)
	assert.Equal(t, assessment.OutcomeFallback, outcome)
	assert.Error(t, cause)
}

func TestBuildPrompt(t *testing.T) {
	p := assessment.WeatherParameters{
		Temperature: 31.5, Humidity: 22, WindSpeed: 40, Rainfall: 0.2,
		FFMC: 92, DMC: 110, DC: 640,
	}
	prompt := BuildPrompt(p)

	for _, want := range []string{
		"Temperature: 31.5°C",
		"Relative Humidity: 22%",
		"Wind Speed: 40 km/h",
		"Rainfall (24h): 0.2 mm",
		"FFMC (Fine Fuel Moisture Code): 92",
		"DMC (Duff Moisture Code): 110",
		"DC (Drought Code): 640",
		"fire behavior scientist",
	} {
		assert.Contains(t, prompt, want)
	}
	assert.Equal(t, prompt, BuildPrompt(p))
	assert.False(t, strings.Contains(prompt, "%!"), "no formatting verbs left unresolved")
}
