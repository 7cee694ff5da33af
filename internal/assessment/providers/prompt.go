package providers

import (
	"fmt"
	"strconv"

	"github.com/i474232898/wildfire-risk-assessment/internal/assessment"
)

// BuildPrompt renders all seven parameters into the assessment instruction.
// The output depends only on p.
func BuildPrompt(p assessment.WeatherParameters) string {
	return fmt.Sprintf(`Analyze the following forest weather data and provide a wildfire risk assessment:
    - Temperature: %s°C
    - Relative Humidity: %s%%
    - Wind Speed: %s km/h
    - Rainfall (24h): %s mm
    - FFMC (Fine Fuel Moisture Code): %s
    - DMC (Duff Moisture Code): %s
    - DC (Drought Code): %s

    Act as a professional fire behavior scientist. Provide a detailed risk assessment including probability, reasoning, and specific safety recommendations for forest management or residents.
    Return only the structured fields: riskLevel (one of Low, Moderate, High, Extreme), probability (0-100), reasoning, recommendations, spreadIndex (0-100).`,
		num(p.Temperature), num(p.Humidity), num(p.WindSpeed), num(p.Rainfall),
		num(p.FFMC), num(p.DMC), num(p.DC))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// schemaProperty is one node of the structured-output schema.
type schemaProperty struct {
	Type        string                    `json:"type"`
	Description string                    `json:"description,omitempty"`
	Items       *schemaProperty           `json:"items,omitempty"`
	Properties  map[string]schemaProperty `json:"properties,omitempty"`
	Required    []string                  `json:"required,omitempty"`
}

// predictionSchema is the PredictionResult shape requested from the model.
func predictionSchema() schemaProperty {
	return schemaProperty{
		Type: "OBJECT",
		Properties: map[string]schemaProperty{
			"riskLevel": {
				Type:        "STRING",
				Description: "One of: Low, Moderate, High, Extreme",
			},
			"probability": {
				Type:        "NUMBER",
				Description: "Percentage probability of fire ignition (0-100)",
			},
			"reasoning": {
				Type:        "STRING",
				Description: "Detailed scientific reasoning for the risk level",
			},
			"recommendations": {
				Type:        "ARRAY",
				Items:       &schemaProperty{Type: "STRING"},
				Description: "Safety and prevention steps",
			},
			"spreadIndex": {
				Type:        "NUMBER",
				Description: "Projected spread index based on wind and fuel (0-100)",
			},
		},
		Required: []string{"riskLevel", "probability", "reasoning", "recommendations", "spreadIndex"},
	}
}
