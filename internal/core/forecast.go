package core

import (
	"fmt"
	"time"
)

const (
	Horizon7Day  Horizon = "7day"
	Horizon14Day Horizon = "14day"
	Horizon30Day Horizon = "30day"

	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type (
	// Horizon is the forecast length.
	Horizon string

	// RiskLevel classifies forecast risk.
	RiskLevel string

	// Prediction is one forecast point, in major currency units.
	Prediction struct {
		Date            time.Time `json:"date"`
		PredictedAmount float64   `json:"predictedAmount"`
		LowerBound      float64   `json:"lowerBound"`
		UpperBound      float64   `json:"upperBound"`
		Confidence      float64   `json:"confidence"`
	}

	// ForecastMetadata describes the model and training window used.
	ForecastMetadata struct {
		ModelVersion  string    `json:"modelVersion"`
		TrainingStart time.Time `json:"trainingStart"`
		TrainingEnd   time.Time `json:"trainingEnd"`
		FeaturesUsed  []string  `json:"featuresUsed"`
	}

	// Forecast is a dated, append-only snapshot keyed by (owner, horizon).
	Forecast struct {
		ID            string
		Owner         string
		Horizon       Horizon
		Predictions   []Prediction
		RiskIndicator RiskLevel
		RiskScore     float64
		Metadata      ForecastMetadata
		ComputedAt    time.Time
	}
)

// Days returns the horizon length in days.
func (h Horizon) Days() int {
	switch h {
	case Horizon7Day:
		return 7
	case Horizon14Day:
		return 14
	case Horizon30Day:
		return 30
	}
	return 0
}

func (h Horizon) Validate() error {
	if h.Days() == 0 {
		return fmt.Errorf("%w: unknown horizon %q", ErrValidation, h)
	}
	return nil
}

// Horizons lists the supported forecast horizons.
func Horizons() []Horizon {
	return []Horizon{Horizon7Day, Horizon14Day, Horizon30Day}
}
