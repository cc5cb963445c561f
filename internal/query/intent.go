package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/i474232898/area-weather-forecast/internal/common"
	"github.com/i474232898/area-weather-forecast/internal/weather"
)

// Intent is the routing target of a question.
type Intent string

const (
	IntentTemperature   Intent = "temperature"
	IntentPrecipitation Intent = "precipitation"
	IntentWind          Intent = "wind"
	IntentForecast      Intent = "forecast"
	IntentUnmatched     Intent = "unmatched"
)

// Result is the outcome of RouteIntent. Matched == false is the Unmatched
// signal: the caller should fall back to a general answering mechanism.
type Result struct {
	Matched  bool             `json:"matched"`
	Intent   Intent           `json:"intent"`
	Variable weather.Variable `json:"variable,omitempty"`
	Answer   string           `json:"answer,omitempty"`
}

type intentRule struct {
	intent   Intent
	variable weather.Variable
	keywords []string
	phrases  []string
}

// intentTable is evaluated in order; the first matching rule wins. Keywords
// match whole words only, so inflections are listed explicitly.
var intentTable = []intentRule{
	{
		intent:   IntentTemperature,
		variable: weather.MaxTemperature,
		keywords: []string{
			"temp", "temps", "temperature", "temperatures",
			"hot", "hotter", "hottest", "cold", "colder", "coldest",
			"warm", "warmer", "warmest", "warmth", "heat", "heatwave",
			"chilly", "freezing", "degree", "degrees", "celsius",
		},
	},
	{
		intent:   IntentPrecipitation,
		variable: weather.PrecipitationTotal,
		keywords: []string{
			"precipitation", "rain", "rains", "rained", "raining", "rainy", "rainfall",
			"snow", "snows", "snowed", "snowing", "snowy", "snowfall",
			"drizzle", "shower", "showers", "wet", "wetter", "wettest",
		},
	},
	{
		intent:   IntentWind,
		variable: weather.MaxWindSpeed,
		keywords: []string{"wind", "winds", "windy", "windier", "breeze", "breezy", "gust", "gusts", "gusty"},
	},
	{
		intent: IntentForecast,
		keywords: []string{
			"forecast", "forecasts", "predict", "predicted", "prediction", "predictions",
			"future", "tomorrow", "outlook", "upcoming",
		},
		phrases: []string{"next week", "next month", "will it"},
	},
}

// RouteIntent matches question against the keyword table and answers from
// r directly. It never calls external services.
func RouteIntent(r Reader, question string) Result {
	words := common.Words(question)
	normalized := strings.Join(words, " ")

	for _, rule := range intentTable {
		if !common.AnyWord(words, rule.keywords...) && !common.HasAny(normalized, rule.phrases...) {
			continue
		}
		res := Result{Matched: true, Intent: rule.intent, Variable: rule.variable}
		if rule.intent == IntentForecast {
			res.Answer = answerForecast(r)
		} else {
			res.Answer = answerVariable(r, rule.intent, rule.variable)
		}
		return res
	}
	return Result{Matched: false, Intent: IntentUnmatched}
}

func answerVariable(r Reader, intent Intent, v weather.Variable) string {
	hist, ok := r.Historical()
	if !ok {
		return NoDataMessage
	}
	if !hist.Has(v) {
		return fmt.Sprintf("No %s data is loaded for this area.", v.Label())
	}
	latest, date, ok := hist.LastValid(v)
	if !ok {
		return fmt.Sprintf("All %s values between %s and %s are missing.", v.Label(), hist.Start, hist.End)
	}

	st := ColumnStats(hist.Column(v))
	unit := v.Unit()
	head := fmt.Sprintf("The latest %s (%s) was %.1f %s.", v.Label(), date, latest, unit)

	switch intent {
	case IntentTemperature:
		return fmt.Sprintf("%s The mean %s from %s to %s was %.1f %s.", head, v.Label(), hist.Start, hist.End, st.Mean, unit)
	case IntentPrecipitation:
		return fmt.Sprintf("%s Total %s from %s to %s was %.1f %s.", head, v.Label(), hist.Start, hist.End, st.Sum, unit)
	case IntentWind:
		return fmt.Sprintf("%s The highest %s from %s to %s was %.1f %s.", head, v.Label(), hist.Start, hist.End, st.Max, unit)
	default:
		return head
	}
}

func answerForecast(r Reader) string {
	if _, ok := r.Historical(); !ok {
		return NoDataMessage
	}
	forecasts := r.Forecasts()
	if len(forecasts) == 0 {
		return "No forecast has been computed yet."
	}

	parts := make([]string, 0, len(forecasts))
	for _, fs := range forecasts {
		mean, max := PredictionStats(fs.Future())
		parts = append(parts, fmt.Sprintf("%s for the next %d days (mean %.1f %s, max %.1f %s)",
			fs.Variable.Label(), fs.Horizon, mean, fs.Variable.Unit(), max, fs.Variable.Unit()))
	}
	return "Forecasts available: " + strings.Join(parts, "; ") + "."
}

// Answerer is the general-purpose fallback for unmatched questions, e.g. an
// LLM client. It receives the Summarize digest as context.
type Answerer interface {
	Answer(ctx context.Context, question, digest string) (string, error)
}

// DigestAnswerer answers every question with the digest itself.
type DigestAnswerer struct{}

func (DigestAnswerer) Answer(_ context.Context, _ string, digest string) (string, error) {
	return "I can only answer from the loaded data. Here is what I know:\n" + digest, nil
}
