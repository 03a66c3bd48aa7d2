// Package display provides human-readable names for pipeline codes.
//
// Codes stay in JSON, YAML, the ledger and metric labels. Words are for the
// terminal and for reports a person reads.
package display

import "strings"

var stages = map[string]string{
	"data_ingestion":      "Data ingestion",
	"data_validation":     "Data validation",
	"data_transformation": "Feature engineering",
	"model_trainer":       "Model training",
	"model_evaluation":    "Model evaluation",
	"promotion":           "Promotion",
	"done":                "Done",
}

// Stage returns the label for a stage name. Unknown names are humanized.
func Stage(code string) string {
	if name, ok := stages[code]; ok {
		return name
	}
	return Humanize(code)
}

var outcomes = map[string]string{
	"promoted":          "Promoted",
	"validation_failed": "Validation failed",
	"model_rejected":    "Model rejected",
	"failed":            "Failed",
	"running":           "Running",
}

// Outcome returns the label for a run outcome.
func Outcome(code string) string {
	if code == "" {
		return outcomes["running"]
	}
	if name, ok := outcomes[code]; ok {
		return name
	}
	return Humanize(code)
}

var gates = map[string]string{
	"schema_and_drift":  "Schema and drift",
	"evaluation_floors": "Evaluation floors",
}

// Gate returns the label for a gate name, or "" for no gate.
func Gate(code string) string {
	if code == "" {
		return ""
	}
	if name, ok := gates[code]; ok {
		return name
	}
	return Humanize(code)
}

var models = map[string]string{
	"logistic_regression": "Logistic regression",
	"gaussian_nb":         "Gaussian naive Bayes",
}

// Model returns the label for a classifier kind.
func Model(kind string) string {
	if name, ok := models[kind]; ok {
		return name
	}
	return kind
}

// Humanize turns a snake_case code into a capitalized phrase.
func Humanize(code string) string {
	s := strings.TrimSpace(strings.ReplaceAll(code, "_", " "))
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
