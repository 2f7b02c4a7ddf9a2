package domain

import (
	"errors"
	"fmt"
)

// Analysis errors. Callers match them with errors.Is.
var (
	// ErrPrecondition is returned when required input is missing, a stage
	// runs before its prerequisite, or an expected column is absent.
	ErrPrecondition = errors.New("precondition violation")

	// ErrInsufficientSample is returned when a statistic has fewer
	// observations than it needs, e.g. a stress test with no shock responses.
	ErrInsufficientSample = errors.New("insufficient sample")
)

// Warning is a non-fatal data-quality note. Warnings are reported, never returned as errors.
type Warning struct {
	Stage   string
	Message string
}

func (w Warning) String() string {
	return w.Stage + ": " + w.Message
}

// Warnings collects data-quality notes across pipeline stages.
type Warnings []Warning

// Addf appends a formatted warning.
func (ws *Warnings) Addf(stage, format string, args ...any) {
	*ws = append(*ws, Warning{Stage: stage, Message: fmt.Sprintf(format, args...)})
}

// Strings renders each warning as "stage: message".
func (ws Warnings) Strings() []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.String()
	}
	return out
}
