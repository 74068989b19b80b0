package controller

import (
	"fmt"

	"github.com/example/expression-client/internal/classifier"
	"github.com/example/expression-client/internal/probability"
)

// Status is the interaction phase derived from the controller state.
type Status int

const (
	StatusNoSelection Status = iota
	StatusReady
	StatusSubmitting
	StatusSuccess
	StatusFailed
)

var statusNames = map[Status]string{
	StatusNoSelection: "no_selection",
	StatusReady:       "ready",
	StatusSubmitting:  "submitting",
	StatusSuccess:     "success",
	StatusFailed:      "failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText lets Status render as its name in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// deriveStatus is never stored; it is recomputed from the raw fields.
func deriveStatus(hasSelection, inFlight bool, result *Result, errMsg string) Status {
	switch {
	case inFlight:
		return StatusSubmitting
	case result != nil:
		return StatusSuccess
	case errMsg != "":
		return StatusFailed
	case hasSelection:
		return StatusReady
	default:
		return StatusNoSelection
	}
}

// Result is a successful classification, ready for display. It is replaced
// wholesale and never modified once built.
type Result struct {
	Expression    string               `json:"expression"`
	Accuracy      float64              `json:"accuracy"`
	AccuracyText  string               `json:"accuracy_text"`
	Probabilities *probability.Mapping `json:"probabilities"`
	Entries       []probability.Entry  `json:"entries"`
}

func newResult(resp *classifier.Response) *Result {
	probs := resp.Probabilities
	if probs == nil {
		probs = probability.NewMapping()
	}
	return &Result{
		Expression:    resp.Expression,
		Accuracy:      resp.Accuracy,
		AccuracyText:  probability.FormatPercent(resp.Accuracy / 100),
		Probabilities: probs,
		Entries:       probability.Shape(probs),
	}
}

// State is a read-only snapshot of what the view renders.
type State struct {
	HasSelection bool    `json:"has_selection"`
	Filename     string  `json:"filename,omitempty"`
	PreviewID    string  `json:"preview_id,omitempty"`
	InFlight     bool    `json:"in_flight"`
	Result       *Result `json:"result"`
	Error        string  `json:"error"`
	CanSubmit    bool    `json:"can_submit"`
	Status       Status  `json:"status"`
}
