package models

import "fmt"

// EventKind tags the two sources that feed the completion pipeline.
type EventKind string

const (
	EventQuizPassed         EventKind = "quiz-passed"
	EventStepMarkedComplete EventKind = "step-marked-complete"
)

// CompletionEvent is the validated payload handed to the engine. Both event
// kinds map onto the same pipeline; the kind is kept for logging and quiz
// attempt bookkeeping.
type CompletionEvent struct {
	Kind   EventKind `json:"kind"`
	UserID string    `json:"user_id"`
	StepID string    `json:"step_id"`

	// Quiz fields, only meaningful for EventQuizPassed.
	Score            int `json:"score,omitempty"`
	TimeSpentSeconds int `json:"time_spent_seconds,omitempty"`
}

// Validate enforces required fields before the event enters the pipeline.
func (e CompletionEvent) Validate() error {
	switch e.Kind {
	case EventQuizPassed, EventStepMarkedComplete:
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if e.UserID == "" {
		return fmt.Errorf("%s event missing user_id", e.Kind)
	}
	if e.StepID == "" {
		return fmt.Errorf("%s event missing step_id", e.Kind)
	}
	return nil
}
