package agent

import (
	"fmt"
)

// FailureKind classifies why a turn ended without a final answer
type FailureKind string

const (
	// FailureBlocked the upstream refused the completion (content filter)
	FailureBlocked FailureKind = "blocked"
	// FailureAPIError the upstream call failed (transport or API error)
	FailureAPIError FailureKind = "api_error"
	// FailureTimeout the turn deadline expired mid-flight
	FailureTimeout FailureKind = "timeout"
	// FailureRoundLimit the tool loop hit its round bound
	FailureRoundLimit FailureKind = "round_limit_exceeded"
)

// TurnError is fatal to the current turn only. Tool and file failures
// never produce one; they are fed back to the model as tool results.
type TurnError struct {
	Kind FailureKind
	Err  error
}

func (e *TurnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("turn failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("turn failed (%s)", e.Kind)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

// Message returns user-presentable text for the failure
func (e *TurnError) Message() string {
	switch e.Kind {
	case FailureBlocked:
		return "The model declined to answer this request."
	case FailureTimeout:
		return "The request timed out before the assistant could finish."
	case FailureRoundLimit:
		return "The assistant used too many tool calls without reaching an answer."
	default:
		return "Failed to get a response from the AI service."
	}
}
