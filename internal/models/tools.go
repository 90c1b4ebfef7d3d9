// Package models defines tool structures for LLM function calling.
package models

import (
	"encoding/json"
	"fmt"
)

// InterviewToolName is the function the model is forced to answer with
// during the onboarding interview.
const InterviewToolName = "send_interview_response"

// InterviewResponseParams defines the arguments of the interview response
// tool call.
type InterviewResponseParams struct {
	NextMessage       string  `json:"nextMessage"`       // Next message to show the participant
	IsComplete        bool    `json:"isComplete"`        // Whether the interview is finished
	EstimatedProgress float64 `json:"estimatedProgress"` // Rough completion percentage (0-100)
}

// Validate ensures the interview response parameters are usable.
func (p *InterviewResponseParams) Validate() error {
	if p.NextMessage == "" {
		return fmt.Errorf("nextMessage is required")
	}
	if p.EstimatedProgress < 0 || p.EstimatedProgress > 100 {
		return fmt.Errorf("estimatedProgress out of range: %v", p.EstimatedProgress)
	}
	return nil
}

// ParseInterviewResponseParams parses raw tool-call arguments as
// InterviewResponseParams.
func ParseInterviewResponseParams(name string, arguments json.RawMessage) (*InterviewResponseParams, error) {
	if name != InterviewToolName {
		return nil, fmt.Errorf("function name %s is not an interview response function", name)
	}

	var params InterviewResponseParams
	if err := json.Unmarshal(arguments, &params); err != nil {
		return nil, fmt.Errorf("failed to parse interview response parameters: %w", err)
	}

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid interview response parameters: %w", err)
	}

	return &params, nil
}
