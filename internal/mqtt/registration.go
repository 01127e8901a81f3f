package mqtt

import (
	"encoding/json"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Command actions accepted on node/+/cmd.
const (
	ActionActivate    = "activate"
	ActionCycle       = "cycle"
	ActionDoubleCycle = "double_cycle"
	ActionReset       = "reset"
	ActionPulseTime   = "pulse_time"
	ActionTint        = "tint"
	ActionSecondary   = "secondary"
)

// Command is a node command payload.
type Command struct {
	Action string `json:"action"`
	Value  int    `json:"value"`
}

// Validate checks the action and its value range.
func (c Command) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Action, validation.Required, validation.In(
			ActionActivate, ActionCycle, ActionDoubleCycle, ActionReset,
			ActionPulseTime, ActionTint, ActionSecondary,
		)),
		validation.Field(&c.Value,
			validation.Min(0),
			validation.When(c.Action == ActionTint, validation.Max(15)),
			validation.When(c.Action == ActionPulseTime, validation.Max(127)),
		),
	)
}

// ParseCommand decodes and validates a command payload. A bare action
// name without JSON is accepted as well.
func ParseCommand(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		var s string
		if json.Unmarshal(data, &s) == nil {
			cmd.Action = s
		} else if len(data) > 0 && data[0] != '{' {
			cmd.Action = string(data)
		} else {
			return nil, fmt.Errorf("invalid command JSON: %w", err)
		}
	}
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}
	return &cmd, nil
}

// InputPayload drives an external signal source.
type InputPayload struct {
	Level *int `json:"level"`
}

// Validate requires a level in 0..15.
func (p InputPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Level, validation.NotNil, validation.Min(0), validation.Max(15)),
	)
}

// ParseInput decodes and validates an input payload.
func ParseInput(data []byte) (int, error) {
	var p InputPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, fmt.Errorf("invalid input JSON: %w", err)
	}
	if err := p.Validate(); err != nil {
		return 0, fmt.Errorf("invalid input: %w", err)
	}
	return *p.Level, nil
}

// StatePayload is the retained per-node state message.
type StatePayload struct {
	Powered bool   `json:"powered"`
	Power   int    `json:"power"`
	Tick    uint64 `json:"tick"`
	Type    string `json:"type,omitempty"`
	Alias   string `json:"alias,omitempty"`
}
