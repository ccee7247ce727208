package stream

import (
	"encoding/json"
	"fmt"
)

// CommandType names a control command sent by the presentation layer.
type CommandType string

const (
	CmdPause       CommandType = "pause"
	CmdTogglePause CommandType = "toggle_pause"
	CmdToggleState CommandType = "toggle_state"
	CmdReset       CommandType = "reset"
	CmdSpeed       CommandType = "speed"
	CmdOrbitRadius CommandType = "orbit_radius"
)

// Command is one control input. Commands are queued by the hub and applied
// by the simulation loop between steps.
type Command struct {
	Type      CommandType `json:"type"`
	Satellite string      `json:"satellite,omitempty"`
	Paused    *bool       `json:"paused,omitempty"`
	Value     *float64    `json:"value,omitempty"`

	// ClientID identifies the sender; set by the hub.
	ClientID string `json:"-"`
}

// ParseCommand decodes and validates a JSON command.
func ParseCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	switch cmd.Type {
	case CmdTogglePause, CmdReset:
	case CmdPause:
		if cmd.Paused == nil {
			return Command{}, fmt.Errorf("command %q requires \"paused\"", cmd.Type)
		}
	case CmdToggleState:
		if cmd.Satellite == "" {
			return Command{}, fmt.Errorf("command %q requires \"satellite\"", cmd.Type)
		}
	case CmdSpeed, CmdOrbitRadius:
		if cmd.Value == nil {
			return Command{}, fmt.Errorf("command %q requires \"value\"", cmd.Type)
		}
	case "":
		return Command{}, fmt.Errorf("command type is required")
	default:
		return Command{}, fmt.Errorf("unknown command type %q", cmd.Type)
	}
	return cmd, nil
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func encodeError(err error) []byte {
	b, _ := json.Marshal(errorMessage{Type: "error", Error: err.Error()})
	return b
}
