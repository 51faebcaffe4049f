// Package command defines the robot command set and its wire encoding.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
)

const toggleValue = "TOGGLE"

// ErrUnknownCommand is returned when a payload matches no known command shape.
var ErrUnknownCommand = errors.New("unknown command")

type rotateBody struct {
	S float64  `json:"s"`
	O *float64 `json:"o"`
}

type rotateFrame struct {
	Y rotateBody `json:"Y"`
}

type translateBody struct {
	D int     `json:"d"`
	S float64 `json:"s"`
}

type translateFrame struct {
	T translateBody `json:"T"`
}

// Marshal encodes cmd as a compact JSON text frame.
func Marshal(cmd Command) ([]byte, error) {
	switch c := cmd.(type) {
	case Rotate:
		return json.Marshal(rotateFrame{Y: rotateBody{S: c.Speed, O: c.Orientation}})
	case Translate:
		return json.Marshal(translateFrame{T: translateBody{D: c.Direction, S: c.Speed}})
	case PowerToggle:
		key, err := sideKey("POWER", c.Side)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{key: toggleValue})
	case LightsToggle:
		key, err := sideKey("LIGHTS", c.Side)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{key: toggleValue})
	case nil:
		return nil, fmt.Errorf("marshal: %w: nil", ErrUnknownCommand)
	default:
		return nil, fmt.Errorf("marshal: %w: %T", ErrUnknownCommand, cmd)
	}
}

// Unmarshal decodes a text frame produced by Marshal.
// LightsToggle.State is not carried on the wire and decodes as empty.
func Unmarshal(data []byte) (Command, error) {
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, err
	}
	if len(frame) != 1 {
		return nil, fmt.Errorf("unmarshal: %w: %d keys", ErrUnknownCommand, len(frame))
	}
	for key, raw := range frame {
		switch key {
		case "Y":
			var body rotateBody
			if err := json.Unmarshal(raw, &body); err != nil {
				return nil, fmt.Errorf("unmarshal Y: %w", err)
			}
			return Rotate{Speed: body.S, Orientation: body.O}, nil
		case "T":
			var body translateBody
			if err := json.Unmarshal(raw, &body); err != nil {
				return nil, fmt.Errorf("unmarshal T: %w", err)
			}
			return Translate{Speed: body.S, Direction: body.D}, nil
		case "POWER_LEFT", "POWER_RIGHT", "LIGHTS_LEFT", "LIGHTS_RIGHT":
			var value string
			if err := json.Unmarshal(raw, &value); err != nil || value != toggleValue {
				return nil, fmt.Errorf("unmarshal %s: %w", key, ErrUnknownCommand)
			}
			return toggleFromKey(key), nil
		}
		return nil, fmt.Errorf("unmarshal: %w: %q", ErrUnknownCommand, key)
	}
	return nil, ErrUnknownCommand
}

// sideKey builds the POWER_LEFT style key for a side.
func sideKey(prefix string, side Side) (string, error) {
	switch side {
	case Left:
		return prefix + "_LEFT", nil
	case Right:
		return prefix + "_RIGHT", nil
	default:
		return "", fmt.Errorf("marshal %s: invalid side %q", prefix, side)
	}
}

// toggleFromKey maps a toggle key back to its command.
func toggleFromKey(key string) Command {
	switch key {
	case "POWER_LEFT":
		return PowerToggle{Side: Left}
	case "POWER_RIGHT":
		return PowerToggle{Side: Right}
	case "LIGHTS_LEFT":
		return LightsToggle{Side: Left}
	default:
		return LightsToggle{Side: Right}
	}
}
