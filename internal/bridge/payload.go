package bridge

import (
	"encoding/json"
	"strings"
)

// BoolValue is a tri-state boolean: a parsed true/false, or Unknown when
// the device sent something unrecognized. Unknown values are dropped
// rather than guessed at.
type BoolValue struct {
	Known bool
	Value bool
}

// Known wraps a parsed boolean.
func Known(v bool) BoolValue {
	return BoolValue{Known: true, Value: v}
}

// Unknown is the zero BoolValue.
var Unknown = BoolValue{}

// ParseBool maps the textual forms devices actually send onto a
// BoolValue. Matching is case-insensitive; surrounding whitespace is
// ignored. Anything outside the known vocabulary is Unknown.
func ParseBool(raw string) BoolValue {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "on", "true":
		return Known(true)
	case "0", "off", "false":
		return Known(false)
	default:
		return Unknown
	}
}

// parseJSONBool handles the value types a JSON status field can carry.
func parseJSONBool(v any) BoolValue {
	switch val := v.(type) {
	case bool:
		return Known(val)
	case float64:
		switch val {
		case 1:
			return Known(true)
		case 0:
			return Known(false)
		}
		return Unknown
	case string:
		return ParseBool(val)
	default:
		return Unknown
	}
}

// statusKeys are the JSON keys a status value may arrive under, checked
// in order. Firmware revisions have used all four.
var statusKeys = [...]string{"status", "state", "value", "msg"}

// StatusEvent is a decoded device report. Either field may be Unknown;
// the reconciler applies only the known ones.
type StatusEvent struct {
	Status    BoolValue
	Establish BoolValue
	Raw       string
}

// DecodeStatusPayload decodes a status topic payload. Devices send
// either a JSON object ({"status": "ON", "establish": "Connected"}) or
// a bare text value. Unrecognized values decode to Unknown without
// error; only empty or syntactically broken payloads are malformed.
func DecodeStatusPayload(payload []byte) (StatusEvent, error) {
	raw := strings.TrimSpace(string(payload))
	event := StatusEvent{Raw: raw}

	if raw == "" {
		return event, ErrMalformedPayload
	}

	if !strings.HasPrefix(raw, "{") {
		event.Status = ParseBool(raw)
		return event, nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return event, ErrMalformedPayload
	}

	for _, key := range statusKeys {
		if v, ok := fields[key]; ok {
			event.Status = parseJSONBool(v)
			break
		}
	}

	if v, ok := fields["establish"]; ok {
		if s, ok := v.(string); ok {
			switch s {
			case "Connected":
				event.Establish = Known(true)
			case "Disconnected":
				event.Establish = Known(false)
			}
		}
	}

	return event, nil
}

// Command payloads published to devices. Plain text, upper-case.
const (
	CommandOn     = "ON"
	CommandOff    = "OFF"
	CommandDelete = "DEL"
)

// NormalizeCommand maps a user-supplied command payload onto the exact
// text a device expects. Boolean variants normalize to ON/OFF; the DEL
// sentinel passes through. Anything else is ErrInvalidPayload.
func NormalizeCommand(raw string) (string, error) {
	if strings.EqualFold(strings.TrimSpace(raw), CommandDelete) {
		return CommandDelete, nil
	}
	switch v := ParseBool(raw); {
	case v.Known && v.Value:
		return CommandOn, nil
	case v.Known:
		return CommandOff, nil
	default:
		return "", ErrInvalidPayload
	}
}
