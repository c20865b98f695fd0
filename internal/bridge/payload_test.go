package bridge

import (
	"errors"
	"testing"
)

func TestParseBool(t *testing.T) {
	tests := []struct {
		raw  string
		want BoolValue
	}{
		{"1", Known(true)},
		{"on", Known(true)},
		{"ON", Known(true)},
		{"On", Known(true)},
		{"true", Known(true)},
		{"0", Known(false)},
		{"off", Known(false)},
		{"OFF", Known(false)},
		{"false", Known(false)},
		{"  on  ", Known(true)},
		{"", Unknown},
		{"maybe", Unknown},
		{"2", Unknown},
		{"onn", Unknown},
	}

	for _, tt := range tests {
		if got := ParseBool(tt.raw); got != tt.want {
			t.Errorf("ParseBool(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestDecodeStatusPayload_JSON(t *testing.T) {
	tests := []struct {
		name          string
		payload       string
		wantStatus    BoolValue
		wantEstablish BoolValue
	}{
		{"status key string", `{"status": "ON"}`, Known(true), Unknown},
		{"state key", `{"state": "off"}`, Known(false), Unknown},
		{"value key bool", `{"value": true}`, Known(true), Unknown},
		{"msg key", `{"msg": "ON"}`, Known(true), Unknown},
		{"numeric one", `{"status": 1}`, Known(true), Unknown},
		{"numeric zero", `{"status": 0}`, Known(false), Unknown},
		{"numeric other", `{"status": 7}`, Unknown, Unknown},
		{"establish connected", `{"establish": "Connected"}`, Unknown, Known(true)},
		{"establish disconnected", `{"establish": "Disconnected"}`, Unknown, Known(false)},
		{"establish garbage", `{"establish": "Sleeping"}`, Unknown, Unknown},
		{"both fields", `{"status": "OFF", "establish": "Connected"}`, Known(false), Known(true)},
		{"unrecognized status", `{"status": "dim"}`, Unknown, Unknown},
		{"no known keys", `{"brightness": 40}`, Unknown, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := DecodeStatusPayload([]byte(tt.payload))
			if err != nil {
				t.Fatalf("DecodeStatusPayload() error: %v", err)
			}
			if event.Status != tt.wantStatus {
				t.Errorf("status = %+v, want %+v", event.Status, tt.wantStatus)
			}
			if event.Establish != tt.wantEstablish {
				t.Errorf("establish = %+v, want %+v", event.Establish, tt.wantEstablish)
			}
		})
	}
}

func TestDecodeStatusPayload_BareText(t *testing.T) {
	event, err := DecodeStatusPayload([]byte("ON"))
	if err != nil {
		t.Fatalf("DecodeStatusPayload() error: %v", err)
	}
	if event.Status != Known(true) {
		t.Errorf("status = %+v, want Known(true)", event.Status)
	}
	if event.Raw != "ON" {
		t.Errorf("raw = %q", event.Raw)
	}

	// Unrecognized bare text decodes to Unknown without error.
	event, err = DecodeStatusPayload([]byte("whatever"))
	if err != nil {
		t.Fatalf("DecodeStatusPayload() error: %v", err)
	}
	if event.Status.Known || event.Establish.Known {
		t.Errorf("unrecognized text should decode to Unknown, got %+v", event)
	}
}

func TestDecodeStatusPayload_Malformed(t *testing.T) {
	for _, payload := range []string{"", "   ", `{"status": "ON"`, "{not json}"} {
		if _, err := DecodeStatusPayload([]byte(payload)); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("payload %q: expected ErrMalformedPayload, got %v", payload, err)
		}
	}
}

func TestNormalizeCommand(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"on", CommandOn, false},
		{"ON", CommandOn, false},
		{"1", CommandOn, false},
		{"true", CommandOn, false},
		{"off", CommandOff, false},
		{"0", CommandOff, false},
		{"false", CommandOff, false},
		{"DEL", CommandDelete, false},
		{"del", CommandDelete, false},
		{" del ", CommandDelete, false},
		{"", "", true},
		{"toggle", "", true},
		{"delete", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizeCommand(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("NormalizeCommand(%q): expected ErrInvalidPayload, got %v", tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeCommand(%q) error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeCommand(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
