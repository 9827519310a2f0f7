package telemetry

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"

	"github.com/teslashibe/go-targetlink/internal/log"
)

// Codec turns messages into link frames and back.
type Codec interface {
	Name() string
	Marshal(msg *Message) ([]byte, error)
	Unmarshal(data []byte) (*Message, error)
}

// CodecByName returns the codec for "json" or "cbor".
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return NewJSONCodec(), nil
	case "cbor":
		return NewCBORCodec(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// JSONCodec encodes messages as JSON text.
//
// Targets are encoded one record at a time; a record JSON cannot carry
// (NaN or Inf in any field) is left out of the frame and counted, and the
// remaining records are still sent.
type JSONCodec struct {
	skipped atomic.Uint64
}

// NewJSONCodec creates a JSON codec.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Name implements Codec.
func (c *JSONCodec) Name() string { return "json" }

// Skipped returns the number of records omitted so far.
func (c *JSONCodec) Skipped() uint64 { return c.skipped.Load() }

// Marshal implements Codec.
func (c *JSONCodec) Marshal(msg *Message) ([]byte, error) {
	td := msg.TargetsData()
	if td == nil {
		data, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s message: %w", msg.Type, err)
		}
		return data, nil
	}

	encoded := make([]json.RawMessage, 0, len(td.Targets))
	for i, r := range td.Targets {
		b, err := c.marshalRecord(r)
		if err != nil {
			c.skipped.Add(1)
			log.Component("telemetry").Warn("target record skipped",
				"index", i, "captured_at_ns", td.CapturedAtNs, "error", err)
			continue
		}
		encoded = append(encoded, b)
	}

	wire := struct {
		Type      MessageType `json:"type"`
		Timestamp int64       `json:"ts,omitempty"`
		Data      any         `json:"data"`
	}{
		Type:      msg.Type,
		Timestamp: msg.Timestamp,
		Data: struct {
			CapturedAtNs  int64             `json:"captured_at_ns"`
			CapturedAgoMs int64             `json:"captured_ago_ms"`
			Targets       []json.RawMessage `json:"targets"`
		}{td.CapturedAtNs, td.CapturedAgoMs, encoded},
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal targets message: %w", err)
	}
	return data, nil
}

func (c *JSONCodec) marshalRecord(r Record) ([]byte, error) {
	if !r.Finite() {
		return nil, fmt.Errorf("%w: %+v", ErrNonFinite, r)
	}
	return json.Marshal(r)
}

// Unmarshal implements Codec.
func (c *JSONCodec) Unmarshal(data []byte) (*Message, error) {
	return ParseMessage(data)
}

// CBORCodec encodes messages as CBOR. Non-finite values are representable
// and are sent as-is.
type CBORCodec struct{}

// NewCBORCodec creates a CBOR codec.
func NewCBORCodec() *CBORCodec {
	return &CBORCodec{}
}

// Name implements Codec.
func (CBORCodec) Name() string { return "cbor" }

// Marshal implements Codec.
func (CBORCodec) Marshal(msg *Message) ([]byte, error) {
	data, err := cbor.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", msg.Type, err)
	}
	return data, nil
}

// Unmarshal implements Codec.
func (CBORCodec) Unmarshal(data []byte) (*Message, error) {
	var raw struct {
		Type      MessageType     `cbor:"type"`
		Timestamp int64           `cbor:"ts"`
		Data      cbor.RawMessage `cbor:"data"`
	}
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode cbor message: %w", err)
	}

	msg := &Message{Type: raw.Type, Timestamp: raw.Timestamp}
	if len(raw.Data) == 0 {
		return msg, nil
	}
	payload := payloadFor(raw.Type)
	if payload == nil {
		msg.Data = raw.Data
		return msg, nil
	}
	if err := cbor.Unmarshal(raw.Data, payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s data: %w", raw.Type, err)
	}
	msg.Data = payload
	return msg, nil
}
