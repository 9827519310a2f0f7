package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of a link message.
type MessageType string

const (
	// Vision → controller
	TypeTargets MessageType = "targets" // One frame's targets

	// Bidirectional
	TypeHeartbeat MessageType = "heartbeat" // Liveness
)

// Message is the envelope for everything sent over a link.
// Data is *TargetsData or *HeartbeatData for the known types.
type Message struct {
	Type      MessageType `json:"type" cbor:"type"`
	Timestamp int64       `json:"ts,omitempty" cbor:"ts,omitempty"` // Unix milliseconds
	Data      any         `json:"data,omitempty" cbor:"data,omitempty"`
}

// TargetsData is the payload of a targets message.
type TargetsData struct {
	CapturedAtNs  int64    `json:"captured_at_ns" cbor:"captured_at_ns"`
	CapturedAgoMs int64    `json:"captured_ago_ms" cbor:"captured_ago_ms"`
	Targets       []Record `json:"targets" cbor:"targets"`
}

// HeartbeatData is the payload of a heartbeat message.
type HeartbeatData struct {
	Seq    uint64 `json:"seq" cbor:"seq"`
	Source string `json:"source,omitempty" cbor:"source,omitempty"`
}

// NewTargetsMessage wraps an update for sending. nowMono is the current
// monotonic time on the update's clock; it only feeds captured_ago_ms.
func NewTargetsMessage(u *VisionUpdate, nowMono int64, wall time.Time) *Message {
	ago := (nowMono - u.CapturedAt) / int64(time.Millisecond)
	if ago < 0 {
		ago = 0
	}
	return &Message{
		Type:      TypeTargets,
		Timestamp: wall.UnixMilli(),
		Data: &TargetsData{
			CapturedAtNs:  u.CapturedAt,
			CapturedAgoMs: ago,
			Targets:       Records(u),
		},
	}
}

// NewHeartbeatMessage creates a heartbeat with the current timestamp.
func NewHeartbeatMessage(seq uint64, source string) *Message {
	return &Message{
		Type:      TypeHeartbeat,
		Timestamp: time.Now().UnixMilli(),
		Data:      &HeartbeatData{Seq: seq, Source: source},
	}
}

// TargetsData returns the payload of a targets message, or nil.
func (m *Message) TargetsData() *TargetsData {
	d, _ := m.Data.(*TargetsData)
	return d
}

// HeartbeatData returns the payload of a heartbeat message, or nil.
func (m *Message) HeartbeatData() *HeartbeatData {
	d, _ := m.Data.(*HeartbeatData)
	return d
}

// payloadFor returns an empty typed payload for known message types.
func payloadFor(t MessageType) any {
	switch t {
	case TypeTargets:
		return &TargetsData{}
	case TypeHeartbeat:
		return &HeartbeatData{}
	default:
		return nil
	}
}

// ParseMessage parses a JSON message. Known payloads are decoded into
// their typed form; unknown types keep Data as json.RawMessage.
func ParseMessage(data []byte) (*Message, error) {
	var raw struct {
		Type      MessageType     `json:"type"`
		Timestamp int64           `json:"ts"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
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
	if err := json.Unmarshal(raw.Data, payload); err != nil {
		return nil, fmt.Errorf("failed to parse %s data: %w", raw.Type, err)
	}
	msg.Data = payload
	return msg, nil
}
