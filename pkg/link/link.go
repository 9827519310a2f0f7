// Package link connects the vision dispatcher to the robot controller.
//
// Every link kind produces sessions that implement dispatch.Connection.
// A link attaches a session to its Binder when the controller becomes
// reachable and detaches it when the session ends. The dispatcher never
// waits on a link: sends are bounded by a write deadline and failures are
// reported back to the frame loop, which logs and moves on.
package link

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teslashibe/go-targetlink/pkg/dispatch"
	"github.com/teslashibe/go-targetlink/pkg/telemetry"
)

// Binder receives session changes. *dispatch.Dispatcher implements it.
type Binder interface {
	Attach(conn dispatch.Connection)
	Detach(conn dispatch.Connection) bool
}

// Kind names a link transport.
type Kind string

const (
	KindTCP    Kind = "tcp"
	KindWS     Kind = "ws"
	KindHub    Kind = "hub"
	KindZMQ    Kind = "zmq"
	KindSerial Kind = "serial"
	KindNone   Kind = "none"
)

// Kinds returns every supported kind.
func Kinds() []Kind {
	return []Kind{KindTCP, KindWS, KindHub, KindZMQ, KindSerial, KindNone}
}

// Config holds link settings shared by all kinds.
type Config struct {
	Addr           string          // host:port, ws URL, zmq endpoint or serial device
	Codec          telemetry.Codec // Defaults to JSON
	Heartbeat      time.Duration   // Heartbeat period, 0 disables
	WriteTimeout   time.Duration   // Bound on a single send, 0 means none
	StaleAfter     time.Duration   // Drop a silent controller after this long, 0 disables
	ReconnectDelay time.Duration   // Pause between dial attempts
	Baud           int             // Serial only
	Source         string          // Sent in heartbeats
}

// DefaultConfig returns settings for a TCP controller on localhost.
func DefaultConfig() Config {
	return Config{
		Addr:           "localhost:8254",
		Codec:          telemetry.NewJSONCodec(),
		Heartbeat:      500 * time.Millisecond,
		WriteTimeout:   100 * time.Millisecond,
		StaleAfter:     3 * time.Second,
		ReconnectDelay: time.Second,
		Baud:           115200,
		Source:         "targetlink",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Codec == nil {
		c.Codec = d.Codec
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = d.ReconnectDelay
	}
	if c.Baud <= 0 {
		c.Baud = d.Baud
	}
	if c.Source == "" {
		c.Source = d.Source
	}
	return c
}

// Link is a running transport.
type Link interface {
	// Run blocks until ctx is done, attaching and detaching sessions as the
	// controller comes and goes. It returns nil on shutdown.
	Run(ctx context.Context) error
	Kind() Kind
	Stats() Stats
}

// Stats reports link activity.
type Stats struct {
	Kind      Kind   `json:"kind"`
	Connected bool   `json:"connected"`
	SessionID string `json:"session_id,omitempty"`
	Sessions  uint64 `json:"sessions"`
	Failures  uint64 `json:"failures"`
	Sent      uint64 `json:"sent"`
	Received  uint64 `json:"received"`
}

// ParseKind parses a kind name, case-insensitively.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// New creates a link of the given kind.
func New(kind Kind, cfg Config, binder Binder) (Link, error) {
	switch kind {
	case KindTCP:
		return NewTCP(cfg, binder), nil
	case KindWS:
		return NewWS(cfg, binder), nil
	case KindHub:
		return NewHub(cfg, binder), nil
	case KindZMQ:
		return NewZMQ(cfg, binder), nil
	case KindSerial:
		return NewSerial(cfg, binder), nil
	case KindNone:
		return nopLink{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// nopLink never attaches anything; the dispatcher stays idle.
type nopLink struct{}

func (nopLink) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (nopLink) Kind() Kind { return KindNone }

func (nopLink) Stats() Stats { return Stats{Kind: KindNone} }
