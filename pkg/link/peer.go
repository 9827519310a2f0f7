package link

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/teslashibe/go-targetlink/pkg/telemetry"
)

// Peer is the controller end of a stream link (TCP or serial). It decodes
// what the vision side sends and can answer with heartbeats so the
// session is not dropped as stale. Used by bench tools and tests.
type Peer struct {
	t      *streamTransport
	codec  telemetry.Codec
	source string

	mu  sync.Mutex
	seq uint64
}

// NewPeer wraps rw with the framing used for codec.
func NewPeer(rw io.ReadWriteCloser, codec telemetry.Codec, source string) *Peer {
	if codec == nil {
		codec = telemetry.NewJSONCodec()
	}
	return &Peer{
		t:      newStreamTransport(rw, codec, nil),
		codec:  codec,
		source: source,
	}
}

// Next blocks for the next message. A frame that does not decode is
// returned as ErrBadFrame and the stream stays usable; any other error
// ends the stream.
func (p *Peer) Next() (*telemetry.Message, error) {
	data, err := p.t.readFrame()
	if err != nil {
		return nil, err
	}
	msg, err := p.codec.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return msg, nil
}

// Heartbeat sends one heartbeat to the vision side.
func (p *Peer) Heartbeat() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	data, err := p.codec.Marshal(telemetry.NewHeartbeatMessage(p.seq, p.source))
	if err != nil {
		return err
	}
	return p.t.writeFrame(data, time.Second)
}

// Close closes the underlying stream.
func (p *Peer) Close() error {
	return p.t.close()
}
