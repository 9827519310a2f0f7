package link

import (
	"bufio"
	"bytes"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/teslashibe/go-targetlink/pkg/telemetry"
)

// maxLineSize bounds a single newline-delimited frame.
const maxLineSize = 64 * 1024

// frameReader splits a byte stream into frames.
type frameReader interface {
	readFrame() ([]byte, error)
}

// newFrameReader picks the framing for codec: JSON frames are
// newline-delimited, CBOR frames are a plain sequence of data items.
func newFrameReader(r io.Reader, codec telemetry.Codec) frameReader {
	if codec != nil && codec.Name() == "cbor" {
		return &cborReader{dec: cbor.NewDecoder(r)}
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	return &lineReader{sc: sc}
}

// appendDelimiter returns data framed for a stream.
func appendDelimiter(data []byte, codec telemetry.Codec) []byte {
	if codec != nil && codec.Name() == "cbor" {
		return data
	}
	return append(data, '\n')
}

type lineReader struct {
	sc *bufio.Scanner
}

func (r *lineReader) readFrame() ([]byte, error) {
	for r.sc.Scan() {
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

type cborReader struct {
	dec *cbor.Decoder
}

func (r *cborReader) readFrame() ([]byte, error) {
	var raw cbor.RawMessage
	if err := r.dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// streamTransport frames messages over a byte stream such as a TCP
// connection or a serial port.
type streamTransport struct {
	rw       io.ReadWriteCloser
	fr       frameReader
	codec    telemetry.Codec
	deadline func(time.Time) error // nil when the stream has no write deadline
}

func newStreamTransport(rw io.ReadWriteCloser, codec telemetry.Codec, deadline func(time.Time) error) *streamTransport {
	return &streamTransport{
		rw:       rw,
		fr:       newFrameReader(rw, codec),
		codec:    codec,
		deadline: deadline,
	}
}

func (t *streamTransport) readFrame() ([]byte, error) {
	return t.fr.readFrame()
}

func (t *streamTransport) writeFrame(data []byte, timeout time.Duration) error {
	if t.deadline != nil && timeout > 0 {
		if err := t.deadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	_, err := t.rw.Write(appendDelimiter(data, t.codec))
	return err
}

func (t *streamTransport) atomicWrites() bool { return false }

func (t *streamTransport) close() error {
	return t.rw.Close()
}
