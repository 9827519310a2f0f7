package link

import (
	"context"
	"fmt"

	"go.bug.st/serial"
)

// SerialLink talks to a controller wired to a serial port. Frames use the
// same framing as TCP. Serial ports have no write deadline.
type SerialLink struct {
	*client
}

// NewSerial creates a serial link on cfg.Addr (e.g. /dev/ttyUSB0).
func NewSerial(cfg Config, binder Binder) *SerialLink {
	l := &SerialLink{}
	l.client = newClient(KindSerial, cfg, binder, l.dial)
	return l
}

func (l *SerialLink) dial(context.Context) (transport, error) {
	port, err := serial.Open(l.cfg.Addr, &serial.Mode{BaudRate: l.cfg.Baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.cfg.Addr, err)
	}
	return newStreamTransport(port, l.cfg.Codec, nil), nil
}

// SerialPorts lists the serial ports present on this machine.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
