package zwave

import (
	"fmt"
	"io"
	"time"

	serial "github.com/daedaluz/goserial"
)

// DefaultBaudRate is the baud rate nearly every Z-Wave USB stick uses.
const DefaultBaudRate = serial.B115200

// serialPort adapts goserial's duration-based SetReadTimeout to the
// absolute-deadline SetReadDeadline shape frameReader expects (the same
// shape net.Conn and net.Pipe already satisfy), so the real TTY transport
// and the in-memory test transport can share one code path in ioreader.go.
type serialPort struct {
	*serial.Port
}

func (p serialPort) SetReadDeadline(t time.Time) error {
	if t.IsZero() {
		p.Port.SetReadTimeout(-1)
		return nil
	}
	p.Port.SetReadTimeout(time.Until(t))
	return nil
}

// OpenSerial opens path as a raw, 8N1 serial port at baud and returns an
// io.ReadWriteCloser suitable for Engine.Open, grounded in
// github.com/daedaluz/goserial (spec.md's "serial-attached Z-Wave radio").
func OpenSerial(path string, baud serial.CFlag) (io.ReadWriteCloser, error) {
	port, err := serial.Open(path, serial.NewOptions().SetReadTimeout(0))
	if err != nil {
		return nil, fmt.Errorf("zwave: open serial port %s: %w", path, err)
	}
	if err := port.MakeRaw(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("zwave: make raw %s: %w", path, err)
	}
	attrs, err := port.GetAttr()
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("zwave: get termios %s: %w", path, err)
	}
	attrs.SetSpeed(baud)
	if err := port.SetAttr(serial.TCSANOW, attrs); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("zwave: set baud rate %s: %w", path, err)
	}
	return serialPort{port}, nil
}

// CycleSerial returns a closure that closes and reopens path, used by the
// I/O thread's one-shot port-cycle recovery after a write or read failure
// (spec.md §7). It swaps the engine's reader/writer in place so ioLoop can
// keep running against the same Engine; pass the result as Open's cyclePort
// argument.
func (e *Engine) CycleSerial(path string, baud serial.CFlag) func() error {
	return func() error {
		if e.transport != nil {
			_ = e.transport.Close()
		}
		t, err := OpenSerial(path, baud)
		if err != nil {
			return err
		}
		e.transport = t
		e.fr = newFrameReader(t, e.logger)
		e.fw = newFrameWriter(t)
		return nil
	}
}
