package zwave

import (
	"bufio"
	"io"
	"log/slog"
	"time"
)

// deadlineSetter is implemented by transports that support read deadlines
// (e.g. net.Conn, or the serialPort adapter in serial.go).
type deadlineSetter interface {
	SetReadDeadline(time.Time) error
}

// frameReader wraps an io.Reader with buffering and deadline management.
// Unlike the teacher's transportReader there is no byte-stuffing or garbage
// counting to do: the Z-Wave wire format has no escape mechanism, so only
// the buffering and timeout plumbing survive the adaptation.
type frameReader struct {
	r      *bufio.Reader
	ds     deadlineSetter // nil if the transport lacks deadline support
	logger *slog.Logger
}

func newFrameReader(r io.Reader, logger *slog.Logger) *frameReader {
	fr := &frameReader{r: bufio.NewReaderSize(r, 256), logger: logger}
	if ds, ok := r.(deadlineSetter); ok {
		fr.ds = ds
	}
	return fr
}

// readByte reads one raw byte, arming a read deadline first when the
// transport supports one and the bufio buffer is currently empty.
func (fr *frameReader) readByte(timeout time.Duration) (byte, error) {
	if fr.r.Buffered() == 0 && fr.ds != nil && timeout > 0 {
		_ = fr.ds.SetReadDeadline(time.Now().Add(timeout))
	}
	return fr.r.ReadByte()
}

// clearDeadline removes any read deadline so the transport can be reused
// (e.g. handed to a different reader) without a stale deadline lingering.
func (fr *frameReader) clearDeadline() {
	if fr.ds != nil {
		_ = fr.ds.SetReadDeadline(time.Time{})
	}
}

// isTimeout reports whether err is a deadline-exceeded error from the
// transport (the net.Error Timeout() convention; net.Pipe and real serial
// adapters both satisfy it).
func isTimeout(err error) bool {
	te, ok := err.(interface{ Timeout() bool })
	return ok && te.Timeout()
}
