package zwave

import (
	"bufio"
	"io"
)

const writerBufSize = 256

// frameWriter wraps an io.Writer with buffering. Z-Wave frames are short and
// latency-sensitive, so every write is flushed immediately; the buffer
// exists to let a caller build up a frame with a couple of small writes
// before the one syscall, same role bufio.Writer plays in the teacher.
type frameWriter struct {
	w *bufio.Writer
}

func newFrameWriter(w io.Writer) *frameWriter {
	return &frameWriter{w: bufio.NewWriterSize(w, writerBufSize)}
}

// writeFrame writes a fully-assembled frame (single- or multi-byte) and
// flushes. C1 does not retry; the caller decides retry policy.
func (fw *frameWriter) writeFrame(data []byte) error {
	if _, err := fw.w.Write(data); err != nil {
		return err
	}
	return fw.w.Flush()
}
