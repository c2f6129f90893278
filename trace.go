package zwave

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// TraceLevel gates how much diagnostic detail C9 emits (spec.md §4.9).
type TraceLevel int

const (
	TraceOff TraceLevel = iota
	TraceLow
	TraceMedium
	TraceHigh
)

// tracer wraps the engine's logger with a per-engine correlation id so
// concurrently-open engines can be told apart in shared log output, and a
// level gate cheaper to check than building a log record each call.
type tracer struct {
	logger  *slog.Logger
	session string
	level   TraceLevel

	mu  sync.Mutex
	buf []string
}

func newTracer(logger *slog.Logger, level TraceLevel) *tracer {
	return &tracer{
		logger:  logger,
		session: uuid.NewString(),
		level:   level,
	}
}

func (t *tracer) setLevel(level TraceLevel) {
	t.level = level
}

func (t *tracer) enabled(min TraceLevel) bool {
	return t.level >= min
}

// record appends a formatted line to the in-memory trace buffer that
// flushTrace/resetTrace operate on, independent of where slog sends output.
func (t *tracer) record(format string, args ...any) {
	t.mu.Lock()
	t.buf = append(t.buf, fmt.Sprintf(format, args...))
	t.mu.Unlock()
}

// flush returns the accumulated trace lines and clears the buffer.
func (t *tracer) flush() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.buf
	t.buf = nil
	return out
}

// reset discards the accumulated trace lines without returning them.
func (t *tracer) reset() {
	t.mu.Lock()
	t.buf = nil
	t.mu.Unlock()
}

// frame logs one wire-level frame event (TraceHigh): every byte in and out.
func (t *tracer) frame(dir string, frameType FrameType, functionID byte, payload []byte) {
	if !t.enabled(TraceHigh) {
		return
	}
	t.logger.Debug("frame", "session", t.session, "dir", dir, "type", frameType, "func", functionID, "payload", payload)
	t.record("frame %s type=%v func=%#x payload=%x", dir, frameType, functionID, payload)
}

// state logs a transmit state transition (TraceMedium).
func (t *tracer) state(from, to TransmitState) {
	if !t.enabled(TraceMedium) {
		return
	}
	t.logger.Debug("state transition", "session", t.session, "from", from, "to", to)
	t.record("state %v -> %v", from, to)
}

// retry logs a retry decision and its resulting cumulative cost (TraceLow).
func (t *tracer) retry(reason string, cost int) {
	if !t.enabled(TraceLow) {
		return
	}
	t.logger.Info("retry", "session", t.session, "reason", reason, "cost", cost)
	t.record("retry reason=%s cost=%d", reason, cost)
}

// nonce logs nonce lifecycle events (TraceMedium).
func (t *tracer) nonce(event string, node byte) {
	if !t.enabled(TraceMedium) {
		return
	}
	t.logger.Debug("nonce", "session", t.session, "event", event, "node", node)
	t.record("nonce %s node=%d", event, node)
}

// abort logs a message being abandoned after retryAbortCost is crossed
// (TraceLow, always worth surfacing since it is a lost message).
func (t *tracer) abort(node byte, cost int) {
	if !t.enabled(TraceLow) {
		return
	}
	t.logger.Warn("abort", "session", t.session, "node", node, "cost", cost)
	t.record("abort node=%d cost=%d", node, cost)
}

// cancel logs a locally or remotely initiated cancel (TraceLow).
func (t *tracer) cancel(reason string) {
	if !t.enabled(TraceLow) {
		return
	}
	t.logger.Info("cancel", "session", t.session, "reason", reason)
	t.record("cancel reason=%s", reason)
}
