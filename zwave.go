package zwave

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls engine behavior.
type Config struct {
	// NetworkKey is the 16-byte AES network key used for secure-class
	// traffic; defaults to all-zero (the pre-inclusion default key).
	NetworkKey []byte
	// HomeNodeID is this controller's own node id, used in CBC-MAC
	// computation (spec.md §6).
	HomeNodeID byte
	// ManufacturerIDs packs manufacturer-id/product-type/product-id as
	// three 16-bit fields in the low 48 bits (set_manufacturer_ids(u64)).
	ManufacturerIDs uint64
	// Store persists the network key across restarts; optional.
	Store ConfigStore
	// Logger receives structured diagnostics; defaults to slog.Default().
	Logger *slog.Logger
	// TraceLevel gates C9 verbosity; defaults to TraceOff.
	TraceLevel TraceLevel
	// InboundQueueCapacity bounds the upper-layer inbound queue (default 64).
	InboundQueueCapacity int
	// DefaultWaitTimeout bounds WaitAck/NextInbound when the caller passes
	// a non-positive timeout (default 10s).
	DefaultWaitTimeout time.Duration
}

func (c *Config) defaults() {
	if c.NetworkKey == nil {
		c.NetworkKey = make([]byte, 16)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.InboundQueueCapacity <= 0 {
		c.InboundQueueCapacity = 64
	}
	if c.DefaultWaitTimeout <= 0 {
		c.DefaultWaitTimeout = 10 * time.Second
	}
}

// Engine mediates between a serial-attached Z-Wave stick and upper layers
// (spec.md §2). It is a full-duplex, prioritised, retry-capable protocol
// state machine that owns the serial link.
//
// Exactly two long-lived actors touch it (spec.md §4.11): the I/O thread,
// owned by the engine and started by Open, runs ioLoop and is the only
// thing that touches the serial port, the current/aux slots, the nonce
// caches, and the state enum; the driver (caller) thread calls Enqueue,
// WaitAck, and NextInbound, and never touches those, except that
// BroadcastNIF flushes the (mutex-guarded) nonce caches from the caller's
// goroutine.
type Engine struct {
	config Config
	logger *slog.Logger
	tracer *tracer

	transport io.ReadWriteCloser
	fr        *frameReader
	fw        *frameWriter
	cyclePort func() error

	outbound *outboundQueue
	inbound  *inboundQueue
	cancelQ  cancelQueue
	throttle *txThrottle
	nonces   *nonceCache
	syncb    *syncBridge

	networkKey      []byte
	security        securityKeys
	homeNodeID      byte
	manufacturerIDs uint64

	// I/O-thread-only fields (spec.md §4.11); never touched by the driver
	// thread.
	state          TransmitState
	stateEnteredAt time.Time
	current        *OutboundMessage
	aux            *OutboundMessage
	lastFunctionID byte
	lastPayload    []byte

	// callbackSeq is shared between the driver thread (initial assignment
	// at Enqueue) and the I/O thread (regeneration after NAK/timeout), so
	// it is advanced atomically rather than added to the I/O-thread-only
	// field group above.
	callbackSeq uint32

	nextAckID uint64

	connMu    sync.Mutex
	connected bool

	shutdownCh chan struct{}
	doneCh     chan struct{}
	closeOnce  sync.Once
}

// NewEngine constructs an Engine that is not yet connected to a transport;
// call Open to attach one and start the I/O thread.
func NewEngine(cfg *Config) (*Engine, error) {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	c.defaults()
	if len(c.NetworkKey) != 16 {
		return nil, errors.New("zwave: network key must be 16 bytes")
	}

	keys, err := deriveSecurityKeys(c.NetworkKey)
	if err != nil {
		return nil, fmt.Errorf("zwave: derive initial security keys: %w", err)
	}

	e := &Engine{
		config:          c,
		logger:          c.Logger,
		tracer:          newTracer(c.Logger, c.TraceLevel),
		outbound:        newOutboundQueue(c.Logger),
		inbound:         newInboundQueue(c.InboundQueueCapacity),
		throttle:        newTxThrottle(txGapDefault),
		nonces:          newNonceCache(c.Logger),
		syncb:           newSyncBridge(),
		networkKey:      c.NetworkKey,
		security:        keys,
		homeNodeID:      c.HomeNodeID,
		manufacturerIDs: c.ManufacturerIDs,
	}
	return e, nil
}

// Open attaches transport (typically a real serial port from OpenSerial, or
// an in-memory pipe in tests) and starts the I/O thread. Calling Open while
// already connected returns ErrNotConnected's converse condition as an
// error.
func (e *Engine) Open(transport io.ReadWriteCloser, cyclePort func() error) error {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	if e.connected {
		return errors.New("zwave: engine already open")
	}

	e.transport = transport
	e.cyclePort = cyclePort
	e.fr = newFrameReader(transport, e.logger)
	e.fw = newFrameWriter(transport)
	e.state = Idle
	e.stateEnteredAt = time.Now()
	e.shutdownCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.connected = true

	go e.ioLoop()
	return nil
}

// Close signals the I/O thread to stop, waits for it to drain, and closes
// the underlying transport.
func (e *Engine) Close() error {
	e.connMu.Lock()
	if !e.connected {
		e.connMu.Unlock()
		return nil
	}
	e.connected = false
	shutdownCh, doneCh, transport := e.shutdownCh, e.doneCh, e.transport
	e.connMu.Unlock()

	e.closeOnce.Do(func() {
		close(shutdownCh)
	})
	<-doneCh
	if transport != nil {
		return transport.Close()
	}
	return nil
}

// IsConnected reports whether the engine currently owns an open transport.
func (e *Engine) IsConnected() bool {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	return e.connected
}

// Enqueue submits m for transmission, assigning it an ack-id the caller can
// later pass to WaitAck (spec.md §9: "enqueue(out_message) — non-blocking,
// bounded").
func (e *Engine) Enqueue(m *OutboundMessage) (uint64, error) {
	if !e.IsConnected() {
		return 0, ErrNotConnected
	}
	m.AckID = atomic.AddUint64(&e.nextAckID, 1)
	if m.NeedsCallback {
		m.CallbackID = e.allocCallbackID()
	}
	if err := e.outbound.enqueue(m); err != nil {
		return 0, err
	}
	return m.AckID, nil
}

// WaitAck blocks until the message identified by ackID reaches a terminal
// state, or timeout elapses (spec.md §4.8). Only one waiter may be
// registered for a given ackID at a time.
func (e *Engine) WaitAck(ackID uint64, timeout time.Duration) (*InboundFrame, error) {
	if timeout <= 0 {
		timeout = e.config.DefaultWaitTimeout
	}
	ch, err := e.syncb.register(ackID)
	if err != nil {
		return nil, err
	}
	res, err := e.syncb.wait(ackID, ch, timeout)
	if err != nil {
		return nil, err
	}
	return res.reply, nil
}

// NextInbound blocks up to timeout for the next frame destined for the
// upper layer (spec.md §9: "next_inbound(deadline) → InboundFrame | Timeout").
func (e *Engine) NextInbound(timeout time.Duration) (InboundFrame, error) {
	if timeout <= 0 {
		timeout = e.config.DefaultWaitTimeout
	}
	return e.inbound.pop(timeout)
}

// replyMatches reports whether f is the application-level reply m is
// waiting for: a command-class message matches by source node, class, and
// command; a plain controller command matches by function-id against a
// Response frame (spec.md §4.10's MEMORY_GET_ID round trip). Used by C5 to
// recognise, among the frames it forwards to the inbound queue, the one a
// sendCommandPolicy(awake=true) caller is parked in WaitAck/WaitCallback for.
func replyMatches(m *OutboundMessage, f InboundFrame) bool {
	if m.HasCommand {
		return f.SourceNode != nil && *f.SourceNode == m.TargetNode &&
			f.ClassID != nil && *f.ClassID == m.ReplyClassID &&
			f.CommandID != nil && *f.CommandID == m.ReplyCommandID
	}
	return f.Type == FrameResponse && f.FunctionID == m.FunctionID
}

// SetTraceLevel adjusts C9 verbosity at runtime.
func (e *Engine) SetTraceLevel(level TraceLevel) {
	e.tracer.setLevel(level)
}

// FlushTrace returns and clears the accumulated in-memory trace lines.
func (e *Engine) FlushTrace() []string {
	return e.tracer.flush()
}

// ResetTrace discards the accumulated in-memory trace lines.
func (e *Engine) ResetTrace() {
	e.tracer.reset()
}

// SetManufacturerIDs updates the controller identity used to synthesize
// ManufacturerSpecificReport frames (spec.md §9).
func (e *Engine) SetManufacturerIDs(ids uint64) {
	e.manufacturerIDs = ids
}

// sendCommandPolicy is the shared wait/queue policy every cc_*.go helper
// funnels through (spec.md §4.7: "a thin synchronous-wait policy over
// C5/C8"). When awake is true the helper blocks for the reply; otherwise it
// enqueues and returns immediately with the assigned ack-id.
func (e *Engine) sendCommandPolicy(m *OutboundMessage, awake bool, timeout time.Duration) (*InboundFrame, uint64, error) {
	ackID, err := e.Enqueue(m)
	if err != nil {
		return nil, 0, err
	}
	if !awake {
		return nil, ackID, nil
	}
	reply, err := e.WaitAck(ackID, timeout)
	return reply, ackID, err
}
