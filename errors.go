package zwave

import "errors"

// Sentinel error kinds surfaced by the engine (spec.md §7). Most are handled
// internally by the I/O thread and never escape to the upper layer; the
// terminal outcomes of a message (ErrRetryExhausted, or ErrSerialFailure
// after a failed port cycle) reach callers through WaitAck.
var (
	// ErrBadFraming indicates a checksum mismatch or short frame. Recovered
	// locally: a NAK is written and the codec resyncs on the next SOF.
	ErrBadFraming = errors.New("zwave: bad frame (checksum or length)")

	// ErrTimeout indicates no expected frame arrived within a state's
	// deadline. Recovered by retry, subject to the cost threshold.
	ErrTimeout = errors.New("zwave: timeout waiting for frame")

	// ErrFrameTimeout indicates a SOF committed us to a frame but the small
	// extended read window elapsed before the rest of it arrived. Silent and
	// distinct from ErrBadFraming: no NAK is written, since nothing framed
	// was actually seen to reject.
	ErrFrameTimeout = errors.New("zwave: timed out mid-frame")

	// ErrPeerNak indicates the stick or node NAKed our transmission.
	ErrPeerNak = errors.New("zwave: peer NAK")

	// ErrPeerCancel indicates the stick cancelled our pending transmit
	// because an inbound frame arrived first.
	ErrPeerCancel = errors.New("zwave: peer cancel")

	// ErrTransmitAckFailure indicates the stick reported inability to
	// deliver the message to the target node.
	ErrTransmitAckFailure = errors.New("zwave: transmit-ack reports failure")

	// ErrRetryExhausted is the terminal failure delivered to WaitAck when a
	// message's retry cost crosses the abort threshold.
	ErrRetryExhausted = errors.New("zwave: retry cost exhausted")

	// ErrNonceCacheOverflow indicates a peer-behavior pathology (too many
	// outstanding nonces for one node); the cache was flushed.
	ErrNonceCacheOverflow = errors.New("zwave: nonce cache overflow")

	// ErrDecryptionFailure indicates a secure frame failed to authenticate
	// or had no matching nonce; the frame is dropped.
	ErrDecryptionFailure = errors.New("zwave: secure frame decryption failed")

	// ErrInternalInvariant indicates a fatal internal invariant would
	// otherwise be violated (e.g. inbound queue overflow); the I/O thread
	// resets state and continues.
	ErrInternalInvariant = errors.New("zwave: internal invariant violation")

	// ErrSerialFailure indicates a non-recoverable read/write failure on the
	// serial port after one cycle (close+reopen) attempt.
	ErrSerialFailure = errors.New("zwave: serial port failure")

	// ErrNotConnected is returned by operations requiring an open port.
	ErrNotConnected = errors.New("zwave: not connected")

	// ErrQueueFull is returned by Enqueue when the outbound queue for the
	// target priority band is at capacity; per spec.md §4.4 this also drops
	// the queue's entire contents as an unrecoverable-backlog signal.
	ErrQueueFull = errors.New("zwave: outbound queue full, queue dropped")

	// ErrShutdown is returned by blocking calls (WaitAck, NextInbound) when
	// the engine is shutting down.
	ErrShutdown = errors.New("zwave: engine shut down")

	// ErrAlreadyWaiting is returned by WaitAck when another waiter is
	// already registered for the same ack-id; the sync bridge supports a
	// single waiter per ack-id (spec.md §4.8).
	ErrAlreadyWaiting = errors.New("zwave: sync bridge already has a waiter")
)
