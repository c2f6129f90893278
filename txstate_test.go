package zwave

import (
	"bytes"
	"log/slog"
	"testing"
	"time"
)

// newTestEngineTx builds an Engine with just enough wiring to drive C5
// (the transmit state machine) directly, bypassing ioLoop: a frame writer
// over an in-memory buffer, an empty frame reader (so onCancel's attempt to
// read the cancelled frame fails fast with EOF rather than a real timeout),
// and zero-gap throttling so retries don't pile up wall-clock delay beyond
// the state machine's own backoff.
func newTestEngineTx(t *testing.T) (*Engine, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	e := &Engine{
		logger:   slog.Default(),
		tracer:   newTracer(slog.Default(), TraceOff),
		fw:       newFrameWriter(&out),
		fr:       newFrameReader(bytes.NewBuffer(nil), slog.Default()),
		throttle: newTxThrottle(0),
		syncb:    newSyncBridge(),
		nonces:   newNonceCache(slog.Default()),
	}
	e.state = WaitAck
	e.stateEnteredAt = time.Now()
	return e, &out
}

// TestCancelStormAbortsAfterTenCancels drives spec.md §8 scenario 4: a
// string of repeated Cancel frames for the same message accumulates retry
// cost one point at a time (retryCostCancel = 1) until the tenth crosses
// retryAbortCost (10), at which point the message is abandoned and its
// waiter is woken with ErrRetryExhausted rather than retried an eleventh
// time.
func TestCancelStormAbortsAfterTenCancels(t *testing.T) {
	e, _ := newTestEngineTx(t)
	m := &OutboundMessage{AckID: 1, TargetNode: 5, FunctionID: funcSendData, HasCommand: true, NeedsCallback: true}
	e.current = m
	e.lastFunctionID = m.FunctionID
	e.lastPayload = m.sendDataPayload()

	ch, err := e.syncb.register(m.AckID)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	for i := 0; i < 9; i++ {
		e.onCancel()
		if e.current == nil {
			t.Fatalf("message aborted after only %d cancels, want 9 to survive", i+1)
		}
	}
	if e.current.RetryCost != 9 {
		t.Fatalf("retry cost after nine cancels = %d, want 9", e.current.RetryCost)
	}

	e.onCancel()
	if e.current != nil {
		t.Fatalf("message should be aborted once retry cost reaches the threshold")
	}
	select {
	case res := <-ch:
		if res.err != ErrRetryExhausted {
			t.Fatalf("waiter error = %v, want ErrRetryExhausted", res.err)
		}
	default:
		t.Fatalf("waiter was never woken after retry exhaustion")
	}
}

// TestRetryWithCostRegeneratesCallbackIDOnNakNotCancel exercises the
// regenerate flag threaded through retryWithCost (spec.md §4.5): a NAK gets a
// fresh callback-id so the stick can't confuse it with the prior attempt,
// while a Cancel reuses the same one because the stick is the one that asked
// for a retransmit of that exact callback.
func TestRetryWithCostRegeneratesCallbackIDOnNakNotCancel(t *testing.T) {
	e, _ := newTestEngineTx(t)
	m := &OutboundMessage{AckID: 1, TargetNode: 5, FunctionID: funcSendData, HasCommand: true, NeedsCallback: true, CallbackID: 0x10}
	e.current = m
	e.lastFunctionID = m.FunctionID
	e.lastPayload = m.sendDataPayload()
	if _, err := e.syncb.register(m.AckID); err != nil {
		t.Fatalf("register: %v", err)
	}

	e.retryWithCost(retryCostCancel, false)
	if e.current.CallbackID != 0x10 {
		t.Fatalf("callback id changed after a cancel retry: got 0x%02x, want unchanged 0x10", e.current.CallbackID)
	}

	before := e.current.CallbackID
	e.retryWithCost(retryCostNak, true)
	if e.current.CallbackID == before {
		t.Fatalf("callback id must be regenerated after a nak retry")
	}
}

// TestResendPayloadReplaysPlainCommandsVerbatim confirms that a plain
// controller command (no command-class trailer) is replayed byte-for-byte
// on retry, since withLastCallbackID's trailing-byte patch would otherwise
// corrupt a payload that carries no callback-id of its own.
func TestResendPayloadReplaysPlainCommandsVerbatim(t *testing.T) {
	e, _ := newTestEngineTx(t)
	m := &OutboundMessage{FunctionID: funcMemoryGetID, Payload: []byte{0xde, 0xad, 0xbe, 0xef}}
	e.lastPayload = append([]byte(nil), m.Payload...)

	got := e.resendPayload(m)
	if !bytes.Equal(got, m.Payload) {
		t.Fatalf("resendPayload altered a plain command: got %x, want %x", got, m.Payload)
	}
}

// TestOnFrameRoutesBareTimeoutToRetry confirms a FrameTimeout reaching
// onFrame (e.g. readFrame's timeout branch, not a NAK byte on the wire)
// is classified as dispatchStateMachine and actually drives a retry, rather
// than being silently dropped as an unrecognised frame type.
func TestOnFrameRoutesBareTimeoutToRetry(t *testing.T) {
	e, _ := newTestEngineTx(t)
	m := &OutboundMessage{AckID: 1, TargetNode: 5, FunctionID: funcSendData, HasCommand: true, NeedsCallback: true}
	e.current = m
	e.lastFunctionID = m.FunctionID
	e.lastPayload = m.sendDataPayload()
	if _, err := e.syncb.register(m.AckID); err != nil {
		t.Fatalf("register: %v", err)
	}

	e.onFrame(InboundFrame{Type: FrameTimeout})

	if e.current == nil {
		t.Fatalf("message must survive a single bare timeout, not abort outright")
	}
	if e.current.RetryCost != retryCostTimeout {
		t.Fatalf("retry cost after one bare timeout = %d, want %d", e.current.RetryCost, retryCostTimeout)
	}
}

// TestResendPayloadPatchesTrailingCallbackIDForCommands confirms a
// command-class message's retry replaces only the trailing callback-id byte,
// leaving the rest of the envelope (and its checksum-relevant bytes, which
// encodeFrame recomputes at transmit time) untouched.
func TestResendPayloadPatchesTrailingCallbackIDForCommands(t *testing.T) {
	e, _ := newTestEngineTx(t)
	m := newCommandClassMessage(5, PriorityCommand, 0x25, 0x01, []byte{0xff})
	m.CallbackID = 0x07
	e.lastPayload = m.sendDataPayload()

	m.CallbackID = 0x08 // simulate allocCallbackID having regenerated it
	got := e.resendPayload(m)
	if len(got) == 0 || got[len(got)-1] != 0x08 {
		t.Fatalf("trailing callback-id byte = %v, want 0x08", got)
	}
	if !bytes.Equal(got[:len(got)-1], e.lastPayload[:len(e.lastPayload)-1]) {
		t.Fatalf("resendPayload must leave every byte but the trailing callback-id unchanged")
	}
}
