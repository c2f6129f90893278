package zwave

import (
	"crypto/rand"
	"sync/atomic"
	"time"
)

// TransmitState drives C5 (spec.md §4.5).
type TransmitState int

const (
	Idle TransmitState = iota
	WaitPingAck
	WaitPingTransAck
	WaitNonceAck
	WaitNonceTransAck
	WaitNonce
	SendEncrypted
	WaitAck
	WaitCallback
)

func (s TransmitState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case WaitPingAck:
		return "WaitPingAck"
	case WaitPingTransAck:
		return "WaitPingTransAck"
	case WaitNonceAck:
		return "WaitNonceAck"
	case WaitNonceTransAck:
		return "WaitNonceTransAck"
	case WaitNonce:
		return "WaitNonce"
	case SendEncrypted:
		return "SendEncrypted"
	case WaitAck:
		return "WaitAck"
	case WaitCallback:
		return "WaitCallback"
	default:
		return "Unknown"
	}
}

// Per-state timeout budgets (spec.md §4.5 table; WaitNonce* values confirmed
// against original_source's TZStick ctor, which sets WaitNonceAck=3s,
// WaitNonceTransAck=5s, WaitNonce=4s).
var stateTimeouts = map[TransmitState]time.Duration{
	WaitPingAck:       1 * time.Second,
	WaitPingTransAck:  2 * time.Second,
	WaitNonceAck:      3 * time.Second,
	WaitNonceTransAck: 5 * time.Second,
	WaitNonce:         4 * time.Second,
	WaitAck:           1 * time.Second,
	WaitCallback:      5 * time.Second,
}

// idlePollInterval bounds how long the I/O loop waits for a new outbound
// message while Idle before it loops again (to notice shutdown promptly).
const idlePollInterval = 200 * time.Millisecond

// retryAbortCost is the threshold past which a message is abandoned
// (spec.md §4.5: "exceeding a threshold (nine) aborts"; the engine treats
// reaching the round number ten, matching DESIGN.md's documented choice, as
// equivalent wording for the same cutoff).
const retryAbortCost = 10

const (
	retryCostCancel  = 1
	retryCostNak     = 2
	retryCostTimeout = 3
)

// cancelBackoff is imposed before retrying after a Cancel (spec.md §4.5).
const cancelBackoff = 100 * time.Millisecond

// ioLoop is the engine's single I/O thread: drains the outbound queue when
// Idle, otherwise reads one inbound frame (cancel queue first) and feeds it
// to the state machine, retrying on a per-state timeout (spec.md §4.5).
func (e *Engine) ioLoop() {
	defer close(e.doneCh)
	for {
		select {
		case <-e.shutdownCh:
			e.drainOnShutdown()
			return
		default:
		}

		if e.state == Idle {
			m, ok := e.outbound.waitDequeue(idlePollInterval)
			if ok {
				e.startNewMessage(m)
			}
			continue
		}

		if f, ok := e.cancelQ.pop(); ok {
			e.onFrame(f)
			continue
		}

		timeout := e.remainingBudget()
		f, err := e.readFrame(timeout)
		if err != nil {
			e.onFatalError(err)
			continue
		}
		e.tracer.frame("in", f.Type, f.FunctionID, f.Payload)
		e.onFrame(f)
	}
}

// drainOnShutdown flushes all queues and releases any waiter so the upper
// layer never blocks forever on a dead engine (spec.md §4.11).
func (e *Engine) drainOnShutdown() {
	e.state = Idle
	if e.current != nil {
		e.syncb.resolve(e.current.AckID, ackResult{err: ErrShutdown})
		e.current = nil
	}
	e.aux = nil
	e.nonces.flushAll()
	e.cancelQ.items = nil
	e.inbound.drain()
	e.outbound.mu.Lock()
	for i := range e.outbound.bands {
		e.outbound.bands[i] = nil
	}
	e.outbound.mu.Unlock()
}

func (e *Engine) remainingBudget() time.Duration {
	budget, ok := stateTimeouts[e.state]
	if !ok {
		return idlePollInterval
	}
	remaining := budget - time.Since(e.stateEnteredAt)
	if remaining <= 0 {
		return time.Millisecond
	}
	return remaining
}

func (e *Engine) enterState(s TransmitState) {
	e.tracer.state(e.state, s)
	e.state = s
	e.stateEnteredAt = time.Now()
}

// startNewMessage implements spec.md §4.5's start_new_message.
func (e *Engine) startNewMessage(m *OutboundMessage) {
	e.current = m
	e.aux = nil

	if m.FreqListener && m.TargetNode != NodeBroadcast && !m.IsPing && e.throttle.pingAllowed(m.TargetNode) {
		ping := newPingMessage(m.TargetNode)
		e.aux = ping
		e.transmit(ping.FunctionID, ping.sendDataPayload())
		e.enterState(WaitPingAck)
		return
	}
	if m.IsSecure {
		e.startSecureTransmission(m)
		return
	}
	e.transmit(m.FunctionID, m.wirePayload())
	e.enterState(WaitAck)
}

// startSecureTransmission picks up a cached outgoing nonce if one exists,
// otherwise requests a fresh one (spec.md §4.5 cross-reference to §4.6).
func (e *Engine) startSecureTransmission(m *OutboundMessage) {
	if n, ok := e.nonces.consumeOutgoing(m.TargetNode); ok {
		e.tracer.nonce("consume_outgoing", m.TargetNode)
		e.encryptAndTransmit(m, n)
		return
	}
	nonceGet := newNonceGetMessage(m.TargetNode)
	e.aux = nonceGet
	e.transmit(nonceGet.FunctionID, nonceGet.sendDataPayload())
	e.enterState(WaitNonceAck)
}

// transmit writes one SEND_DATA frame, records it against the throttle, and
// remembers the exact bytes sent so a retry can replay them (important for
// a secure envelope, whose ciphertext must never be rebuilt from the
// plaintext message a second time).
func (e *Engine) transmit(functionID byte, payload []byte) {
	e.throttle.wait()
	if err := e.writeFrame(typeRequest, functionID, payload); err != nil {
		e.onWriteFailure(err)
		return
	}
	e.tracer.frame("out", FrameRequest, functionID, payload)
	e.throttle.recordTransmit(txGapDefault)
	e.lastFunctionID = functionID
	e.lastPayload = payload
}

// withLastCallbackID returns a copy of the last transmitted payload with its
// trailing CALLBACK_ID byte replaced by id. Only command-class envelopes
// (built via sendDataPayload) and other NeedsCallback messages carry that
// trailer (spec.md §6); callers must check NeedsCallback/HasCommand first.
func (e *Engine) withLastCallbackID(id byte) []byte {
	out := append([]byte(nil), e.lastPayload...)
	if len(out) > 0 {
		out[len(out)-1] = id
	}
	return out
}

// resendPayload rebuilds the bytes to retransmit for m, given that it was
// last transmitted as e.lastPayload: command-class envelopes and any
// message that needs a callback get their trailing callback-id byte
// refreshed; plain fire-and-forget controller commands are replayed
// byte-for-byte.
func (e *Engine) resendPayload(m *OutboundMessage) []byte {
	if m.HasCommand || m.NeedsCallback {
		return e.withLastCallbackID(m.CallbackID)
	}
	return e.lastPayload
}

// encryptAndTransmit builds and sends the secure-encapsulated envelope for
// m using outgoing nonce n, then transitions to WaitAck (spec.md §6, §4.5
// SendEncrypted row: "synthetic, drives next transmit").
func (e *Engine) encryptAndTransmit(m *OutboundMessage, n [8]byte) {
	e.aux = nil
	e.enterState(SendEncrypted)

	senderIV := make([]byte, 8)
	if _, err := rand.Read(senderIV); err != nil {
		e.fatal(ErrInternalInvariant)
		return
	}
	iv := append(append([]byte(nil), senderIV...), n[:]...)

	inner := make([]byte, 0, 2+len(m.Payload))
	inner = append(inner, m.ClassID, m.CommandID)
	inner = append(inner, m.Payload...)

	cipherText, err := ofbKeystream(e.security.encKey, iv, inner)
	if err != nil {
		e.fatal(ErrInternalInvariant)
		return
	}
	tag, err := authTag(e.security.authKey, senderIV, byte(len(cipherText)), e.homeNodeID, m.TargetNode, inner, n[0])
	if err != nil {
		e.fatal(ErrInternalInvariant)
		return
	}

	envelope := make([]byte, 0, 8+len(cipherText)+1+8)
	envelope = append(envelope, senderIV...)
	envelope = append(envelope, cipherText...)
	envelope = append(envelope, n[0])
	envelope = append(envelope, tag...)

	secureMsg := newCommandClassMessage(m.TargetNode, m.Priority, ccSecurity, secMessageEncap, envelope)
	secureMsg.CallbackID = m.CallbackID
	secureMsg.NeedsCallback = m.NeedsCallback
	e.transmit(secureMsg.FunctionID, secureMsg.sendDataPayload())
	e.enterState(WaitAck)
}

// onNonceReportForCurrent is called by dispatch.go when a NonceReport
// arrives while WaitNonce is active for its sender: skip the cache and
// encrypt immediately (spec.md §4.5 WaitNonce row).
func (e *Engine) onNonceReportForCurrent(n [8]byte) {
	if e.current == nil {
		return
	}
	e.encryptAndTransmit(e.current, n)
}

// onFrame dispatches one classified frame according to the state table
// (spec.md §4.5). Frames destined for the state machine are
// Ack/Nak/Cancel/TransmitAck/Timeout; everything else, whether read from the
// wire or popped from the cancel queue (where onCancel stashes it
// unclassified), is classified here before being forwarded or consumed.
func (e *Engine) onFrame(f InboundFrame) {
	classified, action := e.classify(f)
	switch action {
	case dispatchForward, dispatchConsumedAndForward:
		if err := e.inbound.pushNonBlocking(classified); err != nil {
			e.tracer.record("inbound queue overflow, invariant reset")
			e.fatal(ErrInternalInvariant)
		}
		// Also surface it to a synchronous waiter still parked in WaitAck/
		// WaitCallback for exactly this reply: the frame already went on
		// the inbound queue above for any fire-and-forget caller, and is
		// additionally delivered here (its own copy) to whoever called
		// sendCommandPolicy with awake=true.
		if e.awaitingReply() && replyMatches(e.current, classified) {
			reply := classified
			e.succeedWithReply(&reply)
		}
		return
	case dispatchConsumed:
		return
	}

	switch classified.Type {
	case FrameAck:
		e.onAck()
	case FrameNak:
		e.onNak()
	case FrameCancel:
		e.onCancel()
	case FrameTransmitAck:
		e.onTransmitAck(classified)
	case FrameTimeout:
		e.onTimeout()
	}
}

// activeLegCallbackID returns the callback-id of whichever message is
// currently on the wire: the ping or nonce-get auxiliary leg, or the real
// message once no auxiliary leg is in flight.
func (e *Engine) activeLegCallbackID() byte {
	if e.aux != nil {
		return e.aux.CallbackID
	}
	if e.current != nil {
		return e.current.CallbackID
	}
	return 0
}

func (e *Engine) onAck() {
	switch e.state {
	case WaitPingAck:
		e.enterState(WaitPingTransAck)
	case WaitNonceAck:
		e.enterState(WaitNonceTransAck)
	case WaitAck:
		switch {
		case e.current != nil && e.current.NeedsCallback:
			e.enterState(WaitCallback)
		case e.current != nil && e.current.ExpectsReply:
			// Stay in WaitAck: the transmission itself is confirmed, but
			// the application-level reply is still in flight and onFrame's
			// reply match fires the actual succeed.
		default:
			e.succeed(nil)
		}
	default:
		// stray Ack for a frame we've moved past; ignore
	}
}

func (e *Engine) onTransmitAck(f InboundFrame) {
	if f.CallbackID == nil || *f.CallbackID != e.activeLegCallbackID() {
		return // not ours; ignore
	}
	success := len(f.Payload) >= 2 && f.Payload[1] == txStatusOK

	switch e.state {
	case WaitPingTransAck:
		if !success {
			e.retryWithCost(retryCostNak, true)
			return
		}
		e.aux = nil
		if e.current.IsSecure {
			e.startSecureTransmission(e.current)
			return
		}
		e.transmit(e.current.FunctionID, e.current.wirePayload())
		e.enterState(WaitAck)
	case WaitNonceTransAck:
		if !success {
			e.retryWithCost(retryCostNak, true)
			return
		}
		e.enterState(WaitNonce)
	case WaitCallback:
		if !success {
			e.retryWithCost(retryCostNak, true)
			return
		}
		if e.current != nil && e.current.ExpectsReply {
			// Stay in WaitCallback: the command-class reply is still in
			// flight; onFrame's reply match fires the actual succeed.
			return
		}
		e.succeed(&f)
	default:
		// stray TransmitAck; ignore
	}
}

func (e *Engine) onNak() {
	e.retryWithCost(retryCostNak, true)
}

func (e *Engine) onTimeout() {
	switch e.state {
	case WaitNonce:
		// handled by dispatch via onNonceReportForCurrent; a bare timeout
		// here means no report arrived at all
		e.retryWithCost(retryCostTimeout, true)
	default:
		e.retryWithCost(retryCostTimeout, true)
	}
}

// onCancel implements spec.md §4.5's cancel handling: read the frame the
// stick cancelled us for, stash it on the cancel queue, back off briefly,
// then retry with cancel cost (callback-id unchanged).
func (e *Engine) onCancel() {
	e.tracer.cancel("peer cancel")
	f, err := e.readFrame(headerReadTimeout)
	if err == nil && f.Type != FrameTimeout {
		e.cancelQ.push(f)
	}
	time.Sleep(cancelBackoff)
	e.retryWithCost(retryCostCancel, false)
}

// retryWithCost applies the cost, aborting the message if the threshold is
// crossed, otherwise regenerating the callback-id (regenerate=true: NAK or
// timeout) or reusing it (regenerate=false: Cancel) and re-driving the leg
// currently in flight (spec.md §4.5).
func (e *Engine) retryWithCost(cost int, regenerate bool) {
	if e.current == nil {
		e.enterState(Idle)
		return
	}
	e.current.RetryCost += cost
	e.tracer.retry(e.retryReason(cost), e.current.RetryCost)
	if e.current.RetryCost >= retryAbortCost {
		e.abortCurrent(ErrRetryExhausted)
		return
	}

	if e.aux != nil {
		if regenerate {
			e.aux.CallbackID = e.allocCallbackID()
		}
		e.resendAux(regenerate)
		return
	}
	if regenerate {
		e.current.CallbackID = e.allocCallbackID()
	}
	e.resendCurrent(regenerate)
}

func (e *Engine) retryReason(cost int) string {
	switch cost {
	case retryCostCancel:
		return "cancel"
	case retryCostNak:
		return "nak"
	default:
		return "timeout"
	}
}

// resendAux re-transmits whichever auxiliary leg (ping or nonce-get) is
// currently in flight, applying the appropriate post-outcome gap.
func (e *Engine) resendAux(afterNakOrTimeout bool) {
	gap := txGapAfterCancel
	if afterNakOrTimeout {
		gap = txGapAfterNakOrTmo
	}
	payload := e.resendPayload(e.aux)
	e.throttle.recordTransmit(gap)
	e.transmit(e.aux.FunctionID, payload)
	switch e.state {
	case WaitPingAck, WaitPingTransAck:
		e.enterState(WaitPingAck)
	case WaitNonceAck, WaitNonceTransAck, WaitNonce:
		// WaitNonce retries the nonce-get leg itself, since no report
		// arrived in time (spec.md §4.5 WaitNonce row: "retry").
		e.enterState(WaitNonceAck)
	}
}

// resendCurrent re-transmits the real message, used from WaitAck/WaitCallback.
func (e *Engine) resendCurrent(afterNakOrTimeout bool) {
	gap := txGapAfterCancel
	if afterNakOrTimeout {
		gap = txGapAfterNakOrTmo
	}
	payload := e.resendPayload(e.current)
	e.throttle.recordTransmit(gap)
	e.transmit(e.lastFunctionID, payload)
	e.enterState(WaitAck)
}

// succeed completes the current message successfully, synthesising a
// faux empty reply for ping messages so upper-layer code that expects some
// reply to every command doesn't stall (spec.md §9 supplement, preserved
// from the original's WaitCallback handling).
func (e *Engine) succeed(txAck *InboundFrame) {
	m := e.current
	e.current = nil
	e.aux = nil
	e.enterState(Idle)
	if m == nil {
		return
	}
	res := ackResult{}
	if txAck != nil {
		res.callbackID = *txAck.CallbackID
	}
	if m.IsPing {
		faux := InboundFrame{Type: FrameResponse, FunctionID: m.FunctionID}
		res.reply = &faux
	}
	e.syncb.resolve(m.AckID, res)
}

// awaitingReply reports whether the current message has been fully
// acknowledged on the wire but is still held open pending the
// application-level reply onFrame's reply match is looking for.
func (e *Engine) awaitingReply() bool {
	return e.current != nil && e.current.ExpectsReply && (e.state == WaitAck || e.state == WaitCallback)
}

// succeedWithReply completes the current message once its expected
// application-level reply has arrived, delivering that frame through
// wait_ack instead of the synthesised-for-ping-only path succeed uses.
func (e *Engine) succeedWithReply(reply *InboundFrame) {
	m := e.current
	e.current = nil
	e.aux = nil
	e.enterState(Idle)
	if m == nil {
		return
	}
	e.syncb.resolve(m.AckID, ackResult{reply: reply})
}

// abortCurrent discards the current message after retry exhaustion, waking
// the sync bridge with failure (spec.md §4.5).
func (e *Engine) abortCurrent(err error) {
	m := e.current
	e.current = nil
	e.aux = nil
	e.enterState(Idle)
	if m == nil {
		return
	}
	e.tracer.abort(m.TargetNode, m.RetryCost)
	e.syncb.resolve(m.AckID, ackResult{err: err})
}

// allocCallbackID hands out the next non-zero, non-0xff callback id. Shared
// between the driver thread (initial assignment at Enqueue) and the I/O
// thread (regeneration after NAK/timeout), so the counter is advanced
// atomically.
func (e *Engine) allocCallbackID() byte {
	for {
		id := byte(atomic.AddUint32(&e.callbackSeq, 1))
		if id != 0 && id != 0xff {
			return id
		}
	}
}

// onWriteFailure and onFatalError implement spec.md §7's SerialWrite/
// ReadFailure handling: cycle the port once, then treat the engine as fatally
// broken if the cycle itself fails.
func (e *Engine) onWriteFailure(err error) {
	e.cyclePortOrFatal(err)
}

func (e *Engine) onFatalError(err error) {
	e.cyclePortOrFatal(err)
}

func (e *Engine) cyclePortOrFatal(cause error) {
	if e.cyclePort == nil {
		e.fatal(cause)
		return
	}
	if cycleErr := e.cyclePort(); cycleErr != nil {
		e.fatal(ErrSerialFailure)
		return
	}
	e.tracer.record("serial port cycled after error: %v", cause)
}

// fatal implements spec.md §4.11's failure containment: reset state, flush
// queues, release the waiter, and keep the loop alive rather than crash it.
func (e *Engine) fatal(err error) {
	e.tracer.record("fatal: %v", err)
	if e.current != nil {
		e.syncb.resolve(e.current.AckID, ackResult{err: err})
	}
	e.current = nil
	e.aux = nil
	e.nonces.flushAll()
	e.cancelQ.items = nil
	e.inbound.drain()
	e.outbound.mu.Lock()
	for i := range e.outbound.bands {
		e.outbound.bands[i] = nil
	}
	e.outbound.mu.Unlock()
	e.enterState(Idle)
}
