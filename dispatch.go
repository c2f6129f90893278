package zwave

// dispatchAction tells the I/O loop what to do with a classified inbound
// frame (spec.md §4.6).
type dispatchAction int

const (
	dispatchStateMachine dispatchAction = iota // feed the transmit state machine, never forward
	dispatchConsumed                           // fully handled here, never forward
	dispatchForward                            // place on the inbound queue for the upper layer
	dispatchConsumedAndForward                 // handled here AND forwarded (e.g. NetworkKeySet)
)

// classify runs the C6 classification ladder over one parsed inbound frame,
// mutating engine state (nonce caches, pending replies) as a side effect and
// reporting what the I/O loop should do with the frame afterward.
func (e *Engine) classify(f InboundFrame) (InboundFrame, dispatchAction) {
	switch f.Type {
	case FrameAck, FrameNak, FrameCancel, FrameTransmitAck, FrameTimeout:
		return f, dispatchStateMachine
	}
	if f.Type != FrameRequest && f.Type != FrameResponse {
		return f, dispatchConsumed
	}
	// Ladder item 8: the learn-mode-started callback arrives as a plain
	// SET_LEARN_MODE frame, never wrapped in an APPLICATION_COMMAND_HANDLER
	// envelope, so it has to be caught here rather than in classifyCommand.
	if f.FunctionID == funcSetLearnMode && len(f.Payload) > 0 && f.Payload[0] == learnModeStarted {
		e.nonces.flushAll()
	}
	if f.FunctionID != funcApplicationCommand {
		return f, dispatchForward
	}

	parsed, ok := e.parseApplicationCommand(f)
	if !ok {
		return f, dispatchConsumed
	}
	return e.classifyCommand(parsed)
}

// parseApplicationCommand extracts source node / class / command / payload
// from an APPLICATION_COMMAND_HANDLER frame's payload:
// | SOURCE_NODE | CC_LEN | CLASS_ID | COMMAND_ID | CC_PAYLOAD... |.
func (e *Engine) parseApplicationCommand(f InboundFrame) (InboundFrame, bool) {
	if len(f.Payload) < 4 {
		return f, false
	}
	source := f.Payload[0]
	ccLen := int(f.Payload[1])
	if ccLen < 2 || len(f.Payload) < 2+ccLen {
		return f, false
	}
	classID := f.Payload[2]
	commandID := f.Payload[3]
	inner := append([]byte(nil), f.Payload[4:2+ccLen]...)

	out := f
	out.SourceNode = &source
	out.ClassID = &classID
	out.CommandID = &commandID
	out.Payload = inner
	return out, true
}

// classifyCommand applies ladder items 2-7 of spec.md §4.6, recursing once
// after unwrapping a secure or multi-channel encapsulation.
func (e *Engine) classifyCommand(f InboundFrame) (InboundFrame, dispatchAction) {
	if f.ClassID == nil || f.CommandID == nil {
		return f, dispatchForward
	}

	switch {
	case *f.ClassID == ccSecurity && (*f.CommandID == secMessageEncap || *f.CommandID == secMessageEncapNonceGet):
		return e.handleSecureEncap(f)
	case *f.ClassID == ccMultiChannel && *f.CommandID == multiChanEncap:
		inner, ok := e.unwrapMultiChannel(f)
		if !ok {
			e.tracer.record("dropped malformed multi-channel encap from node %v", f.SourceNode)
			return f, dispatchConsumed
		}
		return e.classifyCommand(inner)
	case *f.ClassID == ccSecurity && *f.CommandID == secNonceGet:
		e.handleBareNonceGet(f)
		return f, dispatchConsumed
	case *f.ClassID == ccSecurity && *f.CommandID == secNonceReport:
		e.handleNonceReport(f)
		return f, dispatchConsumed
	case *f.ClassID == ccSecurity && *f.CommandID == secNetworkKeySet:
		e.handleNetworkKeySet(f)
		return f, dispatchConsumedAndForward
	case *f.ClassID == ccManufacturerSpec && *f.CommandID == mfgSpecificGet:
		e.handleManufacturerSpecificGet(f)
		return f, dispatchForward
	}
	return f, dispatchForward
}

// handleSecureEncap implements ladder item 2: extract the inner command from
// a secure-encapsulated frame, decrypting and authenticating it, and for the
// nonce-get variant immediately reply with a fresh nonce report.
func (e *Engine) handleSecureEncap(f InboundFrame) (InboundFrame, dispatchAction) {
	isNonceGet := *f.CommandID == secMessageEncapNonceGet
	inner, node, ok := e.decryptSecureEnvelope(f)
	if !ok {
		e.tracer.record("dropped secure frame from node %v: decrypt/auth failed or no matching nonce", f.SourceNode)
		return f, dispatchConsumed
	}
	inner.Secure = true

	if isNonceGet {
		e.issueAndSendNonceReport(node)
	}

	return e.classifyCommand(inner)
}

// secureEnvelopeMinLen is the shortest legal secure envelope: 8-byte IV + at
// least a 2-byte inner class/command + 1-byte receiver-nonce-id + 8-byte tag.
const secureEnvelopeMinLen = 8 + 2 + 1 + 8

// decryptSecureEnvelope parses | IV(8) | ENCRYPTED(…) | NONCE_ID(1) | TAG(8) |,
// looks up the matching incoming nonce, and decrypts with AES-OFB using
// IV = senderNonce(8) || receiverNonce(8) as the 16-byte OFB seed (standard
// Z-Wave S0 construction; confirmed against the wire layout in spec.md §6).
func (e *Engine) decryptSecureEnvelope(f InboundFrame) (InboundFrame, byte, bool) {
	if f.SourceNode == nil || len(f.Payload) < secureEnvelopeMinLen {
		return InboundFrame{}, 0, false
	}
	senderIV := f.Payload[:8]
	nonceID := f.Payload[len(f.Payload)-9]
	tag := f.Payload[len(f.Payload)-8:]
	encrypted := f.Payload[8 : len(f.Payload)-9]

	node := *f.SourceNode
	receiverNonce, ok := e.nonces.consumeIncoming(nonceID, node)
	if !ok {
		return InboundFrame{}, 0, false
	}
	e.tracer.nonce("consume_incoming", node)

	iv := append(append([]byte(nil), senderIV...), receiverNonce[:]...)
	plain, err := ofbKeystream(e.security.encKey, iv, encrypted)
	if err != nil {
		e.tracer.record("secure decrypt error from node %v: %v", node, err)
		return InboundFrame{}, 0, false
	}

	wantTag, err := authTag(e.security.authKey, senderIV, byte(len(encrypted)), node, e.homeNodeID, plain, nonceID)
	if err != nil || !bytesEqual(wantTag, tag) {
		return InboundFrame{}, 0, false
	}
	if len(plain) < 2 {
		return InboundFrame{}, 0, false
	}

	classID, commandID := plain[0], plain[1]
	out := InboundFrame{
		Type:       f.Type,
		FunctionID: f.FunctionID,
		SourceNode: f.SourceNode,
		ClassID:    &classID,
		CommandID:  &commandID,
		Payload:    append([]byte(nil), plain[2:]...),
	}
	return out, node, true
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// unwrapMultiChannel implements ladder item 3: replaces class/command with
// the inner ones and records the end-point pair (spec.md §6).
func (e *Engine) unwrapMultiChannel(f InboundFrame) (InboundFrame, bool) {
	if len(f.Payload) < 4 {
		return InboundFrame{}, false
	}
	srcEP := f.Payload[0] & 0x7f
	dstEP := f.Payload[1] & 0x7f
	classID := f.Payload[2]
	commandID := f.Payload[3]

	out := f
	out.SourceEndpoint = &srcEP
	out.TargetEndpoint = &dstEP
	out.ClassID = &classID
	out.CommandID = &commandID
	out.Payload = append([]byte(nil), f.Payload[4:]...)
	return out, true
}

// handleBareNonceGet implements ladder item 4.
func (e *Engine) handleBareNonceGet(f InboundFrame) {
	if f.SourceNode == nil {
		return
	}
	e.issueAndSendNonceReport(*f.SourceNode)
}

// issueAndSendNonceReport issues a fresh nonce and enqueues (or transmits
// immediately if idle) the reply at the Nonce priority band.
func (e *Engine) issueAndSendNonceReport(node byte) {
	n, err := e.nonces.issue(node)
	if err != nil {
		e.tracer.record("nonce issue failed for node %v: %v", node, err)
		return
	}
	e.tracer.nonce("issue", node)
	m := newCommandClassMessage(node, PriorityNonce, ccSecurity, secNonceReport, n[:])
	m.NeedsCallback = true
	e.submitImmediateOrQueue(m)
}

// handleNonceReport implements ladder item 5: if we are the I/O thread
// waiting in WaitNonce for this node, hand the nonce straight to the state
// machine; otherwise stash it for a future transmit.
func (e *Engine) handleNonceReport(f InboundFrame) {
	if f.SourceNode == nil || len(f.Payload) < 8 {
		return
	}
	var n [8]byte
	copy(n[:], f.Payload[:8])
	node := *f.SourceNode

	if e.state == WaitNonce && e.current != nil && e.current.TargetNode == node {
		e.onNonceReportForCurrent(n)
		return
	}
	e.nonces.storeOutgoing(node, n)
	e.tracer.nonce("store_outgoing", node)
}

// handleNetworkKeySet implements ladder item 6: persist the new key and let
// the caller also forward the frame to the upper layer.
func (e *Engine) handleNetworkKeySet(f InboundFrame) {
	if len(f.Payload) < 16 {
		e.tracer.record("NetworkKeySet payload too short: %d bytes", len(f.Payload))
		return
	}
	key := append([]byte(nil), f.Payload[:16]...)
	keys, err := deriveSecurityKeys(key)
	if err != nil {
		e.tracer.record("NetworkKeySet key derivation failed: %v", err)
		return
	}
	e.networkKey = key
	e.security = keys
	if e.config.Store != nil {
		e.config.Store.SaveNetworkKey(key)
	}
}

// handleManufacturerSpecificGet implements ladder item 7: synthesize a
// manufacturer-specific report and enqueue it at Reply band, still letting
// the original request reach the upper layer. The CQC original addresses
// the synthesized reply to NodeBroadcast rather than the real requester,
// a workaround for lock devices that otherwise ignore the reply (spec.md
// §9 supplement) — preserved here verbatim.
func (e *Engine) handleManufacturerSpecificGet(f InboundFrame) {
	// manufacturerIDs packs manufacturer-id/product-type/product-id as three
	// 16-bit fields in the low 48 bits, high-to-low (set_manufacturer_ids(u64)).
	ids := e.manufacturerIDs
	payload := []byte{
		byte(ids >> 40), byte(ids >> 32),
		byte(ids >> 24), byte(ids >> 16),
		byte(ids >> 8), byte(ids),
	}
	m := newCommandClassMessage(NodeBroadcast, PriorityReply, ccManufacturerSpec, mfgSpecificReport, payload)
	e.submitImmediateOrQueue(m)
}

// submitImmediateOrQueue transmits m right away if the state machine is
// Idle, otherwise enqueues it at its priority band (spec.md §4.6 items 4/5).
// These are engine-synthesized replies with no upper-layer waiter, so
// AckID is left zero; a callback-id is still allocated when needed so the
// transmit-ack matching in onTransmitAck works.
func (e *Engine) submitImmediateOrQueue(m *OutboundMessage) {
	if m.NeedsCallback {
		m.CallbackID = e.allocCallbackID()
	}
	if e.state == Idle {
		e.startNewMessage(m)
		return
	}
	if err := e.outbound.enqueue(m); err != nil {
		e.tracer.record("failed to queue synthesized reply: %v", err)
	}
}

// ConfigStore is the external collaborator that persists the network key
// (spec.md §6: "persisted by the external configuration collaborator").
type ConfigStore interface {
	SaveNetworkKey(key []byte)
	LoadNetworkKey() []byte
}
