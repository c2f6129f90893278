package zwave

// OutboundMessage is one controller-initiated message (spec.md §3). Created
// by C2 or directly by upper layers; mutated only by C5 (callback-id, retry
// cost, payload for encryption); destroyed when the state machine reaches a
// terminal state for it.
type OutboundMessage struct {
	TargetNode byte
	Priority   Priority
	FunctionID byte

	// HasCommand is true for node-addressed command-class frames (sent via
	// funcSendData); false for plain controller commands that carry their
	// payload directly.
	HasCommand bool
	ClassID    byte
	CommandID  byte
	Payload    []byte

	NeedsCallback bool
	IsSecure      bool
	IsPing        bool
	FreqListener  bool

	// ExpectsReply holds C5 in WaitAck/WaitCallback past the transmission
	// itself until the matching application-level reply frame arrives, so
	// wait_ack delivers it instead of completing on the bare ack (spec.md
	// §3, §9: wait_ack's terminal transition otherwise only carries data
	// for a ping). ReplyClassID/ReplyCommandID name that reply for a
	// command-class message; a plain controller command instead matches
	// by function-id against the next Response frame, leaving them zero.
	ExpectsReply   bool
	ReplyClassID   byte
	ReplyCommandID byte

	// CallbackID is reassigned on NAK/timeout retry, reused on Cancel
	// retry; AckID is assigned once, at Enqueue, and never regenerated.
	CallbackID byte
	AckID      uint64
	RetryCost  int
}

// Transmission-option bits appended to every SEND_DATA envelope (spec.md
// §6). ACK requests a transmit-ack; auto-route and explore let the mesh
// route around a node that doesn't answer directly.
const (
	txOptionAck       byte = 0x01
	txOptionAutoRoute byte = 0x04
	txOptionExplore   byte = 0x20
)

func defaultTxOptions() byte {
	return txOptionAck | txOptionAutoRoute | txOptionExplore
}

// sendDataPayload assembles the SEND_DATA function-id payload:
// TARGET_NODE | CC_PAYLOAD_LEN | CLASS_ID | COMMAND_ID | CC_PAYLOAD... |
// TX_OPTIONS | CALLBACK_ID (spec.md §6). The checksum that frames this
// payload is computed by C1 at transmit time, so a retry that only changes
// the callback-id doesn't need the envelope rebuilt from scratch.
func (m *OutboundMessage) sendDataPayload() []byte {
	cc := make([]byte, 0, 2+len(m.Payload))
	cc = append(cc, m.ClassID, m.CommandID)
	cc = append(cc, m.Payload...)

	out := make([]byte, 0, 4+len(cc))
	out = append(out, m.TargetNode, byte(len(cc)))
	out = append(out, cc...)
	out = append(out, defaultTxOptions(), m.CallbackID)
	return out
}

// wirePayload returns the exact function-id payload to transmit: the full
// command-class envelope for node-addressed messages, or the raw payload for
// plain controller commands (which carry no target node or command class),
// followed by the callback-id byte when the command needs a callback.
func (m *OutboundMessage) wirePayload() []byte {
	if m.HasCommand {
		return m.sendDataPayload()
	}
	if m.NeedsCallback {
		return append(append([]byte(nil), m.Payload...), m.CallbackID)
	}
	return m.Payload
}

// newCommandClassMessage builds a node-addressed command-class frame.
func newCommandClassMessage(target byte, priority Priority, classID, commandID byte, payload []byte) *OutboundMessage {
	return &OutboundMessage{
		TargetNode:    target,
		Priority:      priority,
		FunctionID:    funcSendData,
		HasCommand:    true,
		ClassID:       classID,
		CommandID:     commandID,
		Payload:       payload,
		NeedsCallback: true,
	}
}

// newControllerCommand builds a plain controller command with no node id.
func newControllerCommand(functionID byte, priority Priority, payload []byte) *OutboundMessage {
	return &OutboundMessage{
		FunctionID: functionID,
		Priority:   priority,
		Payload:    payload,
	}
}

// newNonceGetMessage builds a request for a fresh nonce from target, issued
// by C5 when a secure transmission has no cached outgoing nonce.
func newNonceGetMessage(target byte) *OutboundMessage {
	return newCommandClassMessage(target, PriorityNonce, ccSecurity, secNonceGet, nil)
}

// newPingMessage builds the minimal NO_OPERATION frame used to wake a
// frequent-listener target before the real command goes out.
func newPingMessage(target byte) *OutboundMessage {
	m := newCommandClassMessage(target, PriorityLocal, ccNoOperation, cmdNoOp, nil)
	m.IsPing = true
	return m
}
