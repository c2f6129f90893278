package zwave

import "time"

// SetSerialTimeouts sets the ack and byte timeouts the stick itself enforces
// (spec.md §4.10), as a SpecialCmd-band message.
func (e *Engine) SetSerialTimeouts(ackTimeoutMs, byteTimeoutMs uint16, timeout time.Duration) (*InboundFrame, error) {
	payload := []byte{
		byte(ackTimeoutMs >> 8), byte(ackTimeoutMs),
		byte(byteTimeoutMs >> 8), byte(byteTimeoutMs),
	}
	m := newControllerCommand(funcSetSerialTimeouts, PrioritySpecialCmd, payload)
	m.ExpectsReply = true
	reply, _, err := e.sendCommandPolicy(m, true, timeout)
	return reply, err
}

// ControllerInfo is the decoded reply to QueryControllerInfo.
type ControllerInfo struct {
	HomeID uint32
	NodeID byte
}

// QueryControllerInfo sends MEMORY_GET_ID and decodes the home id and
// controller node id from the Response (spec.md §4.10). Library version and
// controller capabilities are not queried.
func (e *Engine) QueryControllerInfo(timeout time.Duration) (ControllerInfo, error) {
	m := newControllerCommand(funcMemoryGetID, PrioritySpecialCmd, nil)
	m.ExpectsReply = true
	reply, _, err := e.sendCommandPolicy(m, true, timeout)
	if err != nil {
		return ControllerInfo{}, err
	}
	if reply == nil || len(reply.Payload) < 5 {
		return ControllerInfo{}, ErrBadFraming
	}
	info := ControllerInfo{
		HomeID: uint32(reply.Payload[0])<<24 | uint32(reply.Payload[1])<<16 |
			uint32(reply.Payload[2])<<8 | uint32(reply.Payload[3]),
		NodeID: reply.Payload[4],
	}
	return info, nil
}

// SetLearnMode arms or disarms inclusion/exclusion learn mode. Per spec.md
// §4.10, the callback for this command may take many seconds (waiting for a
// human to trigger an action on another node), so this deliberately does
// NOT go through the normal blocking WaitAck/WaitCallback path: the message
// is enqueued with NeedsCallback=false so the state machine resolves on the
// local serial Ack alone, and the eventual funcSetLearnMode callback frame
// flows to the upper layer asynchronously through the ordinary inbound
// dispatch path. classify watches that frame for the learn-mode-started
// status and flushes both nonce caches right there, since the network key
// may be about to change.
func (e *Engine) SetLearnMode(enable bool) error {
	mode := byte(0x00)
	if enable {
		mode = 0x01
	}
	m := newControllerCommand(funcSetLearnMode, PrioritySpecialCmd, []byte{mode})
	m.NeedsCallback = false
	_, err := e.Enqueue(m)
	return err
}

// BroadcastNIF sends a node-information-frame broadcast appropriate to the
// controller's current security status. Per the original_source supplement
// (spec.md §9), whenever secure is true both nonce caches are flushed first,
// since any nonce issued under a different security posture is no longer
// meaningful; the previous mode is not tracked.
func (e *Engine) BroadcastNIF(secure bool, genericType, specificType byte, classes []byte) error {
	if secure {
		e.nonces.flushAll()
	}
	payload := make([]byte, 0, 3+len(classes))
	payload = append(payload, genericType, specificType)
	payload = append(payload, classes...)

	m := newControllerCommand(funcSendNodeInformation, PrioritySpecialCmd, payload)
	m.TargetNode = NodeBroadcast
	m.NeedsCallback = true
	_, err := e.Enqueue(m)
	return err
}

// SetDefault performs a factory reset of the controller, with callback
// (spec.md §4.10).
func (e *Engine) SetDefault(timeout time.Duration) error {
	m := newControllerCommand(funcSetDefault, PrioritySpecialCmd, nil)
	m.NeedsCallback = true
	_, _, err := e.sendCommandPolicy(m, true, timeout)
	return err
}

// SetApplicationNodeInformation declares our generic/specific device type
// and advertised command classes; the class list differs between secure and
// non-secure modes (spec.md §4.10).
func (e *Engine) SetApplicationNodeInformation(listening bool, genericType, specificType byte, classes []byte) error {
	listenByte := byte(0x00)
	if listening {
		listenByte = 0x01
	}
	payload := make([]byte, 0, 4+len(classes))
	payload = append(payload, listenByte, genericType, specificType, byte(len(classes)))
	payload = append(payload, classes...)

	m := newControllerCommand(funcApplicationNodeInfo, PrioritySpecialCmd, payload)
	_, err := e.Enqueue(m)
	return err
}
