package zwave

import "time"

// MultiChannelEndPointGet queries how many end points target exposes.
func (e *Engine) MultiChannelEndPointGet(target byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityQuery, ccMultiChannel, multiChanEndPointGet, nil)
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccMultiChannel, multiChanEndPointReport
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// DecodeMultiChannelEndPointReport extracts the individual/aggregated end
// point counts from a MultiChannelEndPointReport payload.
func DecodeMultiChannelEndPointReport(payload []byte) (individual, aggregated byte, ok bool) {
	if len(payload) < 3 {
		return 0, 0, false
	}
	return payload[1] & 0x7f, payload[2] & 0x7f, true
}

// MultiChannelCapabilityGet queries the generic/specific device class and
// supported command classes of one end point on target.
func (e *Engine) MultiChannelCapabilityGet(target, endPoint byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityQuery, ccMultiChannel, multiChanCapGet, []byte{endPoint})
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccMultiChannel, multiChanCapReport
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// MultiChannelCapabilityReport describes one end point's device class and
// supported command classes.
type MultiChannelCapabilityReport struct {
	EndPoint       byte
	GenericClass   byte
	SpecificClass  byte
	CommandClasses []byte
}

// DecodeMultiChannelCapabilityReport parses a
// MultiChannelCapabilityReport payload.
func DecodeMultiChannelCapabilityReport(payload []byte) (MultiChannelCapabilityReport, bool) {
	if len(payload) < 3 {
		return MultiChannelCapabilityReport{}, false
	}
	return MultiChannelCapabilityReport{
		EndPoint:       payload[0] & 0x7f,
		GenericClass:   payload[1],
		SpecificClass:  payload[2],
		CommandClasses: append([]byte(nil), payload[3:]...),
	}, true
}

// wrapMultiChannelEncap wraps an inner command-class frame addressed to a
// specific end point on target, for use by upper layers that need to reach
// behind a multi-channel node (the decode half lives in dispatch.go's
// unwrapMultiChannel).
func wrapMultiChannelEncap(sourceEP, destEP byte, inner []byte) []byte {
	payload := make([]byte, 2, 2+len(inner))
	payload[0] = sourceEP
	payload[1] = destEP
	payload = append(payload, inner...)
	return payload
}
