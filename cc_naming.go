package zwave

import "time"

// NamingSet assigns a UTF-8 name to target (spec.md §4.7 supplement).
func (e *Engine) NamingSet(target byte, name string, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityCommand, ccNaming, nameSet, []byte(name))
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// NamingGet retrieves the name currently assigned to target.
func (e *Engine) NamingGet(target byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityQuery, ccNaming, nameGet, nil)
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccNaming, nameReport
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// DecodeNamingReport extracts the name string from a NameReport payload.
func DecodeNamingReport(payload []byte) (string, bool) {
	if len(payload) == 0 {
		return "", false
	}
	return string(payload), true
}
