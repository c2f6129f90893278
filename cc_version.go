package zwave

import "time"

// VersionGet retrieves the node's Z-Wave library/protocol/application
// version information (spec.md §4.7).
func (e *Engine) VersionGet(target byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityQuery, ccVersion, versionGet, nil)
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccVersion, versionReport
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// VersionCommandClassGet probes the version of one supported command class;
// callers probe each supported class in turn (spec.md §4.7).
func (e *Engine) VersionCommandClassGet(target, classID byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityQuery, ccVersion, versionCommandClassGet, []byte{classID})
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccVersion, versionCommandClassRept
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// DecodeVersionCommandClassReport extracts (classID, version) from a
// VersionCommandClassReport payload.
func DecodeVersionCommandClassReport(payload []byte) (classID, version byte, ok bool) {
	if len(payload) < 2 {
		return 0, 0, false
	}
	return payload[0], payload[1], true
}
