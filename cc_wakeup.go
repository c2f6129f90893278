package zwave

import "time"

// WakeUpIntervalGet queries the node's current wake-up interval.
func (e *Engine) WakeUpIntervalGet(target byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityWakeup, ccWakeUp, wakeUpIntervalGet, nil)
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccWakeUp, wakeUpIntervalReport
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// WakeUpIntervalSet configures the node's wake-up interval (seconds) and
// the node id it should notify on waking.
func (e *Engine) WakeUpIntervalSet(target byte, intervalSeconds uint32, notifyNode byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	payload := []byte{
		byte(intervalSeconds >> 16), byte(intervalSeconds >> 8), byte(intervalSeconds),
		notifyNode,
	}
	m := newCommandClassMessage(target, PriorityWakeup, ccWakeUp, wakeUpIntervalSet, payload)
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// WakeUpNoMoreInformation tells a sleeping node it may return to sleep; the
// caller must already know the node is awake, so this always waits
// synchronously.
func (e *Engine) WakeUpNoMoreInformation(target byte, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityWakeup, ccWakeUp, wakeUpNoMoreInfo, nil)
	reply, _, err := e.sendCommandPolicy(m, true, timeout)
	return reply, err
}

// WakeUpIntervalCapabilitiesGet queries the allowed interval range/step/
// default.
func (e *Engine) WakeUpIntervalCapabilitiesGet(target byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityWakeup, ccWakeUp, wakeUpIntervalCapsGet, nil)
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccWakeUp, wakeUpIntervalCapsRept
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}
