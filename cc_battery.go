package zwave

import "time"

// batteryLow is the Battery Report special value meaning "low battery
// warning", distinct from an actual 0-100 percentage.
const batteryLow byte = 0xff

// BatteryGet queries target's battery level (spec.md §4.7 supplement,
// original_source polls this alongside manufacturer/version during
// node interrogation).
func (e *Engine) BatteryGet(target byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityQuery, ccBattery, batteryGet, nil)
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccBattery, batteryReport
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// DecodeBatteryReport extracts the battery percentage from a BatteryReport
// payload; low reports back as (0, true, low=true).
func DecodeBatteryReport(payload []byte) (percent byte, low bool, ok bool) {
	if len(payload) < 1 {
		return 0, false, false
	}
	if payload[0] == batteryLow {
		return 0, true, true
	}
	return payload[0], false, true
}
