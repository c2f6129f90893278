package zwave

import "time"

// SensorBinaryGet queries target's binary sensor state (spec.md §4.7
// supplement).
func (e *Engine) SensorBinaryGet(target byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityQuery, ccSensorBinary, sensorBinaryGet, nil)
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccSensorBinary, sensorBinaryReport
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// DecodeSensorBinaryReport extracts the on/off state from a
// SensorBinaryReport payload (0x00 idle, 0xff triggered).
func DecodeSensorBinaryReport(payload []byte) (triggered bool, ok bool) {
	if len(payload) < 1 {
		return false, false
	}
	return payload[0] != 0x00, true
}
