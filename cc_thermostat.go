package zwave

import "time"

// ThermostatModeSupportedGet queries which thermostat modes target supports.
func (e *Engine) ThermostatModeSupportedGet(target byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityQuery, ccThermostatMode, thermModeSupportedGet, nil)
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccThermostatMode, thermModeSupportedRept
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// ThermostatFanModeSupportedGet queries which fan modes target supports.
func (e *Engine) ThermostatFanModeSupportedGet(target byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityQuery, ccThermostatFanMd, thermFanModeSuppGet, nil)
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccThermostatFanMd, thermFanModeSuppRept
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// ThermostatSetpointSupportedGet queries which setpoint types target
// supports.
func (e *Engine) ThermostatSetpointSupportedGet(target byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityQuery, ccThermostatSetPt, thermSetPtSuppGet, nil)
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccThermostatSetPt, thermSetPtSuppRept
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// DecodeThermostatSupportedBitmask unpacks a little-endian, up-to-two-byte
// supported-mode/fan-mode/setpoint-type bitmask shared by the three
// thermostat Supported Report commands into the set bit positions.
func DecodeThermostatSupportedBitmask(payload []byte) []byte {
	var set []byte
	for byteIdx, b := range payload {
		if byteIdx > 1 {
			break
		}
		for bit := 0; bit < 8; bit++ {
			if b&(1<<uint(bit)) != 0 {
				set = append(set, byte(byteIdx*8+bit))
			}
		}
	}
	return set
}
