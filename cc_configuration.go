package zwave

import "time"

// ConfigurationSet writes a signed integer value to a configuration
// parameter, encoded in the given size (1, 2, or 4 bytes), per spec.md §4.7.
func (e *Engine) ConfigurationSet(target, param byte, value int32, size byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	payload := append([]byte{param, size}, encodeConfigValue(value, size)...)
	m := newCommandClassMessage(target, PriorityCommand, ccConfiguration, configSet, payload)
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// ConfigurationGet queries a single configuration parameter.
func (e *Engine) ConfigurationGet(target, param byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityQuery, ccConfiguration, configGet, []byte{param})
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccConfiguration, configReport
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// DecodeConfigurationReport extracts (parameter, size, signed value) from a
// ConfigurationReport payload; size drives how many trailing bytes are
// sign-extended.
func DecodeConfigurationReport(payload []byte) (param byte, size byte, value int32, ok bool) {
	if len(payload) < 2 {
		return 0, 0, 0, false
	}
	param, size = payload[0], payload[1]
	if int(size) < 1 || len(payload) < 2+int(size) {
		return 0, 0, 0, false
	}
	return param, size, decodeConfigValue(payload[2:2+int(size)], size), true
}

// encodeConfigValue packs value into size bytes, big-endian, truncating to
// the requested width (spec.md's 1/2/4-byte signed parameter forms).
func encodeConfigValue(value int32, size byte) []byte {
	switch size {
	case 1:
		return []byte{byte(value)}
	case 2:
		return []byte{byte(value >> 8), byte(value)}
	case 4:
		return []byte{byte(value >> 24), byte(value >> 16), byte(value >> 8), byte(value)}
	default:
		return nil
	}
}

// decodeConfigValue sign-extends a big-endian size-byte field into an int32.
func decodeConfigValue(b []byte, size byte) int32 {
	var u uint32
	for _, c := range b {
		u = u<<8 | uint32(c)
	}
	switch size {
	case 1:
		return int32(int8(u))
	case 2:
		return int32(int16(u))
	default:
		return int32(u)
	}
}
