package zwave

import "time"

// ManufacturerSpecificGet asks target for its manufacturer/product ids
// (spec.md §4.7).
func (e *Engine) ManufacturerSpecificGet(target byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityQuery, ccManufacturerSpec, mfgSpecificGet, nil)
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccManufacturerSpec, mfgSpecificReport
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// ManufacturerSpecificReport decodes a manufacturer-specific report payload
// into its three 16-bit fields.
type ManufacturerSpecificReport struct {
	ManufacturerID uint16
	ProductType    uint16
	ProductID      uint16
}

// DecodeManufacturerSpecificReport parses a ManufacturerSpecificReport
// command's payload (spec.md §4.7).
func DecodeManufacturerSpecificReport(payload []byte) (ManufacturerSpecificReport, bool) {
	if len(payload) < 6 {
		return ManufacturerSpecificReport{}, false
	}
	return ManufacturerSpecificReport{
		ManufacturerID: uint16(payload[0])<<8 | uint16(payload[1]),
		ProductType:    uint16(payload[2])<<8 | uint16(payload[3]),
		ProductID:      uint16(payload[4])<<8 | uint16(payload[5]),
	}, true
}
