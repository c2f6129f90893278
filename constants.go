package zwave

import "fmt"

// Single-byte frame bytes.
const (
	sof byte = 0x01 // start of frame
	ack byte = 0x06
	nak byte = 0x15
	can byte = 0x18 // cancel
)

// Frame types carried in the TYPE byte of a multi-byte frame.
const (
	typeRequest  byte = 0x00
	typeResponse byte = 0x01
)

// Function ids (subset relevant to the engine; upper layers may use more).
const (
	funcSendData              byte = 0x13
	funcSetDefault            byte = 0x42
	funcApplicationCommand    byte = 0x04
	funcGetControllerCapabili byte = 0x05
	funcSerialAPIGetInitData  byte = 0x02
	funcMemoryGetID           byte = 0x20
	funcSetSerialTimeouts     byte = 0x06
	funcGetVersion            byte = 0x15
	funcSetLearnMode          byte = 0x50
	funcSendNodeInformation   byte = 0x12
	funcApplicationNodeInfo   byte = 0x03
)

// Command class ids used by the mandatory C7 subset.
const (
	ccSecurity         byte = 0x98
	ccManufacturerSpec byte = 0x72
	ccVersion          byte = 0x86
	ccWakeUp           byte = 0x84
	ccNaming           byte = 0x77
	ccAssociation      byte = 0x85
	ccMultiAssociation byte = 0x8e
	ccConfiguration    byte = 0x70
	ccMultiChannel     byte = 0x60
	ccThermostatMode   byte = 0x40
	ccThermostatFanMd  byte = 0x44
	ccThermostatSetPt  byte = 0x43
	ccBattery          byte = 0x80
	ccSensorBinary     byte = 0x30
)

// Security (0x98) command ids.
const (
	secCommandsSupportedGet    byte = 0x02
	secCommandsSupportedReport byte = 0x03
	secSchemeGet               byte = 0x04
	secSchemeReport            byte = 0x05
	secNetworkKeySet           byte = 0x06
	secNetworkKeyVerify        byte = 0x07
	secSchemeInherit           byte = 0x08
	secNonceGet                byte = 0x40
	secNonceReport             byte = 0x80
	secMessageEncap            byte = 0x81
	secMessageEncapNonceGet    byte = 0xc1
)

// Manufacturer Specific (0x72).
const (
	mfgSpecificGet    byte = 0x04
	mfgSpecificReport byte = 0x05
)

// Version (0x86).
const (
	versionGet              byte = 0x11
	versionReport           byte = 0x12
	versionCommandClassGet  byte = 0x13
	versionCommandClassRept byte = 0x14
)

// Wake Up (0x84).
const (
	wakeUpIntervalSet      byte = 0x04
	wakeUpIntervalGet      byte = 0x05
	wakeUpIntervalReport   byte = 0x06
	wakeUpNotification     byte = 0x07
	wakeUpNoMoreInfo       byte = 0x08
	wakeUpIntervalCapsGet  byte = 0x09
	wakeUpIntervalCapsRept byte = 0x0a
)

// Node Naming (0x77).
const (
	nameSet    byte = 0x01
	nameGet    byte = 0x02
	nameReport byte = 0x03
)

// Association (0x85) / Multi Channel Association (0x8e).
const (
	assocSet                byte = 0x01
	assocGet                byte = 0x02
	assocReport             byte = 0x03
	assocRemove             byte = 0x04
	assocGroupingsGet       byte = 0x05
	assocGroupingsReport    byte = 0x06
	multiAssocSet           byte = 0x01
	multiAssocGet           byte = 0x02
	multiAssocReport        byte = 0x03
	multiAssocRemove        byte = 0x04
	multiAssocGroupingsGet  byte = 0x05
	multiAssocGroupingsRept byte = 0x06
)

// Configuration (0x70).
const (
	configSet    byte = 0x04
	configGet    byte = 0x05
	configReport byte = 0x06
)

// Multi Channel (0x60).
const (
	multiChanEndPointGet    byte = 0x07
	multiChanEndPointReport byte = 0x08
	multiChanCapGet         byte = 0x09
	multiChanCapReport      byte = 0x0a
	multiChanEncap          byte = 0x0d
)

// Thermostat Mode (0x40), Fan Mode (0x44), Setpoint (0x43).
const (
	thermModeSupportedGet  byte = 0x04
	thermModeSupportedRept byte = 0x05
	thermFanModeSuppGet    byte = 0x04
	thermFanModeSuppRept   byte = 0x05
	thermSetPtSuppGet      byte = 0x04
	thermSetPtSuppRept     byte = 0x05
)

// Battery (0x80).
const (
	batteryGet    byte = 0x02
	batteryReport byte = 0x03
)

// Sensor Binary (0x30).
const (
	sensorBinaryGet    byte = 0x02
	sensorBinaryReport byte = 0x03
)

// no-op command class/command used for frequent-listener pings.
const (
	ccNoOperation byte = 0x00
	cmdNoOp       byte = 0x00
)

// Transmit-ack status byte (payload[1] of a funcSendData callback).
const txStatusOK byte = 0x00

// funcSetLearnMode callback status indicating the controller entered
// learn mode; both nonce caches are flushed when this is seen (spec.md §9
// supplement, grounded in original_source's replication-triggered flush).
const learnModeStarted byte = 0x01

// Priority is the outbound priority band. Higher values drain first.
type Priority int

const (
	PriorityAsync Priority = iota
	PriorityQuery
	PriorityCommand
	PriorityReply
	PriorityWakeup
	PrioritySpecialCmd
	PrioritySecurity
	PriorityNonce
	PriorityLocal
	priorityCount
)

func (p Priority) String() string {
	switch p {
	case PriorityLocal:
		return "Local"
	case PriorityNonce:
		return "Nonce"
	case PrioritySecurity:
		return "Security"
	case PrioritySpecialCmd:
		return "SpecialCmd"
	case PriorityWakeup:
		return "Wakeup"
	case PriorityReply:
		return "Reply"
	case PriorityCommand:
		return "Command"
	case PriorityQuery:
		return "Query"
	case PriorityAsync:
		return "Async"
	default:
		return "Unknown"
	}
}

// FrameType identifies the shape of a parsed inbound frame.
type FrameType int

const (
	FrameAck FrameType = iota
	FrameNak
	FrameCancel
	FrameTransmitAck
	FrameRequest
	FrameResponse
	FrameTimeout
)

func (t FrameType) String() string {
	switch t {
	case FrameAck:
		return "Ack"
	case FrameNak:
		return "Nak"
	case FrameCancel:
		return "Cancel"
	case FrameTransmitAck:
		return "TransmitAck"
	case FrameRequest:
		return "Request"
	case FrameResponse:
		return "Response"
	case FrameTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// functionIDName returns a human-readable name for a function id, used only
// by diagnostics; unrecognized ids print as hex.
func functionIDName(id byte) string {
	switch id {
	case funcSendData:
		return "SEND_DATA"
	case funcSetDefault:
		return "SET_DEFAULT"
	case funcApplicationCommand:
		return "APPLICATION_COMMAND_HANDLER"
	case funcGetControllerCapabili:
		return "GET_CONTROLLER_CAPABILITIES"
	case funcSerialAPIGetInitData:
		return "SERIAL_API_GET_INIT_DATA"
	case funcMemoryGetID:
		return "MEMORY_GET_ID"
	case funcSetSerialTimeouts:
		return "SET_SERIAL_API_TIMEOUTS"
	case funcGetVersion:
		return "GET_VERSION"
	case funcSetLearnMode:
		return "SET_LEARN_MODE"
	case funcSendNodeInformation:
		return "SEND_NODE_INFORMATION"
	case funcApplicationNodeInfo:
		return "APPLICATION_NODE_INFORMATION"
	default:
		return fmt.Sprintf("0x%02x", id)
	}
}

// NodeBroadcast is the Z-Wave broadcast node address.
const NodeBroadcast byte = 0xff
