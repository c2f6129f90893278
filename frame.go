package zwave

import (
	"errors"
	"fmt"
	"time"
)

// InboundFrame is one completed Z-Wave frame (spec.md §3). Created by C1 on
// successful parse; mutated only by C6 when unwrapping encapsulations.
type InboundFrame struct {
	Type           FrameType
	FunctionID     byte
	Payload        []byte
	SourceNode     *byte
	ClassID        *byte
	CommandID      *byte
	CallbackID     *byte
	Secure         bool
	SourceEndpoint *byte
	TargetEndpoint *byte
}

// headerReadTimeout bounds each byte read once a SOF has committed us to a
// frame; partial frames get one extension of this budget before they're
// abandoned (spec.md §4.1).
const headerReadTimeout = 250 * time.Millisecond

// checksum is 0xFF XORed with every byte given (spec.md §6).
func checksum(b []byte) byte {
	sum := byte(0xff)
	for _, c := range b {
		sum ^= c
	}
	return sum
}

// encodeFrame serialises a multi-byte frame:
// SOF | LEN | TYPE | FUNCTION_ID | PAYLOAD... | CHECKSUM.
func encodeFrame(frameType, functionID byte, payload []byte) []byte {
	body := make([]byte, 0, 2+len(payload))
	body = append(body, frameType, functionID)
	body = append(body, payload...)

	out := make([]byte, 0, 3+len(body))
	out = append(out, sof, byte(len(body)))
	out = append(out, body...)
	out = append(out, checksum(append([]byte{byte(len(body))}, body...)))
	return out
}

// writeFrame writes one multi-byte frame to the wire. Serialisation does
// not retry at this layer; write failures are surfaced to C5 which decides
// policy (spec.md §4.1).
func (e *Engine) writeFrame(frameType, functionID byte, payload []byte) error {
	return e.fw.writeFrame(encodeFrame(frameType, functionID, payload))
}

func (e *Engine) writeAck() error    { return e.fw.writeFrame([]byte{ack}) }
func (e *Engine) writeNak() error    { return e.fw.writeFrame([]byte{nak}) }
func (e *Engine) writeCancel() error { return e.fw.writeFrame([]byte{can}) }

// readFrame runs the C1 parse state machine: wait-SOF → length → type →
// function-id → payload → checksum. Ack/Nak/Cancel are recognised as bare
// single bytes with no length/checksum. A successfully parsed multi-byte
// frame is Ack-ed on the wire before return.
func (e *Engine) readFrame(timeout time.Duration) (InboundFrame, error) {
	for {
		b, err := e.fr.readByte(timeout)
		if err != nil {
			if isTimeout(err) {
				return InboundFrame{Type: FrameTimeout}, nil
			}
			return InboundFrame{}, fmt.Errorf("zwave: read frame: %w", err)
		}
		switch b {
		case ack:
			return InboundFrame{Type: FrameAck}, nil
		case nak:
			return InboundFrame{Type: FrameNak}, nil
		case can:
			return InboundFrame{Type: FrameCancel}, nil
		case sof:
			frame, err := e.readFrameBody()
			if err != nil {
				if errors.Is(err, ErrFrameTimeout) {
					return InboundFrame{Type: FrameTimeout}, nil
				}
				_ = e.writeNak()
				continue // resync on the next SOF
			}
			if err := e.writeAck(); err != nil {
				return InboundFrame{}, fmt.Errorf("zwave: ack frame: %w", err)
			}
			return frame, nil
		default:
			// noise preceding a frame start; keep scanning
			continue
		}
	}
}

// readFrameByteExtend reads one post-SOF byte, extending the deadline once
// if the first attempt times out, absorbing minor wire jitter without
// stalling the I/O thread indefinitely. If the extension also times out,
// returns ErrFrameTimeout rather than the raw timeout error, so the caller
// can tell "nothing arrived" apart from a genuine framing failure (spec.md
// §4.1).
func (e *Engine) readFrameByteExtend() (byte, error) {
	b, err := e.fr.readByte(headerReadTimeout)
	if err != nil && isTimeout(err) {
		b, err = e.fr.readByte(headerReadTimeout)
		if err != nil && isTimeout(err) {
			return 0, ErrFrameTimeout
		}
	}
	return b, err
}

// badFramingOrTimeout passes ErrFrameTimeout through unchanged and maps any
// other read failure to ErrBadFraming, keeping the two recovery paths
// distinguishable all the way out to readFrame.
func badFramingOrTimeout(err error) error {
	if errors.Is(err, ErrFrameTimeout) {
		return err
	}
	return ErrBadFraming
}

// readFrameBody reads LEN, TYPE+FUNCTION_ID+PAYLOAD, and CHECKSUM once a SOF
// has been seen. Returns ErrFrameTimeout, unchanged, if the wire simply went
// quiet mid-frame; returns ErrBadFraming on any other short read or checksum
// mismatch (spec.md §4.1: "frames shorter than a full header are dropped
// silently and a Nak is sent").
func (e *Engine) readFrameBody() (InboundFrame, error) {
	length, err := e.readFrameByteExtend()
	if err != nil {
		return InboundFrame{}, badFramingOrTimeout(err)
	}
	if length < 2 {
		return InboundFrame{}, ErrBadFraming
	}
	body := make([]byte, length)
	for i := range body {
		b, err := e.readFrameByteExtend()
		if err != nil {
			return InboundFrame{}, badFramingOrTimeout(err)
		}
		body[i] = b
	}
	sum, err := e.readFrameByteExtend()
	if err != nil {
		return InboundFrame{}, badFramingOrTimeout(err)
	}
	want := checksum(append([]byte{length}, body...))
	if sum != want {
		return InboundFrame{}, ErrBadFraming
	}

	frameTypeByte, functionID := body[0], body[1]
	payload := append([]byte(nil), body[2:]...)

	ft := FrameRequest
	if frameTypeByte == typeResponse {
		ft = FrameResponse
	}
	// A transmit-ack is recognised structurally: function-id equals
	// SEND_DATA and the payload carries exactly callback-id + status +
	// two reserved bytes (spec.md §4.1).
	if functionID == funcSendData && ft == FrameRequest && len(payload) == 4 {
		cb := payload[0]
		return InboundFrame{Type: FrameTransmitAck, FunctionID: functionID, Payload: payload, CallbackID: &cb}, nil
	}
	return InboundFrame{Type: ft, FunctionID: functionID, Payload: payload}, nil
}
