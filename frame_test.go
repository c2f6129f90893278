package zwave

import (
	"bytes"
	"log/slog"
	"testing"
	"time"
)

func newTestEngineIO(r *bytes.Buffer, w *bytes.Buffer) *Engine {
	return &Engine{
		fr:     newFrameReader(r, slog.Default()),
		fw:     newFrameWriter(w),
		logger: slog.Default(),
		tracer: newTracer(slog.Default(), TraceOff),
	}
}

func TestChecksumRoundTrip(t *testing.T) {
	body := []byte{typeRequest, funcMemoryGetID, 0x01, 0x02, 0x03}
	sum := checksum(append([]byte{byte(len(body))}, body...))
	encoded := encodeFrame(typeRequest, funcMemoryGetID, []byte{0x01, 0x02, 0x03})
	if got := encoded[len(encoded)-1]; got != sum {
		t.Fatalf("trailing checksum byte = 0x%02x, want 0x%02x", got, sum)
	}
}

func TestReadFrameRoundTrip(t *testing.T) {
	var wire bytes.Buffer
	wire.Write(encodeFrame(typeResponse, funcMemoryGetID, []byte{0xaa, 0xbb}))

	var out bytes.Buffer
	e := newTestEngineIO(&wire, &out)

	f, err := e.readFrame(0)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if f.Type != FrameResponse {
		t.Fatalf("frame type = %v, want Response", f.Type)
	}
	if f.FunctionID != funcMemoryGetID {
		t.Fatalf("function id = 0x%02x, want 0x%02x", f.FunctionID, funcMemoryGetID)
	}
	if !bytes.Equal(f.Payload, []byte{0xaa, 0xbb}) {
		t.Fatalf("payload = %v, want [0xaa 0xbb]", f.Payload)
	}
	if out.Len() != 1 || out.Bytes()[0] != ack {
		t.Fatalf("expected a single ACK byte written back, got %v", out.Bytes())
	}
}

func TestReadFrameCorruptionSendsNak(t *testing.T) {
	var wire bytes.Buffer
	good := encodeFrame(typeRequest, funcMemoryGetID, []byte{0x01})
	good[len(good)-1] ^= 0xff // flip the checksum byte
	wire.Write(good)
	wire.Write(encodeFrame(typeRequest, funcMemoryGetID, []byte{0x42})) // a second, valid frame to resync onto

	var out bytes.Buffer
	e := newTestEngineIO(&wire, &out)

	f, err := e.readFrame(0)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if f.Type != FrameRequest || len(f.Payload) != 1 || f.Payload[0] != 0x42 {
		t.Fatalf("expected to resync onto the second valid frame, got %+v", f)
	}
	if out.Len() < 2 || out.Bytes()[0] != nak {
		t.Fatalf("expected a NAK for the corrupt frame before the ACK, got %v", out.Bytes())
	}
}

// TestReadFrameMidFrameTimeoutYieldsFrameTimeoutWithoutNak covers the other
// half of spec.md §4.1's recovery split: a SOF that commits us to a frame,
// followed by wire silence rather than corrupt bytes, must surface as a
// silent FrameTimeout and must not write a NAK (that's reserved for a frame
// that actually arrived malformed).
func TestReadFrameMidFrameTimeoutYieldsFrameTimeoutWithoutNak(t *testing.T) {
	engineSide, stickSide := newFakeLink()
	var out bytes.Buffer
	e := &Engine{
		fr:     newFrameReader(engineSide, slog.Default()),
		fw:     newFrameWriter(&out),
		logger: slog.Default(),
		tracer: newTracer(slog.Default(), TraceOff),
	}

	writeStickSingle(stickSide, sof) // commit to a frame, then go silent

	f, err := e.readFrame(time.Second)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if f.Type != FrameTimeout {
		t.Fatalf("frame type = %v, want Timeout", f.Type)
	}
	if out.Len() != 0 {
		t.Fatalf("a mid-frame timeout must not write a NAK, got %v", out.Bytes())
	}
}

func TestReadFrameRecognisesSingleByteFrames(t *testing.T) {
	for _, tc := range []struct {
		name string
		b    byte
		want FrameType
	}{
		{"ack", ack, FrameAck},
		{"nak", nak, FrameNak},
		{"cancel", can, FrameCancel},
	} {
		t.Run(tc.name, func(t *testing.T) {
			wire := bytes.NewBuffer([]byte{tc.b})
			var out bytes.Buffer
			e := newTestEngineIO(wire, &out)
			f, err := e.readFrame(0)
			if err != nil {
				t.Fatalf("readFrame: %v", err)
			}
			if f.Type != tc.want {
				t.Fatalf("frame type = %v, want %v", f.Type, tc.want)
			}
			if out.Len() != 0 {
				t.Fatalf("single-byte frames are not acked, got %v", out.Bytes())
			}
		})
	}
}

func TestReadFrameRecognisesTransmitAck(t *testing.T) {
	var wire bytes.Buffer
	wire.Write(encodeFrame(typeRequest, funcSendData, []byte{0x07, txStatusOK, 0x00, 0x00}))
	var out bytes.Buffer
	e := newTestEngineIO(&wire, &out)

	f, err := e.readFrame(0)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if f.Type != FrameTransmitAck {
		t.Fatalf("frame type = %v, want TransmitAck", f.Type)
	}
	if f.CallbackID == nil || *f.CallbackID != 0x07 {
		t.Fatalf("callback id = %v, want 0x07", f.CallbackID)
	}
}
