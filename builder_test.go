package zwave

import (
	"bytes"
	"testing"
)

func TestSendDataPayloadLayout(t *testing.T) {
	m := newCommandClassMessage(9, PriorityCommand, 0x25, 0x01, []byte{0xff, 0x00})
	m.CallbackID = 0x42

	got := m.sendDataPayload()
	want := []byte{9, 4, 0x25, 0x01, 0xff, 0x00, defaultTxOptions(), 0x42}
	if !bytes.Equal(got, want) {
		t.Fatalf("sendDataPayload = %x, want %x", got, want)
	}
}

func TestWirePayloadDistinguishesCommandFromPlain(t *testing.T) {
	cmd := newCommandClassMessage(1, PriorityCommand, 0x20, 0x03, nil)
	cmd.CallbackID = 0x01
	if len(cmd.wirePayload()) == 0 {
		t.Fatalf("command-class wirePayload must not be empty")
	}
	if !bytes.Equal(cmd.wirePayload(), cmd.sendDataPayload()) {
		t.Fatalf("HasCommand message's wirePayload must equal sendDataPayload")
	}

	plain := newControllerCommand(funcMemoryGetID, PriorityLocal, []byte{0x01, 0x02})
	if !bytes.Equal(plain.wirePayload(), plain.Payload) {
		t.Fatalf("plain controller command's wirePayload must equal its raw Payload")
	}
}

func TestNewPingMessageIsLocalPriorityAndFlaggedAsPing(t *testing.T) {
	m := newPingMessage(5)
	if !m.IsPing {
		t.Fatalf("ping message must set IsPing")
	}
	if m.Priority != PriorityLocal {
		t.Fatalf("ping message priority = %v, want PriorityLocal", m.Priority)
	}
	if m.ClassID != ccNoOperation || m.CommandID != cmdNoOp {
		t.Fatalf("ping message class/command = %#x/%#x, want NO_OPERATION", m.ClassID, m.CommandID)
	}
}

func TestNewNonceGetMessageTargetsSecurityNonceGet(t *testing.T) {
	m := newNonceGetMessage(5)
	if m.ClassID != ccSecurity || m.CommandID != secNonceGet {
		t.Fatalf("nonce-get message class/command = %#x/%#x, want Security/NonceGet", m.ClassID, m.CommandID)
	}
	if m.Priority != PriorityNonce {
		t.Fatalf("nonce-get message priority = %v, want PriorityNonce", m.Priority)
	}
}
