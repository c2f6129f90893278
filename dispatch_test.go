package zwave

import (
	"bytes"
	"log/slog"
	"testing"
)

// fakeConfigStore records the keys passed to SaveNetworkKey, used to verify
// ladder item 6 (spec.md §4.6, §8 scenario 6) persists through the external
// collaborator.
type fakeConfigStore struct {
	saved []byte
}

func (s *fakeConfigStore) SaveNetworkKey(key []byte) { s.saved = append([]byte(nil), key...) }
func (s *fakeConfigStore) LoadNetworkKey() []byte    { return s.saved }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := &Engine{
		logger: slog.Default(),
		tracer: newTracer(slog.Default(), TraceOff),
		nonces: newNonceCache(slog.Default()),
	}
	keys, err := deriveSecurityKeys(make([]byte, 16))
	if err != nil {
		t.Fatalf("derive initial keys: %v", err)
	}
	e.security = keys
	e.networkKey = make([]byte, 16)
	return e
}

// TestClassifyFlushesNoncesOnLearnModeStarted covers ladder item 8: the
// learn-mode-started callback arrives as a plain SET_LEARN_MODE frame, never
// wrapped in APPLICATION_COMMAND_HANDLER, and must still flush both nonce
// caches before the frame is forwarded to the upper layer.
func TestClassifyFlushesNoncesOnLearnModeStarted(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.nonces.issue(4); err != nil {
		t.Fatalf("seed incoming nonce: %v", err)
	}
	e.nonces.storeOutgoing(4, [8]byte{0x02, 0, 0, 0, 0, 0, 0, 0})

	f := InboundFrame{Type: FrameRequest, FunctionID: funcSetLearnMode, Payload: []byte{learnModeStarted, 0x04}}
	classified, action := e.classify(f)
	if action != dispatchForward {
		t.Fatalf("action = %v, want dispatchForward (still reaches the upper layer)", action)
	}
	if classified.FunctionID != funcSetLearnMode {
		t.Fatalf("classify must not mutate a frame it doesn't unwrap")
	}

	e.nonces.mu.Lock()
	inLen, outLen := len(e.nonces.incoming[4]), len(e.nonces.outgoing[4])
	e.nonces.mu.Unlock()
	if inLen != 0 || outLen != 0 {
		t.Fatalf("nonce caches not flushed on learn-mode-started: incoming=%d outgoing=%d", inLen, outLen)
	}
}

// TestClassifyIgnoresOtherLearnModeStatuses confirms only the
// learn-mode-started status triggers the flush, not every SET_LEARN_MODE
// callback (e.g. a failure or done status must leave nonces alone).
func TestClassifyIgnoresOtherLearnModeStatuses(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.nonces.issue(4); err != nil {
		t.Fatalf("seed incoming nonce: %v", err)
	}

	const learnModeDone byte = 0x06
	f := InboundFrame{Type: FrameRequest, FunctionID: funcSetLearnMode, Payload: []byte{learnModeDone, 0x04}}
	if _, action := e.classify(f); action != dispatchForward {
		t.Fatalf("action = %v, want dispatchForward", action)
	}

	e.nonces.mu.Lock()
	inLen := len(e.nonces.incoming[4])
	e.nonces.mu.Unlock()
	if inLen != 1 {
		t.Fatalf("a non-started learn-mode callback must not flush nonces, incoming = %d, want 1", inLen)
	}
}

func TestHandleNetworkKeySetUpdatesSecurityAndPersists(t *testing.T) {
	e := newTestEngine(t)
	store := &fakeConfigStore{}
	e.config.Store = store

	newKey := bytes.Repeat([]byte{0x11}, 16)
	e.handleNetworkKeySet(InboundFrame{Payload: newKey})

	if !bytes.Equal(e.networkKey, newKey) {
		t.Fatalf("network key not updated: got %x", e.networkKey)
	}
	wantKeys, err := deriveSecurityKeys(newKey)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !bytes.Equal(e.security.encKey, wantKeys.encKey) || !bytes.Equal(e.security.authKey, wantKeys.authKey) {
		t.Fatalf("derived security keys not refreshed to match new network key")
	}
	if !bytes.Equal(store.saved, newKey) {
		t.Fatalf("config store did not receive the new key: got %x", store.saved)
	}
}

func TestHandleNetworkKeySetRejectsShortPayload(t *testing.T) {
	e := newTestEngine(t)
	store := &fakeConfigStore{}
	e.config.Store = store
	originalKey := append([]byte(nil), e.networkKey...)

	e.handleNetworkKeySet(InboundFrame{Payload: []byte{0x01, 0x02, 0x03}})

	if !bytes.Equal(e.networkKey, originalKey) {
		t.Fatalf("network key must not change on a malformed NetworkKeySet, got %x", e.networkKey)
	}
	if store.saved != nil {
		t.Fatalf("config store must not be touched on a malformed NetworkKeySet")
	}
}

// TestDecryptSecureEnvelopeRoundTrip drives ladder item 2's decrypt/verify
// path directly, seeding the incoming-nonce cache the way issueAndSendNonceReport
// would, then building the envelope a remote node would send back using that
// nonce (spec.md §8 scenario 2).
func TestDecryptSecureEnvelopeRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	e.homeNodeID = 0x01
	const sourceNode byte = 0x09

	receiverNonce, err := e.nonces.issue(sourceNode)
	if err != nil {
		t.Fatalf("issue nonce: %v", err)
	}

	senderIV := bytes.Repeat([]byte{0x5a}, 8)
	innerCommand := []byte{0x25, 0x03, 0x01} // arbitrary class/command/payload

	iv := append(append([]byte(nil), senderIV...), receiverNonce[:]...)
	cipherText, err := ofbKeystream(e.security.encKey, iv, innerCommand)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	tag, err := authTag(e.security.authKey, senderIV, byte(len(cipherText)), sourceNode, e.homeNodeID, innerCommand, receiverNonce[0])
	if err != nil {
		t.Fatalf("auth tag: %v", err)
	}

	envelope := append([]byte(nil), senderIV...)
	envelope = append(envelope, cipherText...)
	envelope = append(envelope, receiverNonce[0])
	envelope = append(envelope, tag...)

	src := sourceNode
	inner, node, ok := e.decryptSecureEnvelope(InboundFrame{SourceNode: &src, Payload: envelope})
	if !ok {
		t.Fatalf("decryptSecureEnvelope failed to authenticate a correctly-built envelope")
	}
	if node != sourceNode {
		t.Fatalf("node = %v, want %v", node, sourceNode)
	}
	if inner.ClassID == nil || *inner.ClassID != innerCommand[0] {
		t.Fatalf("class id = %v, want 0x%02x", inner.ClassID, innerCommand[0])
	}
	if inner.CommandID == nil || *inner.CommandID != innerCommand[1] {
		t.Fatalf("command id = %v, want 0x%02x", inner.CommandID, innerCommand[1])
	}
	if !bytes.Equal(inner.Payload, innerCommand[2:]) {
		t.Fatalf("inner payload = %x, want %x", inner.Payload, innerCommand[2:])
	}

	// The nonce must be single-use: a replayed envelope referencing the
	// same nonce id must fail once it has been consumed.
	if _, _, ok := e.decryptSecureEnvelope(InboundFrame{SourceNode: &src, Payload: envelope}); ok {
		t.Fatalf("a consumed nonce must not authenticate a second envelope")
	}
}

func TestDecryptSecureEnvelopeRejectsTamperedTag(t *testing.T) {
	e := newTestEngine(t)
	e.homeNodeID = 0x01
	const sourceNode byte = 0x09

	receiverNonce, err := e.nonces.issue(sourceNode)
	if err != nil {
		t.Fatalf("issue nonce: %v", err)
	}

	senderIV := bytes.Repeat([]byte{0x5a}, 8)
	innerCommand := []byte{0x25, 0x03, 0x01}
	iv := append(append([]byte(nil), senderIV...), receiverNonce[:]...)
	cipherText, err := ofbKeystream(e.security.encKey, iv, innerCommand)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	tag, err := authTag(e.security.authKey, senderIV, byte(len(cipherText)), sourceNode, e.homeNodeID, innerCommand, receiverNonce[0])
	if err != nil {
		t.Fatalf("auth tag: %v", err)
	}
	tag[0] ^= 0xff // corrupt the tag

	envelope := append([]byte(nil), senderIV...)
	envelope = append(envelope, cipherText...)
	envelope = append(envelope, receiverNonce[0])
	envelope = append(envelope, tag...)

	src := sourceNode
	if _, _, ok := e.decryptSecureEnvelope(InboundFrame{SourceNode: &src, Payload: envelope}); ok {
		t.Fatalf("a tampered authentication tag must not be accepted")
	}
}

func TestDecryptSecureEnvelopeRejectsUnknownNonce(t *testing.T) {
	e := newTestEngine(t)
	e.homeNodeID = 0x01
	const sourceNode byte = 0x09

	// No nonce was issued, so any envelope referencing one must fail.
	senderIV := bytes.Repeat([]byte{0x5a}, 8)
	envelope := append([]byte(nil), senderIV...)
	envelope = append(envelope, 0x00, 0x00) // stand-in ciphertext
	envelope = append(envelope, 0x01)       // nonce id nobody issued
	envelope = append(envelope, make([]byte, 8)...)

	src := sourceNode
	if _, _, ok := e.decryptSecureEnvelope(InboundFrame{SourceNode: &src, Payload: envelope}); ok {
		t.Fatalf("decryptSecureEnvelope must reject an envelope referencing an unissued nonce")
	}
}
