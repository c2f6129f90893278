package zwave

import "time"

// SecurityNonceGet requests a fresh nonce from target so we may later
// encrypt a message toward it (spec.md §4.7).
func (e *Engine) SecurityNonceGet(target byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityNonce, ccSecurity, secNonceGet, nil)
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// SecuritySchemeGet probes the security scheme a node supports, the first
// step of the Security inclusion handshake.
func (e *Engine) SecuritySchemeGet(target byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PrioritySecurity, ccSecurity, secSchemeGet, []byte{0x00})
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccSecurity, secSchemeReport
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// SecuritySchemeInherit replies to a SchemeGet during replication.
func (e *Engine) SecuritySchemeInherit(target byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PrioritySecurity, ccSecurity, secSchemeInherit, []byte{0x00})
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// SecurityNetworkKeySet transmits the 16-byte network key to target during
// inclusion; this message must go out unencrypted (spec.md §4.7, §9).
func (e *Engine) SecurityNetworkKeySet(target byte, key []byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	if len(key) != 16 {
		return nil, ErrInternalInvariant
	}
	m := newCommandClassMessage(target, PrioritySecurity, ccSecurity, secNetworkKeySet, key)
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// SecurityNetworkKeyVerify is sent encrypted, under the just-set key, to
// confirm the included node derived the same key material.
func (e *Engine) SecurityNetworkKeyVerify(target byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PrioritySecurity, ccSecurity, secNetworkKeyVerify, nil)
	m.IsSecure = true
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// SecurityCommandsSupportedGet asks a node which command classes it only
// accepts over the secure channel.
func (e *Engine) SecurityCommandsSupportedGet(target byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PrioritySecurity, ccSecurity, secCommandsSupportedGet, nil)
	m.IsSecure = true
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccSecurity, secCommandsSupportedReport
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}
