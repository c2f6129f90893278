package zwave

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// Key-derivation constants (spec.md §6): the encryption key and the
// authentication (CBC-MAC) key are each the network key run once through
// AES in ECB mode against a fixed all-0xAA or all-0x55 block.
var (
	encKeyConstant  = [aes.BlockSize]byte{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa}
	authKeyConstant = [aes.BlockSize]byte{0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55}
)

// securityKeys holds the two derived AES-128 keys used for a given network
// key. Recomputed whenever the network key is replaced (NetworkKeySet).
type securityKeys struct {
	encKey  []byte
	authKey []byte
}

// ecbEncryptBlock runs one AES block of plaintext through the cipher keyed
// by networkKey; used only for key derivation, never for message bodies.
func ecbEncryptBlock(networkKey []byte, block [aes.BlockSize]byte) ([]byte, error) {
	bc, err := aes.NewCipher(networkKey)
	if err != nil {
		return nil, fmt.Errorf("zwave: derive key: %w", err)
	}
	out := make([]byte, aes.BlockSize)
	bc.Encrypt(out, block[:])
	return out, nil
}

// deriveSecurityKeys computes the encryption and authentication keys from
// a 16-byte network key (spec.md §6).
func deriveSecurityKeys(networkKey []byte) (securityKeys, error) {
	enc, err := ecbEncryptBlock(networkKey, encKeyConstant)
	if err != nil {
		return securityKeys{}, err
	}
	auth, err := ecbEncryptBlock(networkKey, authKeyConstant)
	if err != nil {
		return securityKeys{}, err
	}
	return securityKeys{encKey: enc, authKey: auth}, nil
}

// ofbKeystream runs plaintext through AES-OFB, keyed by encKey, using iv as
// the 16-byte OFB initialisation vector. OFB is symmetric: the same call
// encrypts or decrypts.
func ofbKeystream(encKey, iv, plaintext []byte) ([]byte, error) {
	bc, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("zwave: ofb cipher: %w", err)
	}
	stream := cipher.NewOFB(bc, iv)
	out := make([]byte, len(plaintext))
	stream.XORKeyStream(out, plaintext)
	return out, nil
}

// authTag computes the 8-byte CBC-MAC authentication tag over the fields
// the security command class protects: sender-nonce IV, receiver-nonce id,
// sequence/security-header byte, sender node, receiver node, and the
// (unencrypted) command bytes, zero-padded to a whole number of AES blocks
// (spec.md §6; stdlib has no raw CBC-MAC primitive, so it is built from
// cipher.NewCBCEncrypter over an all-zero IV, keeping only the final
// block's first 8 bytes).
func authTag(authKey, iv []byte, header byte, senderNode, receiverNode byte, command []byte, receiverNonceID byte) ([]byte, error) {
	bc, err := aes.NewCipher(authKey)
	if err != nil {
		return nil, fmt.Errorf("zwave: cbc-mac cipher: %w", err)
	}

	msg := make([]byte, 0, len(iv)+3+len(command)+1)
	msg = append(msg, header)
	msg = append(msg, iv...)
	msg = append(msg, senderNode, receiverNode, byte(len(command)))
	msg = append(msg, command...)
	msg = append(msg, receiverNonceID)
	msg = padToBlock(msg)

	zeroIV := make([]byte, aes.BlockSize)
	mode := cipher.NewCBCEncrypter(bc, zeroIV)
	out := make([]byte, len(msg))
	mode.CryptBlocks(out, msg)

	tag := out[len(out)-aes.BlockSize:]
	return append([]byte(nil), tag[:8]...), nil
}

// padToBlock zero-pads b to a whole number of AES blocks.
func padToBlock(b []byte) []byte {
	rem := len(b) % aes.BlockSize
	if rem == 0 {
		return b
	}
	return append(b, make([]byte, aes.BlockSize-rem)...)
}
