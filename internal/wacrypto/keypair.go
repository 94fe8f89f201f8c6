// Package wacrypto provides the key-material primitives the credential
// bootstrap needs: Curve25519 key pairs, XEd25519 signatures, signed
// prekey construction and registration-id generation.
package wacrypto

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"github.com/gwillem/wa-authstore/internal/wire"
)

// KeyPair is a Curve25519 key pair. The private key is clamped per RFC 7748.
type KeyPair struct {
	Private wire.Buffer `json:"private"`
	Public  wire.Buffer `json:"public"`
}

// GenerateKeyPair returns a fresh Curve25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	priv := make([]byte, 32)
	if _, err := rand.Read(priv); err != nil {
		return nil, fmt.Errorf("wacrypto: generate key pair: %w", err)
	}
	clamp(priv)
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("wacrypto: derive public key: %w", err)
	}
	return &KeyPair{Private: priv, Public: pub}, nil
}

// SharedSecret computes the X25519 agreement with a remote public key.
func (kp *KeyPair) SharedSecret(theirPublic []byte) ([]byte, error) {
	secret, err := curve25519.X25519(kp.Private, theirPublic)
	if err != nil {
		return nil, fmt.Errorf("wacrypto: shared secret: %w", err)
	}
	return secret, nil
}

func clamp(k []byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

// keyBundleType prefixes the public key in the signed prekey signature
// message, matching the protocol's serialized key type marker.
const keyBundleType = 0x05

// SignedPreKey is a prekey pair signed by the identity key.
type SignedPreKey struct {
	KeyPair   *KeyPair    `json:"keyPair"`
	Signature wire.Buffer `json:"signature"`
	KeyID     uint32      `json:"keyId"`
}

// GenerateSignedPreKey generates a fresh key pair and signs its public key
// with the identity private key.
func GenerateSignedPreKey(identity *KeyPair, keyID uint32) (*SignedPreKey, error) {
	pair, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	msg := make([]byte, 0, 1+len(pair.Public))
	msg = append(msg, keyBundleType)
	msg = append(msg, pair.Public...)
	sig, err := Sign(identity.Private, msg)
	if err != nil {
		return nil, fmt.Errorf("wacrypto: sign prekey: %w", err)
	}
	return &SignedPreKey{KeyPair: pair, Signature: sig, KeyID: keyID}, nil
}

// VerifySignedPreKey checks a signed prekey against the identity public key.
func VerifySignedPreKey(identityPublic []byte, spk *SignedPreKey) bool {
	msg := make([]byte, 0, 1+len(spk.KeyPair.Public))
	msg = append(msg, keyBundleType)
	msg = append(msg, spk.KeyPair.Public...)
	return Verify(identityPublic, msg, spk.Signature)
}

// GenerateRegistrationID generates a random 14-bit registration ID (1-16384).
func GenerateRegistrationID() uint32 {
	var buf [4]byte
	rand.Read(buf[:])
	return binary.BigEndian.Uint32(buf[:])&0x3FFF + 1
}
