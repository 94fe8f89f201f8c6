package wacrypto

import (
	"bytes"
	"crypto/rand"
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"
	"filippo.io/edwards25519/field"
)

// XEd25519 signatures over Curve25519 keys. The Montgomery private scalar
// doubles as an Ed25519 scalar; the sign bit of the signer's Edwards
// public key is carried in the top bit of the signature's s half so the
// verifier can reconstruct the Edwards point from the Montgomery key.

// Sign produces a 64-byte XEd25519 signature of msg under the 32-byte
// Curve25519 private key.
func Sign(private, msg []byte) ([]byte, error) {
	if len(private) != 32 {
		return nil, fmt.Errorf("wacrypto: private key must be 32 bytes, got %d", len(private))
	}

	a, err := edwards25519.NewScalar().SetBytesWithClamping(private)
	if err != nil {
		return nil, fmt.Errorf("wacrypto: sign: %w", err)
	}
	// The Edwards public key keeps its natural sign bit here; the bit is
	// copied into the signature's last byte so the verifier can rebuild
	// the exact point from the sign-less Montgomery key.
	A := (&edwards25519.Point{}).ScalarBaseMult(a)
	ab := A.Bytes()
	signBit := ab[31] & 0x80

	var z [64]byte
	if _, err := rand.Read(z[:]); err != nil {
		return nil, fmt.Errorf("wacrypto: sign nonce: %w", err)
	}

	// Nonce r = SHA-512(pad ‖ a ‖ msg ‖ Z) mod L. The pad keeps XEd25519
	// nonces out of the plain Ed25519 hash domain.
	h := sha512.New()
	pad := make([]byte, 32)
	pad[0] = 0xFE
	for i := 1; i < 32; i++ {
		pad[i] = 0xFF
	}
	h.Write(pad)
	h.Write(a.Bytes())
	h.Write(msg)
	h.Write(z[:])
	r, err := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("wacrypto: sign: %w", err)
	}
	R := (&edwards25519.Point{}).ScalarBaseMult(r)
	rb := R.Bytes()

	h.Reset()
	h.Write(rb)
	h.Write(ab)
	h.Write(msg)
	k, err := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("wacrypto: sign: %w", err)
	}

	s := edwards25519.NewScalar().MultiplyAdd(k, a, r)

	sig := make([]byte, 64)
	copy(sig, rb)
	copy(sig[32:], s.Bytes())
	sig[63] |= signBit
	return sig, nil
}

// Verify checks a 64-byte XEd25519 signature of msg under the 32-byte
// Curve25519 public key.
func Verify(public, msg, sig []byte) bool {
	if len(public) != 32 || len(sig) != 64 {
		return false
	}

	// Map the Montgomery u coordinate to the Edwards y: y = (u-1)/(u+1).
	u, err := new(field.Element).SetBytes(public)
	if err != nil {
		return false
	}
	one := new(field.Element).One()
	num := new(field.Element).Subtract(u, one)
	den := new(field.Element).Add(u, one)
	y := num.Multiply(num, den.Invert(den))

	ab := y.Bytes()
	ab[31] |= sig[63] & 0x80
	A, err := (&edwards25519.Point{}).SetBytes(ab)
	if err != nil {
		return false
	}

	sb := make([]byte, 32)
	copy(sb, sig[32:])
	sb[31] &= 0x7F
	s, err := edwards25519.NewScalar().SetCanonicalBytes(sb)
	if err != nil {
		return false
	}

	h := sha512.New()
	h.Write(sig[:32])
	h.Write(ab)
	h.Write(msg)
	k, err := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	if err != nil {
		return false
	}

	// R' = s·B - k·A must reproduce the signature's R.
	minusA := (&edwards25519.Point{}).Negate(A)
	R := (&edwards25519.Point{}).VarTimeDoubleScalarBaseMult(k, minusA, s)
	return bytes.Equal(R.Bytes(), sig[:32])
}
