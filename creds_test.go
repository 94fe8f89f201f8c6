package waauth

import (
	"encoding/base64"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/gwillem/wa-authstore/internal/wacrypto"
	"github.com/gwillem/wa-authstore/internal/wire"
)

func TestNewCredentials(t *testing.T) {
	c, err := NewCredentials()
	if err != nil {
		t.Fatal(err)
	}

	if c.Registered {
		t.Error("fresh credentials must not be registered")
	}
	if c.NextPreKeyID != 1 {
		t.Errorf("nextPreKeyId: got %d, want 1", c.NextPreKeyID)
	}
	if c.FirstUnuploadedPreKeyID != 1 {
		t.Errorf("firstUnuploadedPreKeyId: got %d, want 1", c.FirstUnuploadedPreKeyID)
	}
	if c.AccountSyncCounter != 0 {
		t.Errorf("accountSyncCounter: got %d, want 0", c.AccountSyncCounter)
	}
	if c.RegistrationID < 1 || c.RegistrationID > 16384 {
		t.Errorf("registration id %d out of range", c.RegistrationID)
	}
	if c.PairingCode != "" || c.LastPropHash != "" || c.RoutingInfo != nil {
		t.Error("optional fields must start absent")
	}
	if c.ProcessedHistoryMessages == nil || len(c.ProcessedHistoryMessages) != 0 {
		t.Error("processed history markers must start empty")
	}

	if c.SignedPreKey.KeyID != 1 {
		t.Errorf("signed prekey id: got %d, want 1", c.SignedPreKey.KeyID)
	}
	if !wacrypto.VerifySignedPreKey(c.SignedIdentityKey.Public, c.SignedPreKey) {
		t.Error("signed prekey signature invalid")
	}

	if _, err := uuid.Parse(c.PhoneID); err != nil {
		t.Errorf("phone id %q is not a UUID: %v", c.PhoneID, err)
	}
	adv, err := base64.StdEncoding.DecodeString(c.AdvSecretKey)
	if err != nil || len(adv) != 32 {
		t.Errorf("adv secret: len %d, err %v", len(adv), err)
	}
	dev, err := base64.RawURLEncoding.DecodeString(c.DeviceID)
	if err != nil || len(dev) != 16 {
		t.Errorf("device id: len %d, err %v", len(dev), err)
	}
	if len(c.IdentityID) != 20 {
		t.Errorf("identity id: len %d, want 20", len(c.IdentityID))
	}
	if len(c.BackupToken) != 20 {
		t.Errorf("backup token: len %d, want 20", len(c.BackupToken))
	}
}

func TestNewCredentialsDistinctRandomness(t *testing.T) {
	a, err := NewCredentials()
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewCredentials()
	if err != nil {
		t.Fatal(err)
	}

	if reflect.DeepEqual(a.NoiseKey, b.NoiseKey) {
		t.Error("noise keys repeat across cold starts")
	}
	if reflect.DeepEqual(a.SignedIdentityKey, b.SignedIdentityKey) {
		t.Error("identity keys repeat across cold starts")
	}
	if reflect.DeepEqual(a.PairingEphemeralKeyPair, b.PairingEphemeralKeyPair) {
		t.Error("pairing ephemeral keys repeat across cold starts")
	}
	if a.AdvSecretKey == b.AdvSecretKey {
		t.Error("adv secrets repeat across cold starts")
	}
	if a.PhoneID == b.PhoneID || a.DeviceID == b.DeviceID {
		t.Error("device identifiers repeat across cold starts")
	}
	if reflect.DeepEqual(a.IdentityID, b.IdentityID) || reflect.DeepEqual(a.BackupToken, b.BackupToken) {
		t.Error("random tokens repeat across cold starts")
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	in, err := NewCredentials()
	if err != nil {
		t.Fatal(err)
	}
	in.PairingCode = "ABCD-1234"
	in.RoutingInfo = wire.Buffer{8, 1}

	data, err := wire.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}

	var out Credentials
	if err := wire.Decode(data, &out); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(&out, in) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", &out, in)
	}
}
