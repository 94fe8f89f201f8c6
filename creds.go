package waauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"

	"github.com/gwillem/wa-authstore/internal/wacrypto"
	"github.com/gwillem/wa-authstore/internal/wire"
)

// AccountSettings holds account-level flags carried in the credentials.
type AccountSettings struct {
	UnarchiveChats bool `json:"unarchiveChats"`
}

// MessageKey identifies a message within a chat.
type MessageKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// ProcessedHistoryMessage marks a history notification as already handled.
type ProcessedHistoryMessage struct {
	Key              MessageKey `json:"key"`
	MessageTimestamp int64      `json:"messageTimestamp"`
}

// Credentials is the identity and registration material of one session.
// It is owned by exactly one session and persisted only through Save.
type Credentials struct {
	NoiseKey                 *wacrypto.KeyPair         `json:"noiseKey"`
	PairingEphemeralKeyPair  *wacrypto.KeyPair         `json:"pairingEphemeralKeyPair"`
	SignedIdentityKey        *wacrypto.KeyPair         `json:"signedIdentityKey"`
	SignedPreKey             *wacrypto.SignedPreKey    `json:"signedPreKey"`
	RegistrationID           uint32                    `json:"registrationId"`
	AdvSecretKey             string                    `json:"advSecretKey"`
	ProcessedHistoryMessages []ProcessedHistoryMessage `json:"processedHistoryMessages"`
	NextPreKeyID             uint32                    `json:"nextPreKeyId"`
	FirstUnuploadedPreKeyID  uint32                    `json:"firstUnuploadedPreKeyId"`
	AccountSyncCounter       uint32                    `json:"accountSyncCounter"`
	AccountSettings          AccountSettings           `json:"accountSettings"`
	DeviceID                 string                    `json:"deviceId"`
	PhoneID                  string                    `json:"phoneId"`
	IdentityID               wire.Buffer               `json:"identityId"`
	Registered               bool                      `json:"registered"`
	BackupToken              wire.Buffer               `json:"backupToken"`

	// Set during pairing by the external client; absent until then.
	PairingCode  string      `json:"pairingCode,omitempty"`
	LastPropHash string      `json:"lastPropHash,omitempty"`
	RoutingInfo  wire.Buffer `json:"routingInfo,omitempty"`
}

// NewCredentials generates a fresh, internally consistent credential set
// for a session that has never been stored. Pure generation, no I/O; all
// key material comes from crypto/rand.
func NewCredentials() (*Credentials, error) {
	noise, err := wacrypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("waauth: noise key: %w", err)
	}
	identity, err := wacrypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("waauth: identity key: %w", err)
	}
	pairingEphemeral, err := wacrypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("waauth: pairing ephemeral key: %w", err)
	}
	signedPreKey, err := wacrypto.GenerateSignedPreKey(identity, 1)
	if err != nil {
		return nil, fmt.Errorf("waauth: signed prekey: %w", err)
	}

	return &Credentials{
		NoiseKey:                 noise,
		PairingEphemeralKeyPair:  pairingEphemeral,
		SignedIdentityKey:        identity,
		SignedPreKey:             signedPreKey,
		RegistrationID:           wacrypto.GenerateRegistrationID(),
		AdvSecretKey:             base64.StdEncoding.EncodeToString(randomBytes(32)),
		ProcessedHistoryMessages: []ProcessedHistoryMessage{},
		NextPreKeyID:             1,
		FirstUnuploadedPreKeyID:  1,
		AccountSyncCounter:       0,
		DeviceID:                 base64.RawURLEncoding.EncodeToString(randomBytes(16)),
		PhoneID:                  uuid.NewString(),
		IdentityID:               randomBytes(20),
		Registered:               false,
		BackupToken:              randomBytes(20),
	}, nil
}

func randomBytes(n int) wire.Buffer {
	buf := make([]byte, n)
	rand.Read(buf)
	return buf
}
