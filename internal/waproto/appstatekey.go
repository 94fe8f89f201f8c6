// Package waproto holds the protocol record types that ride through the
// key store as opaque bytes and are decoded only after retrieval.
package waproto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// AppStateSyncKeyFingerprint identifies the device set a sync key covers.
type AppStateSyncKeyFingerprint struct {
	RawID         uint32   `json:"rawId"`
	CurrentIndex  uint32   `json:"currentIndex"`
	DeviceIndexes []uint32 `json:"deviceIndexes"`
}

// AppStateSyncKeyData is the typed record behind the app-state-sync-key
// category. The store keeps the wire bytes; this type is the post-retrieval
// decode.
type AppStateSyncKeyData struct {
	KeyData     []byte                      `json:"keyData"`
	Fingerprint *AppStateSyncKeyFingerprint `json:"fingerprint"`
	Timestamp   int64                       `json:"timestamp"`
}

// Marshal encodes the record in protobuf wire format.
func (d *AppStateSyncKeyData) Marshal() []byte {
	var b []byte
	if len(d.KeyData) > 0 {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, d.KeyData)
	}
	if d.Fingerprint != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, d.Fingerprint.marshal())
	}
	if d.Timestamp != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d.Timestamp))
	}
	return b
}

func (f *AppStateSyncKeyFingerprint) marshal() []byte {
	var b []byte
	if f.RawID != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(f.RawID))
	}
	if f.CurrentIndex != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(f.CurrentIndex))
	}
	if len(f.DeviceIndexes) > 0 {
		var packed []byte
		for _, v := range f.DeviceIndexes {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	return b
}

// UnmarshalAppStateSyncKeyData decodes a record from protobuf wire format.
func UnmarshalAppStateSyncKeyData(b []byte) (*AppStateSyncKeyData, error) {
	d := &AppStateSyncKeyData{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("waproto: app state sync key: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("waproto: key data: %w", protowire.ParseError(n))
			}
			d.KeyData = append([]byte(nil), v...)
			b = b[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("waproto: fingerprint: %w", protowire.ParseError(n))
			}
			fp, err := unmarshalFingerprint(v)
			if err != nil {
				return nil, err
			}
			d.Fingerprint = fp
			b = b[n:]
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("waproto: timestamp: %w", protowire.ParseError(n))
			}
			d.Timestamp = int64(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("waproto: field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return d, nil
}

func unmarshalFingerprint(b []byte) (*AppStateSyncKeyFingerprint, error) {
	f := &AppStateSyncKeyFingerprint{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("waproto: fingerprint tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("waproto: raw id: %w", protowire.ParseError(n))
			}
			f.RawID = uint32(v)
			b = b[n:]
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("waproto: current index: %w", protowire.ParseError(n))
			}
			f.CurrentIndex = uint32(v)
			b = b[n:]
		case num == 3 && typ == protowire.BytesType:
			// Packed repeated uint32.
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("waproto: device indexes: %w", protowire.ParseError(n))
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return nil, fmt.Errorf("waproto: device index: %w", protowire.ParseError(m))
				}
				f.DeviceIndexes = append(f.DeviceIndexes, uint32(v))
				packed = packed[m:]
			}
			b = b[n:]
		case num == 3 && typ == protowire.VarintType:
			// Unpacked encoding is legal for repeated scalars.
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("waproto: device index: %w", protowire.ParseError(n))
			}
			f.DeviceIndexes = append(f.DeviceIndexes, uint32(v))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("waproto: fingerprint field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return f, nil
}
