package storage

import (
	"fmt"

	"github.com/skwf/portal/internal/util"
)

const (
	// SchemePlain marks an envelope whose Data is the record body as-is.
	SchemePlain = "json"
	// SchemeSealed marks an envelope whose Data is AES-256-GCM ciphertext.
	SchemeSealed = "aes256gcm"
)

// Envelope is a stored record body together with how it was encoded.
type Envelope struct {
	Ver    int    `json:"ver"`
	Scheme string `json:"scheme"`
	Nonce  []byte `json:"nonce,omitempty"`
	Data   []byte `json:"data"`
}

// PlainRecord wraps data in an unsealed envelope.
func PlainRecord(data []byte) *Envelope {
	return &Envelope{Ver: 1, Scheme: SchemePlain, Data: util.CopyBytes(data)}
}

// SealRecord encrypts plaintext into an Envelope using the given record key and AAD.
func SealRecord(recordKey, plaintext, aad []byte) (*Envelope, error) {
	cipher, err := util.EncryptAESWithAAD(plaintext, recordKey, aad)
	if err != nil {
		return nil, err
	}

	// util.EncryptAESWithAAD returns nonce || ciphertext.
	return &Envelope{
		Ver:    1,
		Scheme: SchemeSealed,
		Nonce:  cipher[:12],
		Data:   cipher[12:],
	}, nil
}

// OpenRecord returns the record body held by envelope. Plain envelopes are
// returned as-is; sealed envelopes require the record key they were sealed with.
func OpenRecord(recordKey []byte, envelope *Envelope, aad []byte) ([]byte, error) {
	if envelope == nil {
		return nil, fmt.Errorf("nil envelope")
	}
	if envelope.Ver != 1 {
		return nil, fmt.Errorf("unsupported envelope version: %d", envelope.Ver)
	}
	switch envelope.Scheme {
	case SchemePlain:
		return util.CopyBytes(envelope.Data), nil
	case SchemeSealed:
		if len(recordKey) == 0 {
			return nil, fmt.Errorf("sealed envelope requires a record key")
		}
		// Reconstruct nonce || ciphertext without mutating envelope fields.
		full := make([]byte, len(envelope.Nonce)+len(envelope.Data))
		copy(full, envelope.Nonce)
		copy(full[len(envelope.Nonce):], envelope.Data)
		return util.DecryptAESWithAAD(full, recordKey, aad)
	default:
		return nil, fmt.Errorf("unsupported envelope scheme: %s", envelope.Scheme)
	}
}
