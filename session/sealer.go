package session

import (
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/skwf/portal/internal/util"
	"github.com/skwf/portal/storage"
)

var (
	sealSalt = []byte("portal-session-v1")
	sealInfo = []byte("session-record")
)

// sealer encrypts the stored session record under a key derived from a
// configured secret. A nil sealer stores records as plain JSON.
type sealer struct {
	key *memguard.Enclave
}

func newSealer(secret string) (*sealer, error) {
	key, err := util.DeriveKey(secret, sealSalt, sealInfo)
	if err != nil {
		return nil, fmt.Errorf("deriving session key: %w", err)
	}
	// NewEnclave wipes key.
	return &sealer{key: memguard.NewEnclave(key)}, nil
}

func (s *sealer) seal(plaintext, aad []byte) (*storage.Envelope, error) {
	if s == nil {
		return storage.PlainRecord(plaintext), nil
	}
	buf, err := s.key.Open()
	if err != nil {
		return nil, fmt.Errorf("opening session key enclave: %w", err)
	}
	defer buf.Destroy()
	return storage.SealRecord(buf.Bytes(), plaintext, aad)
}

func (s *sealer) open(env *storage.Envelope, aad []byte) ([]byte, error) {
	if s == nil || env == nil || env.Scheme != storage.SchemeSealed {
		return storage.OpenRecord(nil, env, aad)
	}
	buf, err := s.key.Open()
	if err != nil {
		return nil, fmt.Errorf("opening session key enclave: %w", err)
	}
	defer buf.Destroy()
	return storage.OpenRecord(buf.Bytes(), env, aad)
}
