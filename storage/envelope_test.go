package storage

import (
	"bytes"
	"testing"

	"github.com/skwf/portal/internal/util"
)

func TestEnvelope(t *testing.T) {
	key, _ := util.NewAESKey()
	plain := []byte(`{"user":{"_id":"u1"},"token":"t1"}`)
	aad := []byte("session:user")

	env, err := SealRecord(key, plain, aad)
	if err != nil {
		t.Fatalf("SealRecord failed: %v", err)
	}
	if env.Ver != 1 || env.Scheme != SchemeSealed {
		t.Errorf("unexpected envelope header: ver=%d scheme=%s", env.Ver, env.Scheme)
	}
	if bytes.Contains(env.Data, []byte("token")) {
		t.Error("sealed data should not contain plaintext")
	}

	decrypted, err := OpenRecord(key, env, aad)
	if err != nil {
		t.Fatalf("OpenRecord failed: %v", err)
	}
	if !bytes.Equal(plain, decrypted) {
		t.Errorf("expected %s, got %s", plain, decrypted)
	}

	t.Run("WrongAAD", func(t *testing.T) {
		if _, err := OpenRecord(key, env, []byte("session:other")); err == nil {
			t.Error("expected error with wrong AAD, got nil")
		}
	})

	t.Run("WrongKey", func(t *testing.T) {
		wrongKey, _ := util.NewAESKey()
		if _, err := OpenRecord(wrongKey, env, aad); err == nil {
			t.Error("expected error with wrong key, got nil")
		}
	})

	t.Run("MissingKey", func(t *testing.T) {
		if _, err := OpenRecord(nil, env, aad); err == nil {
			t.Error("expected error opening a sealed envelope without a key")
		}
	})

	t.Run("Plain", func(t *testing.T) {
		p := PlainRecord(plain)
		got, err := OpenRecord(nil, p, nil)
		if err != nil {
			t.Fatalf("OpenRecord(plain) failed: %v", err)
		}
		if !bytes.Equal(plain, got) {
			t.Errorf("expected %s, got %s", plain, got)
		}
		got[0] = 'X'
		if p.Data[0] == 'X' {
			t.Error("OpenRecord should return a copy of plain data")
		}
	})

	t.Run("UnsupportedVersion", func(t *testing.T) {
		badEnv := *env
		badEnv.Ver = 99
		if _, err := OpenRecord(key, &badEnv, aad); err == nil {
			t.Error("expected error with unsupported version, got nil")
		}
	})

	t.Run("UnsupportedScheme", func(t *testing.T) {
		badEnv := *env
		badEnv.Scheme = "unknown"
		if _, err := OpenRecord(key, &badEnv, aad); err == nil {
			t.Error("expected error with unsupported scheme, got nil")
		}
	})
}
