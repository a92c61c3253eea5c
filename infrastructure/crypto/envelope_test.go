package crypto

import (
	"bytes"
	"testing"
)

func TestDeriveSigningKeyDeterministic(t *testing.T) {
	secret := []byte("a-shared-secret-value")
	k1, err := DeriveSigningKey(secret, []byte("agent-1"), "stp-envelope-v1")
	if err != nil {
		t.Fatalf("DeriveSigningKey() error = %v", err)
	}
	k2, err := DeriveSigningKey(secret, []byte("agent-1"), "stp-envelope-v1")
	if err != nil {
		t.Fatalf("DeriveSigningKey() error = %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Error("expected deterministic derivation for identical inputs")
	}
}

func TestDeriveSigningKeyDiffersBySubject(t *testing.T) {
	secret := []byte("a-shared-secret-value")
	k1, _ := DeriveSigningKey(secret, []byte("agent-1"), "stp-envelope-v1")
	k2, _ := DeriveSigningKey(secret, []byte("agent-2"), "stp-envelope-v1")
	if bytes.Equal(k1, k2) {
		t.Error("expected different subjects to derive different keys")
	}
}

func TestDeriveSigningKeyRejectsEmptySecret(t *testing.T) {
	if _, err := DeriveSigningKey(nil, []byte("agent-1"), "info"); err == nil {
		t.Error("expected error for empty master secret")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	key := []byte("a-32-byte-ish-signing-key-value!")
	data := []byte(`{"packet":"payload"}`)

	tag := Sign(key, data)
	if !Verify(key, data, tag) {
		t.Fatal("expected Verify to accept a freshly signed tag")
	}
	if Verify(key, append(data, 'x'), tag) {
		t.Fatal("expected Verify to reject tampered data")
	}
	if Verify([]byte("wrong-key"), data, tag) {
		t.Fatal("expected Verify to reject the wrong key")
	}
}
