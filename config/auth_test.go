package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"

	"micli/xiaoai"
)

func testAuthBlob() xiaoai.Auth {
	return xiaoai.Auth{
		UserID:       987,
		SSecurity:    "sec",
		ServiceToken: "tok",
		DeviceID:     "client-device",
	}
}

func TestAuthStorePlainRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	store := NewAuthStore(path, nil)

	if store.Exists() {
		t.Error("Exists() = true before save")
	}
	if err := store.Save(testAuthBlob()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !store.Exists() {
		t.Error("Exists() = false after save")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("auth file permissions = %o, want 0600", perm)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != testAuthBlob() {
		t.Errorf("Load() = %+v, want %+v", loaded, testAuthBlob())
	}
}

func TestAuthStoreMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	store := NewAuthStore(path, nil)

	_, err := store.Load()
	if !errors.Is(err, ErrCredentialsMissing) {
		t.Fatalf("Load() error = %v, want ErrCredentialsMissing", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q does not name the auth file path", err)
	}
}

func TestAuthStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := NewAuthStore(path, nil).Load()
	if !errors.Is(err, ErrCredentialsInvalid) {
		t.Fatalf("Load() error = %v, want ErrCredentialsInvalid", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q does not name the auth file path", err)
	}
}

func writeTestSSHKey(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "micli-test")
	if err != nil {
		t.Fatalf("marshaling key: %v", err)
	}
	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatal(err)
	}
	return keyPath
}

func TestAuthStoreEncryptedRoundTrip(t *testing.T) {
	keyPath := writeTestSSHKey(t)

	enc := NewEncryptionManager(keyPath)
	if err := enc.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "auth.enc")
	store := NewAuthStore(path, enc)
	if err := store.Save(testAuthBlob()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// The blob on disk must not be readable as plain JSON.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "serviceToken") {
		t.Error("encrypted auth file contains plaintext fields")
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != testAuthBlob() {
		t.Errorf("Load() = %+v, want %+v", loaded, testAuthBlob())
	}
}

func TestEncryptionManagerWrongKeyFails(t *testing.T) {
	encA := NewEncryptionManager(writeTestSSHKey(t))
	if err := encA.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	encB := NewEncryptionManager(writeTestSSHKey(t))
	if err := encB.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	ciphertext, err := encA.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if _, err := encB.Decrypt(ciphertext); err == nil {
		t.Error("Decrypt() with the wrong key succeeded")
	}
}

func TestExpandPath(t *testing.T) {
	home := GetHomeDir()
	tests := []struct {
		in   string
		want string
	}{
		{"~/foo", filepath.Join(home, "foo")},
		{"/abs/path", "/abs/path"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
