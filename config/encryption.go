package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// EncryptionManager encrypts the auth blob with an AES-256 key derived from
// an SSH private key. The derivation is deterministic: the same SSH key
// always yields the same AES key, so no extra key material has to be stored.
type EncryptionManager struct {
	sshKeyPath string
	passphrase string
	aesKey     []byte
}

// NewEncryptionManager creates a manager for the given SSH private key.
func NewEncryptionManager(sshKeyPath string) *EncryptionManager {
	return &EncryptionManager{sshKeyPath: sshKeyPath}
}

// SetPassphrase sets the passphrase for an encrypted SSH key. Must be called
// before Initialize.
func (e *EncryptionManager) SetPassphrase(passphrase string) {
	e.passphrase = passphrase
}

// Initialize loads the SSH key and derives the AES key.
func (e *EncryptionManager) Initialize() error {
	encrypted, err := IsSSHKeyEncrypted(e.sshKeyPath)
	if err != nil {
		return fmt.Errorf("failed to check SSH key: %w", err)
	}

	if encrypted && e.passphrase == "" {
		return fmt.Errorf("SSH key %s is encrypted - passphrase required", e.sshKeyPath)
	}

	var signer ssh.Signer
	if encrypted {
		signer, err = loadSSHKeyWithPassphrase(e.sshKeyPath, e.passphrase)
	} else {
		signer, err = loadSSHKey(e.sshKeyPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load SSH key: %w", err)
	}

	aesKey, err := deriveAESKey(signer)
	if err != nil {
		return fmt.Errorf("failed to derive encryption key: %w", err)
	}
	e.aesKey = aesKey
	return nil
}

// Encrypt encrypts plaintext with AES-256-GCM.
func (e *EncryptionManager) Encrypt(plaintext []byte) ([]byte, error) {
	if e.aesKey == nil {
		return nil, fmt.Errorf("encryption manager not initialized")
	}
	return encryptAESGCM(plaintext, e.aesKey)
}

// Decrypt decrypts data produced by Encrypt.
func (e *EncryptionManager) Decrypt(ciphertext []byte) ([]byte, error) {
	if e.aesKey == nil {
		return nil, fmt.Errorf("encryption manager not initialized")
	}
	return decryptAESGCM(ciphertext, e.aesKey)
}

// IsSSHKeyEncrypted checks if an SSH private key is passphrase-protected
// without attempting to decrypt it.
func IsSSHKeyEncrypted(keyPath string) (bool, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return false, fmt.Errorf("failed to read SSH key: %w", err)
	}

	_, err = ssh.ParsePrivateKey(keyData)
	if err == nil {
		return false, nil
	}

	if strings.Contains(err.Error(), "encrypted") ||
		strings.Contains(err.Error(), "passphrase") {
		return true, nil
	}

	return false, fmt.Errorf("invalid SSH key: %w", err)
}

func loadSSHKey(keyPath string) (ssh.Signer, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH key: %w", err)
	}
	return signer, nil
}

func loadSSHKeyWithPassphrase(keyPath, passphrase string) (ssh.Signer, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key: %w", err)
	}

	signer, err := ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH key (wrong passphrase?): %w", err)
	}
	return signer, nil
}

// deriveAESKey derives a 32-byte AES-256 key from an SSH key signature over
// a fixed message.
func deriveAESKey(signer ssh.Signer) ([]byte, error) {
	message := []byte("micli-auth-key-derivation-v1")

	signature, err := signer.Sign(rand.Reader, message)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}

	hash := sha256.Sum256(signature.Blob)
	return hash[:], nil
}

// encryptAESGCM encrypts data using AES-256-GCM.
// Format: [nonce (12 bytes)][ciphertext + tag]
func encryptAESGCM(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decryptAESGCM decrypts data produced by encryptAESGCM.
func decryptAESGCM(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce := ciphertext[:nonceSize]
	plaintext, err := gcm.Open(nil, nonce, ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}
