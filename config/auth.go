package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"micli/xiaoai"
)

// Sentinel errors for credential loading. Both are always wrapped with the
// auth file path so the user knows which file to fix.
var (
	// ErrCredentialsMissing means the auth file does not exist: the user
	// has to run login first.
	ErrCredentialsMissing = errors.New("no saved credentials")

	// ErrCredentialsInvalid means the auth file exists but could not be
	// read or decoded (corrupt, wrong key, stale format).
	ErrCredentialsInvalid = errors.New("credentials are invalid")
)

// AuthStore reads and writes the credential blob at a fixed path, optionally
// through an EncryptionManager.
type AuthStore struct {
	path string
	enc  *EncryptionManager
}

// NewAuthStore creates a store for the given path. enc may be nil for plain
// JSON storage.
func NewAuthStore(path string, enc *EncryptionManager) *AuthStore {
	return &AuthStore{path: path, enc: enc}
}

// NewAuthStoreFromConfig builds the store the settings describe, including
// the SSH-key encryption manager when configured. promptPassphrase is
// consulted only for a passphrase-protected SSH key; it may be nil when the
// caller knows the key is unprotected.
func NewAuthStoreFromConfig(cfg *Config, promptPassphrase func(keyPath string) (string, error)) (*AuthStore, error) {
	switch cfg.AuthEncryption {
	case "", "none":
		return NewAuthStore(cfg.AuthFile, nil), nil

	case "ssh_key":
		if cfg.SSHKeyPath == "" {
			return nil, fmt.Errorf("auth encryption is %q but ssh_key_path is not set", cfg.AuthEncryption)
		}
		enc := NewEncryptionManager(cfg.SSHKeyPath)

		encrypted, err := IsSSHKeyEncrypted(cfg.SSHKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to check SSH key: %w", err)
		}
		if encrypted {
			if promptPassphrase == nil {
				return nil, fmt.Errorf("SSH key %s is encrypted - passphrase required", cfg.SSHKeyPath)
			}
			passphrase, err := promptPassphrase(cfg.SSHKeyPath)
			if err != nil {
				return nil, err
			}
			enc.SetPassphrase(passphrase)
		}

		if err := enc.Initialize(); err != nil {
			return nil, fmt.Errorf("failed to initialize auth encryption: %w", err)
		}
		return NewAuthStore(cfg.AuthFile, enc), nil

	default:
		return nil, fmt.Errorf("unknown auth encryption method: %s", cfg.AuthEncryption)
	}
}

// Path returns the auth file path.
func (s *AuthStore) Path() string {
	return s.path
}

// Exists reports whether the auth file is present.
func (s *AuthStore) Exists() bool {
	return FileExists(s.path)
}

// Load reads, decrypts and decodes the auth blob.
func (s *AuthStore) Load() (xiaoai.Auth, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return xiaoai.Auth{}, fmt.Errorf("%w: %s (run `micli login`)", ErrCredentialsMissing, s.path)
		}
		return xiaoai.Auth{}, fmt.Errorf("%w: reading %s: %v", ErrCredentialsInvalid, s.path, err)
	}

	if s.enc != nil {
		data, err = s.enc.Decrypt(data)
		if err != nil {
			return xiaoai.Auth{}, fmt.Errorf("%w: decrypting %s: %v", ErrCredentialsInvalid, s.path, err)
		}
	}

	auth, err := xiaoai.LoadAuth(bytes.NewReader(data))
	if err != nil {
		return xiaoai.Auth{}, fmt.Errorf("%w: %s: %v", ErrCredentialsInvalid, s.path, err)
	}
	return auth, nil
}

// Save encodes, optionally encrypts, and writes the auth blob with 0600
// permissions.
func (s *AuthStore) Save(auth xiaoai.Auth) error {
	var buf bytes.Buffer
	if err := auth.Save(&buf); err != nil {
		return err
	}

	data := buf.Bytes()
	if s.enc != nil {
		encrypted, err := s.enc.Encrypt(data)
		if err != nil {
			return fmt.Errorf("encrypting auth blob: %w", err)
		}
		data = encrypted
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}
