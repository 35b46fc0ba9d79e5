package storage

import (
	"database/sql"
	"fmt"
)

// GetSetting returns the value stored under key.
// Returns "", nil if the key is not set.
func (s *SQLiteStore) GetSetting(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query setting %q: %w", key, err)
	}
	return value, nil
}

// SetSetting upserts a setting.
func (s *SQLiteStore) SetSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to upsert setting %q: %w", key, err)
	}
	return nil
}

// SetSecret encrypts and stores a secret such as a provider API key.
func (s *SQLiteStore) SetSecret(name, value string) error {
	if len(s.encryptionKey) == 0 {
		return ErrSecretsDisabled
	}
	encrypted, err := Encrypt([]byte(value), s.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt secret: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO secrets (name, encrypted_value)
		VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET
			encrypted_value = excluded.encrypted_value,
			updated_at = CURRENT_TIMESTAMP
	`, name, encrypted)
	if err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}
	return nil
}

// GetSecret returns a decrypted secret.
// Returns "", nil if no secret with that name exists.
func (s *SQLiteStore) GetSecret(name string) (string, error) {
	if len(s.encryptionKey) == 0 {
		return "", ErrSecretsDisabled
	}

	s.mu.RLock()
	var encrypted string
	err := s.db.QueryRow("SELECT encrypted_value FROM secrets WHERE name = ?", name).Scan(&encrypted)
	s.mu.RUnlock()

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query secret: %w", err)
	}

	plain, err := Decrypt(encrypted, s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret %q: %w", name, err)
	}
	return string(plain), nil
}

// SecretsEnabled reports whether the store was opened with an encryption key.
func (s *SQLiteStore) SecretsEnabled() bool {
	return len(s.encryptionKey) > 0
}
