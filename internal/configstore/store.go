// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package configstore

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/models"
)

// Backend persists ConfigEntry rows. The concrete implementation lives in
// internal/database; this boundary lets the Config Store be tested without
// a real database.
type Backend interface {
	GetConfigEntry(ctx context.Context, key string) (models.ConfigEntry, bool, error)
	PutConfigEntry(ctx context.Context, entry models.ConfigEntry) error
}

// Well-known keys. Provider API keys and the media-server token are
// encrypted at rest; everything else is plaintext.
const (
	KeyMediaServerURL  = "mediaserver.url"
	KeyMediaServerToken = "mediaserver.token"
	KeyMediaServerName = "mediaserver.server_name"

	KeyProviderPriority = "providers.priority" // JSON array of source names

	keyProviderAPIKeyFmt = "providers.%s.api_key"
)

// Store is the typed Config Store: a key/value accessor with per-key
// encryption, backed by a persistence Backend.
type Store struct {
	backend   Backend
	encryptor *CredentialEncryptor
}

// New constructs a Store using secretKey to derive the encryption key for
// encrypted entries.
func New(backend Backend, secretKey string) (*Store, error) {
	enc, err := NewCredentialEncryptor(secretKey)
	if err != nil {
		return nil, fmt.Errorf("configstore: %w", err)
	}
	return &Store{backend: backend, encryptor: enc}, nil
}

// Get returns the plaintext value for key, or "" if unset. Decryption
// failures on an encrypted entry resolve to "" (see CredentialEncryptor.Decrypt).
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	entry, ok, err := s.backend.GetConfigEntry(ctx, key)
	if err != nil {
		return "", fmt.Errorf("configstore: get %s: %w", key, err)
	}
	if !ok {
		return "", nil
	}
	if entry.Encrypted {
		return s.encryptor.Decrypt(entry.Value), nil
	}
	return entry.Value, nil
}

// Set writes value under key, encrypting it first when encrypted is true.
func (s *Store) Set(ctx context.Context, key, value string, encrypted bool) error {
	stored := value
	if encrypted {
		ciphertext, err := s.encryptor.Encrypt(value)
		if err != nil {
			return fmt.Errorf("configstore: encrypt %s: %w", key, err)
		}
		stored = ciphertext
	}
	entry := models.ConfigEntry{Key: key, Value: stored, Encrypted: encrypted}
	if err := s.backend.PutConfigEntry(ctx, entry); err != nil {
		return fmt.Errorf("configstore: set %s: %w", key, err)
	}
	return nil
}

// MediaServerConfig aggregates the configured media-server connection.
type MediaServerConfig struct {
	URL        string
	Token      string
	ServerName string
}

// MediaServerConfig reads the aggregated media-server connection settings.
func (s *Store) MediaServerConfig(ctx context.Context) (MediaServerConfig, error) {
	url, err := s.Get(ctx, KeyMediaServerURL)
	if err != nil {
		return MediaServerConfig{}, err
	}
	token, err := s.Get(ctx, KeyMediaServerToken)
	if err != nil {
		return MediaServerConfig{}, err
	}
	name, err := s.Get(ctx, KeyMediaServerName)
	if err != nil {
		return MediaServerConfig{}, err
	}
	return MediaServerConfig{URL: url, Token: token, ServerName: name}, nil
}

// SetMediaServerConfig persists the media-server connection; the token is
// encrypted, the URL and name are not.
func (s *Store) SetMediaServerConfig(ctx context.Context, cfg MediaServerConfig) error {
	if err := s.Set(ctx, KeyMediaServerURL, cfg.URL, false); err != nil {
		return err
	}
	if err := s.Set(ctx, KeyMediaServerToken, cfg.Token, true); err != nil {
		return err
	}
	return s.Set(ctx, KeyMediaServerName, cfg.ServerName, false)
}

// ProviderAPIKey reads the API key configured for one of the four artwork
// providers ("fanart", "mediux", "tmdb", "tvdb").
func (s *Store) ProviderAPIKey(ctx context.Context, source string) (string, error) {
	return s.Get(ctx, fmt.Sprintf(keyProviderAPIKeyFmt, source))
}

// SetProviderAPIKey persists the API key for one provider, encrypted.
func (s *Store) SetProviderAPIKey(ctx context.Context, source, apiKey string) error {
	return s.Set(ctx, fmt.Sprintf(keyProviderAPIKeyFmt, source), apiKey, true)
}

// ProviderPriority reads the configured provider ranking order. An unset
// value returns nil; callers apply the aggregator's default sentinel rule
// for names absent from the list.
func (s *Store) ProviderPriority(ctx context.Context) ([]string, error) {
	raw, err := s.Get(ctx, KeyProviderPriority)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var priority []string
	if err := json.Unmarshal([]byte(raw), &priority); err != nil {
		return nil, fmt.Errorf("configstore: decode provider priority: %w", err)
	}
	return priority, nil
}

// SetProviderPriority persists the provider ranking order.
func (s *Store) SetProviderPriority(ctx context.Context, priority []string) error {
	raw, err := json.Marshal(priority)
	if err != nil {
		return fmt.Errorf("configstore: encode provider priority: %w", err)
	}
	return s.Set(ctx, KeyProviderPriority, string(raw), false)
}
