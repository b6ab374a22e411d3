// Package auth provides the bearer credential used to authenticate against
// the case-management API. Tokens are held in the system keyring and fetched
// fresh for every API call rather than cached in memory.
package auth

import (
	"errors"
	"strings"
)

// tokenKey is the keyring entry holding the filing API token.
const tokenKey = "filing-api-token"

// MissingTokenError indicates that no valid API session exists. The filing
// pipeline detects it early and skips the upload entirely.
type MissingTokenError struct {
	Reason string
}

func (e *MissingTokenError) Error() string {
	if e.Reason == "" {
		return "no API token available"
	}
	return "no API token available: " + e.Reason
}

// IsMissingToken reports whether err (or any error in its chain) is a
// MissingTokenError.
func IsMissingToken(err error) bool {
	var tokenErr *MissingTokenError
	return errors.As(err, &tokenErr)
}

// Provider supplies the bearer credential for case-management API calls.
type Provider interface {
	// Token returns the current API token, or a MissingTokenError when no
	// valid session exists.
	Token() (string, error)
}

// credentialStore is the subset of the credential package used by the
// keyring provider, extracted for testability.
type credentialStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// KeyringProvider reads the API token from the system keyring.
type KeyringProvider struct {
	creds credentialStore
}

// NewKeyringProvider creates a Provider backed by the system keyring.
func NewKeyringProvider() *KeyringProvider {
	return &KeyringProvider{creds: keyringCreds{}}
}

// Token returns the stored API token, or a MissingTokenError when the
// keyring has no entry or the entry is empty.
func (p *KeyringProvider) Token() (string, error) {
	value, err := p.creds.Get(tokenKey)
	if err != nil {
		return "", &MissingTokenError{Reason: err.Error()}
	}
	if strings.TrimSpace(value) == "" {
		return "", &MissingTokenError{}
	}
	return value, nil
}

// SetToken stores a new API token in the keyring.
func (p *KeyringProvider) SetToken(value string) error {
	return p.creds.Set(tokenKey, value)
}
