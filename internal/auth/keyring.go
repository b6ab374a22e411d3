package auth

import "github.com/nhle/mail-filing/internal/credential"

// keyringCreds adapts the credential package to the credentialStore
// interface.
type keyringCreds struct{}

func (keyringCreds) Get(key string) (string, error) {
	return credential.Get(key)
}

func (keyringCreds) Set(key, value string) error {
	return credential.Set(key, value)
}
