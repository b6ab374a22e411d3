package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreds struct {
	values map[string]string
	err    error
}

func (f *fakeCreds) Get(key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.values[key], nil
}

func (f *fakeCreds) Set(key, value string) error {
	if f.err != nil {
		return f.err
	}
	f.values[key] = value
	return nil
}

func TestTokenRoundTrip(t *testing.T) {
	p := &KeyringProvider{creds: &fakeCreds{values: map[string]string{}}}

	require.NoError(t, p.SetToken("tok-1"))

	token, err := p.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}

func TestTokenMissing(t *testing.T) {
	p := &KeyringProvider{creds: &fakeCreds{values: map[string]string{}}}

	_, err := p.Token()
	require.Error(t, err)
	assert.True(t, IsMissingToken(err))
	assert.Contains(t, err.Error(), "token")
}

func TestTokenBlankIsMissing(t *testing.T) {
	p := &KeyringProvider{creds: &fakeCreds{
		values: map[string]string{tokenKey: "   "},
	}}

	_, err := p.Token()
	assert.True(t, IsMissingToken(err))
}

func TestTokenKeyringFailureIsMissing(t *testing.T) {
	p := &KeyringProvider{creds: &fakeCreds{err: errors.New("keyring locked")}}

	_, err := p.Token()
	require.Error(t, err)
	assert.True(t, IsMissingToken(err))
	assert.Contains(t, err.Error(), "keyring locked")
}

func TestIsMissingTokenOtherError(t *testing.T) {
	assert.False(t, IsMissingToken(errors.New("boom")))
	assert.False(t, IsMissingToken(nil))
}
