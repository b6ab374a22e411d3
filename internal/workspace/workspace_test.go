package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-filing/internal/model"
)

func TestBaseURL(t *testing.T) {
	r := NewResolver(model.WorkspaceConfig{
		Host:         "acme.casefiles.example.com",
		TenantPrefix: "t1",
		GatewayURL:   "https://gateway.example.com",
	})

	baseURL, err := r.BaseURL()
	require.NoError(t, err)
	assert.Equal(
		t,
		"https://gateway.example.com/t1/acme.casefiles.example.com/publicapi/v1",
		baseURL,
	)
}

func TestBaseURLEscapesHost(t *testing.T) {
	r := NewResolver(model.WorkspaceConfig{
		Host:       "host with spaces/and-slash",
		GatewayURL: "https://gateway.example.com",
	})

	baseURL, err := r.BaseURL()
	require.NoError(t, err)
	assert.Equal(
		t,
		"https://gateway.example.com/t1/host%20with%20spaces%2Fand-slash/publicapi/v1",
		baseURL,
	)
}

func TestBaseURLDefaultsTenant(t *testing.T) {
	r := NewResolver(model.WorkspaceConfig{
		Host:       "acme.example.com",
		GatewayURL: "https://gateway.example.com/",
	})

	baseURL, err := r.BaseURL()
	require.NoError(t, err)
	assert.Equal(
		t,
		"https://gateway.example.com/t1/acme.example.com/publicapi/v1",
		baseURL,
	)
}

func TestBaseURLMissingHost(t *testing.T) {
	r := NewResolver(model.WorkspaceConfig{
		GatewayURL: "https://gateway.example.com",
	})

	_, err := r.BaseURL()
	require.Error(t, err)
	assert.True(t, IsMissingWorkspace(err))
	assert.Contains(t, err.Error(), "workspace")
}

func TestBaseURLBlankHost(t *testing.T) {
	r := NewResolver(model.WorkspaceConfig{Host: "   "})

	_, err := r.BaseURL()
	assert.True(t, IsMissingWorkspace(err))
}
