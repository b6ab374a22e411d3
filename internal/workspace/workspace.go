// Package workspace resolves the base URL of the case-management public API
// from the configured workspace host.
package workspace

import (
	"errors"
	"net/url"
	"strings"

	"github.com/nhle/mail-filing/internal/model"
)

// MissingWorkspaceError indicates that no workspace host has been
// configured, so no API base URL can be derived.
type MissingWorkspaceError struct{}

func (e *MissingWorkspaceError) Error() string {
	return "no workspace host configured"
}

// IsMissingWorkspace reports whether err (or any error in its chain) is a
// MissingWorkspaceError.
func IsMissingWorkspace(err error) bool {
	var wsErr *MissingWorkspaceError
	return errors.As(err, &wsErr)
}

// Resolver derives the public API base URL for the configured workspace.
type Resolver struct {
	cfg model.WorkspaceConfig
}

// NewResolver creates a Resolver over the given workspace configuration.
func NewResolver(cfg model.WorkspaceConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// BaseURL returns the root URL of the workspace's public API:
// <gateway>/<tenant-prefix>/<url-encoded-host>/publicapi/v1.
// It returns a MissingWorkspaceError when no host is configured.
func (r *Resolver) BaseURL() (string, error) {
	host := strings.TrimSpace(r.cfg.Host)
	if host == "" {
		return "", &MissingWorkspaceError{}
	}

	gateway := strings.TrimRight(r.cfg.GatewayURL, "/")
	tenant := r.cfg.TenantPrefix
	if tenant == "" {
		tenant = "t1"
	}

	return gateway + "/" + tenant + "/" + url.PathEscape(host) + "/publicapi/v1", nil
}
