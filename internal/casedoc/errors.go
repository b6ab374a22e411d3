package casedoc

import (
	"errors"
	"fmt"
	"strings"
)

// UploadError indicates a non-success HTTP status from a document call.
type UploadError struct {
	Status  int
	Method  string
	Path    string
	Snippet string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf(
		"upload failed (%d) on %s %s: %s",
		e.Status, e.Method, e.Path, e.Snippet,
	)
}

// IsUploadError reports whether err (or any error in its chain) is an
// UploadError.
func IsUploadError(err error) bool {
	var upErr *UploadError
	return errors.As(err, &upErr)
}

// MissingDocumentIDError indicates that a create call succeeded but the
// response carried no document id.
type MissingDocumentIDError struct{}

func (e *MissingDocumentIDError) Error() string {
	return "create succeeded but response contains no document id"
}

// NoCompatibleEndpointError indicates that every candidate version-upload
// endpoint answered 404 or 405.
type NoCompatibleEndpointError struct {
	Attempts []ProbeAttempt
}

// ProbeAttempt records one soft-failed endpoint candidate.
type ProbeAttempt struct {
	Method string
	Path   string
	Status int
}

func (e *NoCompatibleEndpointError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s %s=%d", a.Method, a.Path, a.Status))
	}
	return "no compatible version-upload endpoint: " + strings.Join(parts, ", ")
}
