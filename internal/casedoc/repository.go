// Package casedoc performs document operations against the case-management
// service: the dedup lookup, document creation, and version upload. The
// service's version-upload route differs between deployments and there is
// no capability discovery, so version uploads probe an ordered list of
// plausible endpoints.
package casedoc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-filing/internal/auth"
)

// BaseURLResolver supplies the API base URL for the current workspace.
type BaseURLResolver interface {
	BaseURL() (string, error)
}

// versionCandidate is one (method, path pattern) the version-upload probe
// may try. The pattern takes the document id.
type versionCandidate struct {
	method  string
	pattern string
}

// versionCandidates is the fixed probe order for version uploads. The
// ordering and the 404/405-means-try-next semantics are observable behavior
// against real deployments and must not change.
var versionCandidates = []versionCandidate{
	{http.MethodPost, "/documents/%s/versions"},
	{http.MethodPost, "/documents/%s/version"},
	{http.MethodPut, "/documents/%s/versions"},
	{http.MethodPut, "/documents/%s/version"},
	{http.MethodPatch, "/documents/%s/versions"},
	{http.MethodPatch, "/documents/%s/version"},
}

// Repository performs document operations. Token and base URL are fetched
// fresh for every operation so that a re-authenticated session or a changed
// workspace takes effect without restarting.
type Repository struct {
	tokens    auth.Provider
	workspace BaseURLResolver
	log       *logrus.Entry
}

// NewRepository creates a Repository over the given collaborators.
func NewRepository(tokens auth.Provider, workspace BaseURLResolver) *Repository {
	return &Repository{
		tokens:    tokens,
		workspace: workspace,
		log:       logrus.WithField("pkg", "casedoc"),
	}
}

// client builds a fresh API client with the current token and base URL.
func (r *Repository) client() (*Client, error) {
	token, err := r.tokens.Token()
	if err != nil {
		return nil, err
	}

	baseURL, err := r.workspace.BaseURL()
	if err != nil {
		return nil, err
	}

	return NewClient(baseURL, token), nil
}

// FindBySubject looks up an existing document for (caseID, subject) and
// returns the first whose recorded subject exactly matches the normalized
// subject, or nil when none does. Callers treat a lookup failure as "no
// existing document"; dedup is an optimization, not a hard requirement.
func (r *Repository) FindBySubject(
	ctx context.Context, caseID, subject string,
) (*DocumentRef, error) {
	client, err := r.client()
	if err != nil {
		return nil, err
	}

	normalized := NormalizeSubject(subject)
	path := fmt.Sprintf(
		"/documents?case_id=%s&subject=%s",
		url.QueryEscape(caseID), url.QueryEscape(normalized),
	)

	var resp listDocumentsResponse
	if err := client.Get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("searching documents in case %s: %w", caseID, err)
	}

	for i := range resp.Documents {
		doc := &resp.Documents[i]
		if NormalizeSubject(recordedSubject(doc)) == normalized {
			return doc, nil
		}
	}

	return nil, nil
}

// CreateDocument uploads a new document into caseID and returns the created
// document's id.
func (r *Repository) CreateDocument(
	ctx context.Context,
	caseID, fileName, mimeType, dataBase64 string,
	metadata map[string]string,
) (string, error) {
	client, err := r.client()
	if err != nil {
		return "", err
	}

	req := createDocumentRequest{
		CaseID: caseID,
		Documents: []documentPayload{
			{
				Name:       fileName,
				MimeType:   mimeType,
				DataBase64: dataBase64,
				Metadata:   metadata,
			},
		},
	}

	var resp createDocumentResponse
	if err := client.Post(ctx, "/documents", req, &resp); err != nil {
		return "", fmt.Errorf("creating document in case %s: %w", caseID, err)
	}

	if len(resp.Documents) == 0 || resp.Documents[0].ID == "" {
		return "", &MissingDocumentIDError{}
	}

	return resp.Documents[0].ID, nil
}

// UploadVersion appends a new version to an existing document by probing
// the candidate endpoints in order. A 404 or 405 means the deployment does
// not serve that route and the next candidate is tried; any other
// non-success status is a hard failure and aborts the probe. The first
// success wins. When every candidate soft-fails, the aggregate
// NoCompatibleEndpointError is returned.
func (r *Repository) UploadVersion(
	ctx context.Context,
	documentID, fileName, mimeType, dataBase64 string,
) error {
	client, err := r.client()
	if err != nil {
		return err
	}

	payload := versionPayload{
		Name:       fileName,
		MimeType:   mimeType,
		DataBase64: dataBase64,
	}

	var attempts []ProbeAttempt
	for _, candidate := range versionCandidates {
		path := fmt.Sprintf(candidate.pattern, url.PathEscape(documentID))

		status, body, err := client.Do(ctx, candidate.method, path, payload)
		if err != nil {
			return fmt.Errorf("uploading version of %s: %w", documentID, err)
		}

		if status >= 200 && status < 300 {
			return nil
		}

		if status == http.StatusNotFound || status == http.StatusMethodNotAllowed {
			attempts = append(attempts, ProbeAttempt{
				Method: candidate.method,
				Path:   path,
				Status: status,
			})
			r.log.WithFields(logrus.Fields{
				"method": candidate.method,
				"path":   path,
				"status": status,
			}).Debug("version endpoint not served, trying next candidate")
			continue
		}

		return &UploadError{
			Status:  status,
			Method:  candidate.method,
			Path:    path,
			Snippet: snippet(body),
		}
	}

	return &NoCompatibleEndpointError{Attempts: attempts}
}

// NormalizeSubject collapses runs of whitespace into single spaces and
// trims the ends. Case is preserved; the dedup match is case-sensitive.
func NormalizeSubject(subject string) string {
	return strings.Join(strings.Fields(subject), " ")
}

// recordedSubject returns the subject a document was filed under,
// preferring the explicit subject field over the file name.
func recordedSubject(doc *DocumentRef) string {
	if doc.Subject != "" {
		return doc.Subject
	}
	return strings.TrimSuffix(doc.Name, ".eml")
}
