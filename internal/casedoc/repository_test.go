package casedoc_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-filing/internal/auth"
	"github.com/nhle/mail-filing/internal/casedoc"
)

// staticTokens is an auth.Provider returning a fixed token or error.
type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Token() (string, error) { return s.token, s.err }

// staticBase resolves to a fixed base URL.
type staticBase struct {
	url string
}

func (s staticBase) BaseURL() (string, error) { return s.url, nil }

// probeRecorder records every request the server receives.
type probeRecorder struct {
	mu       sync.Mutex
	requests []string
}

func (r *probeRecorder) record(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req.Method+" "+req.URL.Path)
}

func (r *probeRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.requests...)
}

func newTestRepository(serverURL string) *casedoc.Repository {
	return casedoc.NewRepository(
		staticTokens{token: "tok-1"},
		staticBase{url: serverURL},
	)
}

func TestUploadVersionProbesUntilSuccess(t *testing.T) {
	rec := &probeRecorder{}
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, req *http.Request) {
			rec.record(req)
			// Only PUT .../version is served by this deployment.
			if req.Method == http.MethodPut && strings.HasSuffix(req.URL.Path, "/version") {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		},
	))
	defer server.Close()

	repo := newTestRepository(server.URL)
	err := repo.UploadVersion(context.Background(), "doc-1", "mail.eml", "message/rfc822", "ZGF0YQ==")
	require.NoError(t, err)

	// The probe stops at the first success and never tries the PATCH
	// candidates.
	assert.Equal(t, []string{
		"POST /documents/doc-1/versions",
		"POST /documents/doc-1/version",
		"PUT /documents/doc-1/versions",
		"PUT /documents/doc-1/version",
	}, rec.all())
}

func TestUploadVersionHardFailureAbortsProbe(t *testing.T) {
	rec := &probeRecorder{}
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, req *http.Request) {
			rec.record(req)
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"boom"}`))
		},
	))
	defer server.Close()

	repo := newTestRepository(server.URL)
	err := repo.UploadVersion(context.Background(), "doc-1", "mail.eml", "message/rfc822", "ZGF0YQ==")

	require.Error(t, err)
	var upErr *casedoc.UploadError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusInternalServerError, upErr.Status)
	assert.Contains(t, upErr.Snippet, "boom")

	// A hard failure means the probe does not continue.
	assert.Len(t, rec.all(), 1)
}

func TestUploadVersionNoCompatibleEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusMethodNotAllowed)
		},
	))
	defer server.Close()

	repo := newTestRepository(server.URL)
	err := repo.UploadVersion(context.Background(), "doc-1", "mail.eml", "message/rfc822", "ZGF0YQ==")

	require.Error(t, err)
	var probeErr *casedoc.NoCompatibleEndpointError
	require.True(t, errors.As(err, &probeErr))
	assert.Len(t, probeErr.Attempts, 6)
}

func TestRequestsCarryAuthenticationHeader(t *testing.T) {
	var gotAuthentication, gotAuthorization string
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, req *http.Request) {
			gotAuthentication = req.Header.Get("Authentication")
			gotAuthorization = req.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
		},
	))
	defer server.Close()

	repo := newTestRepository(server.URL)
	err := repo.UploadVersion(context.Background(), "doc-1", "mail.eml", "message/rfc822", "ZGF0YQ==")
	require.NoError(t, err)

	// The service uses a custom Authentication header, not Authorization.
	assert.Equal(t, "tok-1", gotAuthentication)
	assert.Empty(t, gotAuthorization)
}

func TestCreateDocument(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, req *http.Request) {
			require.Equal(t, http.MethodPost, req.Method)
			require.Equal(t, "/documents", req.URL.Path)
			require.NoError(t, json.NewDecoder(req.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"documents": []map[string]string{{"id": "doc-42"}},
			})
		},
	))
	defer server.Close()

	repo := newTestRepository(server.URL)
	id, err := repo.CreateDocument(
		context.Background(),
		"case-1", "mail.eml", "message/rfc822", "ZGF0YQ==",
		map[string]string{"source": "send-time-filing"},
	)
	require.NoError(t, err)
	assert.Equal(t, "doc-42", id)

	assert.Equal(t, "case-1", gotBody["case_id"])
	docs, ok := gotBody["documents"].([]interface{})
	require.True(t, ok)
	require.Len(t, docs, 1)
	doc := docs[0].(map[string]interface{})
	assert.Equal(t, "mail.eml", doc["name"])
	assert.Equal(t, "message/rfc822", doc["mime_type"])
}

func TestCreateDocumentMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, req *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"documents": []interface{}{}})
		},
	))
	defer server.Close()

	repo := newTestRepository(server.URL)
	_, err := repo.CreateDocument(
		context.Background(), "case-1", "mail.eml", "message/rfc822", "ZGF0YQ==", nil,
	)

	require.Error(t, err)
	var missingErr *casedoc.MissingDocumentIDError
	assert.True(t, errors.As(err, &missingErr))
}

func TestFindBySubjectExactMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "case-1", req.URL.Query().Get("case_id"))
			assert.Equal(t, "Quarterly report", req.URL.Query().Get("subject"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"documents": []map[string]string{
					{"id": "doc-1", "name": "other.eml", "subject": "Quarterly report draft"},
					{"id": "doc-2", "name": "Quarterly report.eml"},
				},
			})
		},
	))
	defer server.Close()

	repo := newTestRepository(server.URL)
	doc, err := repo.FindBySubject(context.Background(), "case-1", "Quarterly  report")
	require.NoError(t, err)

	// The server-side filter is fuzzy; only an exact normalized match counts.
	require.NotNil(t, doc)
	assert.Equal(t, "doc-2", doc.ID)
}

func TestFindBySubjectNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, req *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"documents": []map[string]string{
					{"id": "doc-1", "subject": "Something else"},
				},
			})
		},
	))
	defer server.Close()

	repo := newTestRepository(server.URL)
	doc, err := repo.FindBySubject(context.Background(), "case-1", "Quarterly report")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestMissingTokenShortCircuits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, req *http.Request) {
			t.Error("no request should be made without a token")
		},
	))
	defer server.Close()

	repo := casedoc.NewRepository(
		staticTokens{err: &auth.MissingTokenError{}},
		staticBase{url: server.URL},
	)

	err := repo.UploadVersion(context.Background(), "doc-1", "mail.eml", "message/rfc822", "ZGF0YQ==")
	assert.True(t, auth.IsMissingToken(err))
}

func TestNormalizeSubject(t *testing.T) {
	assert.Equal(t, "Re: Hello World", casedoc.NormalizeSubject("  Re:  Hello\tWorld "))
	assert.Equal(t, "", casedoc.NormalizeSubject("   "))
}
