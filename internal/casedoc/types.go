package casedoc

// DocumentRef identifies an existing document in a case.
type DocumentRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	CaseID  string `json:"case_id"`
	Subject string `json:"subject,omitempty"`
}

// documentPayload is a single document in a create request.
type documentPayload struct {
	Name       string            `json:"name"`
	MimeType   string            `json:"mime_type"`
	DataBase64 string            `json:"data_base64"`
	DirID      string            `json:"dir_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// createDocumentRequest is the body of POST /documents.
type createDocumentRequest struct {
	CaseID    string            `json:"case_id"`
	Documents []documentPayload `json:"documents"`
}

// createDocumentResponse is the response of POST /documents.
type createDocumentResponse struct {
	Documents []DocumentRef `json:"documents"`
}

// listDocumentsResponse is the response of the document list/search
// endpoint.
type listDocumentsResponse struct {
	Documents []DocumentRef `json:"documents"`
}

// versionPayload is the body of a version-upload request.
type versionPayload struct {
	Name       string `json:"name"`
	MimeType   string `json:"mime_type"`
	DataBase64 string `json:"data_base64"`
	DirID      string `json:"dir_id,omitempty"`
}
