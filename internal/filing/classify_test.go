package filing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/mail-filing/internal/auth"
	"github.com/nhle/mail-filing/internal/workspace"
)

func TestClassifyNil(t *testing.T) {
	assert.Empty(t, Classify(nil))
}

func TestClassifyTimeout(t *testing.T) {
	err := fmt.Errorf("document create stage timeout: %w", errors.New("context deadline exceeded"))
	assert.Equal(t, hintTimeout, Classify(err))
}

func TestClassifyWorkspace(t *testing.T) {
	err := fmt.Errorf("resolving workspace: %w", &workspace.MissingWorkspaceError{})
	assert.Equal(t, hintWorkspace, Classify(err))
}

func TestClassifyToken(t *testing.T) {
	err := fmt.Errorf("resolving session: %w", &auth.MissingTokenError{})
	assert.Equal(t, hintToken, Classify(err))
}

func TestClassifyNetwork(t *testing.T) {
	err := errors.New("network error executing POST /documents: dial refused")
	assert.Equal(t, hintNetwork, Classify(err))
}

func TestClassifyGeneric(t *testing.T) {
	assert.Equal(t, hintGeneric, Classify(errors.New("something odd happened")))
}

// Timeout wins over every other marker; the pipeline's most specific hint
// comes first.
func TestClassifyPriority(t *testing.T) {
	err := errors.New("version upload stage timeout: network error executing PUT: token rejected")
	assert.Equal(t, hintTimeout, Classify(err))

	err = errors.New("resolving workspace: token missing")
	assert.Equal(t, hintWorkspace, Classify(err))
}

func TestClassifyCaseInsensitive(t *testing.T) {
	assert.Equal(t, hintTimeout, Classify(errors.New("Stage TIMEOUT waiting")))
}

func TestHintsMentionSendWentThrough(t *testing.T) {
	for _, hint := range []string{
		hintTimeout, hintWorkspace, hintToken, hintNetwork, hintGeneric,
	} {
		assert.Contains(t, hint, "sent")
	}
}
