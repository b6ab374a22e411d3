package artifact

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-filing/internal/mailhost"
)

func TestBuild(t *testing.T) {
	composed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	a, err := Build(
		"Quarterly report",
		"Please find the numbers attached.",
		mailhost.Address{Name: "Ann Example", Email: "ann@example.com"},
		[]string{"bob@example.com", "carol@example.com"},
		"<msg-1@example.com>",
		composed,
	)
	require.NoError(t, err)

	assert.Equal(t, "Quarterly report.eml", a.FileName)
	assert.Equal(t, "message/rfc822", a.MimeType)

	raw, err := base64.StdEncoding.DecodeString(a.DataBase64)
	require.NoError(t, err)
	msg := string(raw)

	assert.Contains(t, msg, "Subject: Quarterly report")
	assert.Contains(t, msg, "ann@example.com")
	assert.Contains(t, msg, "bob@example.com")
	assert.Contains(t, msg, "msg-1@example.com")
	assert.Contains(t, msg, "Please find the numbers attached.")
}

func TestBuildGeneratesMessageID(t *testing.T) {
	a, err := Build(
		"Hello",
		"body",
		mailhost.Address{Email: "ann@example.com"},
		nil,
		"",
		time.Time{},
	)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(a.DataBase64)
	require.NoError(t, err)

	assert.Contains(t, string(raw), "@mailfiling.local")
}

func TestFileNameSanitizes(t *testing.T) {
	assert.Equal(t, "Re_ budget _2026_.eml", fileName("Re: budget *2026?"))
	assert.Equal(t, "email.eml", fileName("   "))

	long := strings.Repeat("a", 200)
	name := fileName(long)
	assert.Equal(t, strings.Repeat("a", 120)+".eml", name)
}
