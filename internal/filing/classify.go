package filing

import "strings"

// User-facing failure hints. Every hint makes clear that the email itself
// was sent; only the filing step failed.
const (
	hintTimeout   = "Filing timed out. The email was sent; file it from the case view if needed."
	hintWorkspace = "No workspace is configured. The email was sent but not filed."
	hintToken     = "Your filing session has expired. The email was sent but not filed; sign in to resume filing."
	hintNetwork   = "The filing service could not be reached. The email was sent but not filed."
	hintGeneric   = "Filing failed. The email was sent but not filed."
)

// classifiers maps error-message substrings to hints, in priority order.
// Classification happens once, at the outer boundary of the pipeline, on
// the full wrapped error text.
var classifiers = []struct {
	substring string
	hint      string
}{
	{"timeout", hintTimeout},
	{"workspace", hintWorkspace},
	{"token", hintToken},
	{"network", hintNetwork},
}

// Classify selects the user-facing hint for a pipeline failure.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	text := strings.ToLower(err.Error())
	for _, c := range classifiers {
		if strings.Contains(text, c.substring) {
			return c.hint
		}
	}

	return hintGeneric
}
