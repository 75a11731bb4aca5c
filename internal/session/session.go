package session

import "strings"

// Session is the authenticated identity of the current user.
type Session struct {
	Credential string `json:"jwt"`
	Username   string `json:"username"`
}

// Valid reports whether s carries a usable credential.
func (s Session) Valid() bool {
	return s.Credential != ""
}

// SanitizeCredential strips whitespace and surrounding double quotes from a
// credential returned by the API. Some deployments return the token as a JSON
// string literal.
func SanitizeCredential(raw string) string {
	return strings.Trim(strings.TrimSpace(raw), `"`)
}
