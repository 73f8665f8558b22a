package credentials

import "regexp"

// secretPattern matches credential-bearing fragments that may surface in
// transport error strings (header dumps, query strings, bearer values).
var secretPattern = regexp.MustCompile(`(?i)(apca-api-(?:key-id|secret-key)\s*[=:]\s*|bearer\s+)[^&\s",]+`)

// Sanitize redacts credential values from s.
func Sanitize(s string) string {
	return secretPattern.ReplaceAllString(s, "${1}[REDACTED]")
}
