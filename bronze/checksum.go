package bronze

import "strings"

// parseChecksum extracts the hex digest from a checksum file body. Sources
// publish either a bare digest or the common "digest  filename" coreutils
// layout, sometimes with a trailing newline or a "*" binary marker.
func parseChecksum(body string) string {
	body = strings.TrimSpace(body)
	if i := strings.IndexAny(body, " \t"); i >= 0 {
		body = body[:i]
	}
	return strings.ToLower(strings.TrimPrefix(body, "*"))
}
