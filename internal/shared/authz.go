package shared

import (
	"crypto/subtle"
	"net/http"
)

// AdminKeyHeader carries the operator API key on back-office requests.
const AdminKeyHeader = "X-Admin-Key"

// AdminKeyMatches reports whether the request carries the configured
// operator key. Comparison is constant time. An empty configured key
// never matches.
func AdminKeyMatches(r *http.Request, key string) bool {
	if key == "" {
		return false
	}
	supplied := r.Header.Get(AdminKeyHeader)
	if supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) == 1
}
