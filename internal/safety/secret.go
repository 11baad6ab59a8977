package safety

import "crypto/subtle"

// CompareSecret performs a constant-time comparison of a provided dashboard
// secret against the configured one, per §7: all mutating endpoints compare
// the owner-shared secret this way, never with "==".
func CompareSecret(provided, expected string) bool {
	if len(provided) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
