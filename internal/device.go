package internal

import "crypto/sha256"

// Fingerprint hashes client attributes into a fixed-size binding value. Parts are
// NUL-separated so ("ab", "c") and ("a", "bc") differ.
func Fingerprint(parts ...string) [32]byte {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
