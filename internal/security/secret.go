package security

import (
	"os"
	"strings"
)

// LoadSecret resolves the configured token secret. A value starting with
// "file:" is read from the named file (trailing whitespace trimmed);
// anything else is used as the inline secret. The result must satisfy
// NewTokenCodec's minimum length.
func LoadSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidSecret
	}
	if path, ok := strings.CutPrefix(s, "file:"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return []byte(strings.TrimSpace(string(b))), nil
	}
	return []byte(s), nil
}
