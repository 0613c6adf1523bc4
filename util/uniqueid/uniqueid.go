// Package uniqueid generates time-prefixed, URL-safe identifiers for stored runs.
package uniqueid

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"strings"
	"time"
)

const rawLen = 16

// New returns a 22 character identifier: a microsecond timestamp followed by
// eight random bytes, base64url encoded without padding.
func New() string {
	return newAt(time.Now())
}

func newAt(now time.Time) string {
	b := make([]byte, rawLen)
	binary.BigEndian.PutUint64(b[:8], uint64(now.UnixMicro()))
	if _, err := rand.Read(b[8:]); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// RunID returns "<label>-<New()>" with label lowercased and reduced to
// [a-z0-9-]. An empty label yields "run-<New()>".
func RunID(label string) string {
	prefix := sanitize(label)
	if prefix == "" {
		prefix = "run"
	}
	return prefix + "-" + New()
}

func sanitize(label string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			sb.WriteRune(r)
		case r == '_' || r == ' ' || r == '.':
			sb.WriteByte('-')
		}
	}
	return strings.Trim(sb.String(), "-")
}
