package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint derives a stable cache key from every field that can change
// the search outcome. Session id is deliberately excluded: responses are
// session-independent and cache entries are shared.
func (q Query) Fingerprint() string {
	var b strings.Builder
	b.WriteString(q.Text)
	b.WriteByte(0)
	b.WriteString(q.TechHint)
	b.WriteByte(0)
	fmt.Fprintf(&b, "%d:%d:%t", q.Limit, q.Offset, q.ForceExternal)
	for _, id := range q.ProviderIDs {
		b.WriteByte(0)
		b.WriteString(id)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
