package cache

import (
	"encoding/binary"
	"strings"

	"github.com/dgryski/go-farm"
)

// Fingerprint identifies one logical computation: a chunk of normalized
// content run through a specific model with specific parameters.
type Fingerprint uint64

// NewFingerprint hashes (normalized content, model, params). Each field is
// length-prefixed before hashing so distinct field splits cannot collide.
func NewFingerprint(content, model, params string) Fingerprint {
	content = normalize(content)

	buf := make([]byte, 0, len(content)+len(model)+len(params)+24)
	buf = appendField(buf, content)
	buf = appendField(buf, model)
	buf = appendField(buf, params)
	return Fingerprint(farm.Hash64(buf))
}

func appendField(b []byte, s string) []byte {
	b = binary.LittleEndian.AppendUint64(b, uint64(len(s)))
	return append(b, s...)
}

// normalize strips the differences that show up between re-downloads of the
// same text: surrounding whitespace and CRLF line endings.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s)
}
