// Package fingerprint derives the cache key of a generation request.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"strings"

	"golang.org/x/text/unicode/norm"

	"pinksync/internal/models"
)

// version is mixed into every digest so a change in canonicalization
// invalidates old cache keys instead of colliding with them.
const version = "v1"

// Of returns the hex SHA-256 fingerprint of the request's text, variant,
// style and quality. RequesterID does not participate.
func Of(req models.GenerationRequest) string {
	req = req.Normalize()

	h := sha256.New()
	writeField(h, version)
	writeField(h, CanonicalText(req.Text))
	writeField(h, req.TargetVariant)
	writeField(h, string(req.RenderStyle))
	writeField(h, string(req.QualityTier))
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalText is the text form hashed into the fingerprint.
func CanonicalText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// Short returns a prefix suitable for object names and log fields.
func Short(fp string) string {
	if len(fp) <= 32 {
		return fp
	}
	return fp[:32]
}

func writeField(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}
