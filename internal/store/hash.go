package store

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// DomainScript is the domain prefix for script content hashes.
// Version suffix enables future algorithm migration.
const DomainScript = "tessel/script/v1"

// ScriptHash computes the content-addressed cache key for a script
// document. The text is NFC-normalized first, so differently composed
// spellings of the same content share one cache entry.
//
// Format: SHA256(domain + 0x00 + NFC(text))
// The null byte separator prevents domain/data boundary ambiguity.
func ScriptHash(text []byte) string {
	h := sha256.New()
	h.Write([]byte(DomainScript))
	h.Write([]byte{0x00})
	h.Write(norm.NFC.Bytes(text))
	return hex.EncodeToString(h.Sum(nil))
}
