package identity

import (
	"crypto/sha256"
	"math/big"
	"strings"
)

// maxUIDLength is the DICOM limit on UID length.
const maxUIDLength = 64

// uidRoot is the UUID-derived UID root; replacements are decimal renderings
// of a salted hash under it.
const uidRoot = "2.25."

// deriveUID maps an original UID to a valid replacement UID: the sha256 of
// salt and original rendered as a decimal component under the 2.25 root,
// truncated to the 64-character limit. Deterministic for a fixed salt.
func deriveUID(original, salt string) string {
	sum := sha256.Sum256([]byte(salt + "|" + original))
	n := new(big.Int).SetBytes(sum[:])
	uid := uidRoot + n.String()
	if len(uid) > maxUIDLength {
		uid = uid[:maxUIDLength]
	}
	return uid
}

// IsValidUID checks DICOM UID syntax: dot-separated numeric components with
// no leading zeros (except a literal zero), no trailing delimiter, at most
// 64 characters.
func IsValidUID(uid string) bool {
	if uid == "" || len(uid) > maxUIDLength {
		return false
	}
	for _, comp := range strings.Split(uid, ".") {
		if comp == "" {
			return false
		}
		if len(comp) > 1 && comp[0] == '0' {
			return false
		}
		for _, c := range comp {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}
