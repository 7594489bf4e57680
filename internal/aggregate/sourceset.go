package aggregate

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"strings"
)

// SourceSetID derives a deterministic identifier for a set of contributing
// sources: the ids are sorted, joined and hashed, and the first 8 bytes of
// the digest form a non-negative int64. External consumers can detect a
// change in the effective source composition behind a published price
// without the raw source identities appearing on a public ledger.
func SourceSetID(ids []string) int64 {
	if len(ids) == 0 {
		return 0
	}

	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	digest := sha256.Sum256([]byte(strings.Join(sorted, ",")))
	id := int64(binary.BigEndian.Uint64(digest[:8]) &^ (1 << 63))
	if id == 0 {
		id = 1
	}
	return id
}
