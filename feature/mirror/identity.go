package mirror

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"portfolio-sync/core/upstream"
)

// Identity computes the content-stable identity of an attachment.
//
// This is the single most important invariant of the deduplicator: the hash
// is computed from the attachment's intrinsic metadata (origin-assigned id,
// filename, byte size, media type) and NEVER from its URL. The upstream
// issues time-limited signed URLs that rotate on every fetch even when the
// underlying file is unchanged, so keying the dedup ledger by URL would
// re-upload every asset on every run. Two fetches of the same physical file
// at different times must yield the same identity; a change in any intrinsic
// field yields a different one and triggers a re-upload.
func Identity(att upstream.Attachment) string {
	// 0x1f separators keep the concatenation unambiguous.
	sum := sha256.Sum256([]byte(strings.Join([]string{
		att.ID,
		att.Filename,
		fmt.Sprintf("%d", att.Size),
		att.MimeType,
	}, "\x1f")))
	return hex.EncodeToString(sum[:16])
}
