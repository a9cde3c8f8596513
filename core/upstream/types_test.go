package upstream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAttachments(t *testing.T) {
	raw := `{
		"id": "rec1",
		"fields": {
			"Title": "Sculpture",
			"Gallery": [
				{"id": "attB", "url": "https://origin/b?sig=1", "filename": "b.jpg", "size": 2048, "mimeType": "image/jpeg"}
			],
			"Cover": [
				{"id": "attA", "url": "https://origin/a?sig=1", "filename": "a.png", "size": 1024, "mimeType": "image/png"}
			],
			"Tags": ["art", "steel"]
		},
		"lastModified": "2026-01-01T00:00:00.000Z"
	}`

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))

	atts := rec.Attachments()
	require.Len(t, atts, 2)

	// Fields are visited in sorted name order: Cover before Gallery.
	assert.Equal(t, "attA", atts[0].ID)
	assert.Equal(t, "a.png", atts[0].Filename)
	assert.Equal(t, int64(1024), atts[0].Size)
	assert.Equal(t, "attB", atts[1].ID)
}

func TestRecordAttachments_IgnoresNonAttachmentLists(t *testing.T) {
	rec := Record{
		ID: "rec1",
		Fields: map[string]any{
			"Tags":   []any{"a", "b"},
			"Links":  []any{map[string]any{"href": "x"}},
			"Title":  "no attachments here",
			"Number": float64(3),
		},
	}

	assert.Empty(t, rec.Attachments())
}
