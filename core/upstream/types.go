package upstream

import (
	"sort"

	"portfolio-sync/core/utils"
)

// Record is a full record as returned by the upstream store. Fields is the
// raw, loosely-typed field map; it is only interpreted at the normalization
// boundary (feature/variant) and by the attachment scanner below.
type Record struct {
	ID           string         `json:"id"`
	Fields       map[string]any `json:"fields"`
	LastModified string         `json:"lastModified"`
}

// Attachment is the stable metadata the upstream attaches to a binary asset.
// URL is a time-limited signed link and rotates between fetches; ID,
// Filename, Size and MimeType are intrinsic to the underlying file and do
// not.
type Attachment struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// Attachments extracts every attachment reference carried by the record's
// fields, in deterministic order: fields are visited in sorted name order and
// attachments keep their in-field order. Index-based references ("primary
// image is index 0") therefore stay stable across runs.
func (r Record) Attachments() []Attachment {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Attachment
	for _, name := range names {
		out = append(out, attachmentsFromValue(r.Fields[name])...)
	}
	return out
}

// attachmentsFromValue decodes a field value as a list of attachment objects.
// Anything that does not carry the attachment shape (id + url + filename)
// is ignored.
func attachmentsFromValue(val any) []Attachment {
	list, ok := val.([]any)
	if !ok {
		return nil
	}

	var out []Attachment
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil
		}
		att := Attachment{
			ID:       utils.ToString(m["id"]),
			URL:      utils.ToString(m["url"]),
			Filename: utils.ToString(m["filename"]),
			Size:     int64(utils.ToInt(m["size"])),
			MimeType: utils.ToString(m["mimeType"]),
		}
		if att.ID == "" || att.URL == "" || att.Filename == "" {
			return nil
		}
		out = append(out, att)
	}
	return out
}
