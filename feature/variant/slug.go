package variant

import "strings"

// Slugify derives the stable URL slug of a record from its title and date.
// The date prefix (YYYY-MM-DD) keeps slugs unique across records sharing a
// title. A title change yields a new slug.
func Slugify(title, date string) string {
	slug := slugToken(title)
	if len(date) >= 10 {
		if d := slugToken(date[:10]); d != "" {
			if slug == "" {
				return d
			}
			return d + "-" + slug
		}
	}
	return slug
}

// slugToken lowercases s and collapses every non-alphanumeric run into a
// single hyphen.
func slugToken(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
