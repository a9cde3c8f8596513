package variant

import "time"

// NormalizedRecord is the typed shape the presentation layer consumes. The
// loosely-typed upstream field map is translated into it exactly once, here
// at the variant boundary; nothing downstream sees raw field maps.
type NormalizedRecord struct {
	ID           string   `json:"id"`
	Slug         string   `json:"slug"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Category     string   `json:"category,omitempty"`
	Status       string   `json:"status"`
	Featured     bool     `json:"featured,omitempty"`
	Date         string   `json:"date,omitempty"`
	Audiences    []string `json:"audiences,omitempty"`
	Hero         string   `json:"hero,omitempty"`
	Gallery      []string `json:"gallery,omitempty"`
	Related      []string `json:"related,omitempty"`
	LastModified string   `json:"last_modified"`
}

// Dataset is the pipeline's terminal artifact per variant: fully regenerable
// from the merged records, the mapping store and the variant definition, and
// therefore safely discardable at any time.
type Dataset struct {
	VariantID   string                        `json:"variant_id"`
	GeneratedAt time.Time                     `json:"generated_at"`
	Records     []NormalizedRecord            `json:"records"`
	Collections map[string][]NormalizedRecord `json:"collections,omitempty"`
	Config      map[string]any                `json:"config"`
}
