package variant

import (
	"sort"
	"time"

	"portfolio-sync/core/upstream"
	"portfolio-sync/core/utils"
	"portfolio-sync/feature/mirror"
)

// Build materializes one variant's dataset from the merged record sets.
//
// It is a pure function of its inputs with no shared mutable state between
// variant builds, which is what lets several variants be produced from a
// single upstream fetch: the expensive fetch happens once per run, the cheap
// in-memory filtering once per variant.
//
// Records of the primary table become the dataset's main record list; every
// other table becomes an auxiliary collection keyed by table name. Cross-
// table references (record ids in a Related field) are resolved to slugs
// across all tables.
func Build(sets map[string]map[string]upstream.Record, primaryTable string, mapping *mirror.MappingStore, def Definition, generatedAt time.Time) *Dataset {
	// Slug lookup across every table, for resolving cross-table references.
	slugByID := make(map[string]string)
	for table := range sets {
		for id, rec := range sets[table] {
			slugByID[id] = Slugify(utils.ToString(rec.Fields["Title"]), utils.ToString(rec.Fields["Date"]))
		}
	}

	ds := &Dataset{
		VariantID:   def.ID,
		GeneratedAt: generatedAt,
		Records:     []NormalizedRecord{},
		Config: map[string]any{
			"namespace": def.Namespace,
		},
	}

	ds.Records = normalizeTable(sets[primaryTable], mapping, def, slugByID)

	for table, set := range sets {
		if table == primaryTable {
			continue
		}
		normalized := normalizeTable(set, mapping, def, slugByID)
		if len(normalized) == 0 {
			continue
		}
		if ds.Collections == nil {
			ds.Collections = map[string][]NormalizedRecord{}
		}
		ds.Collections[table] = normalized
	}

	return ds
}

func normalizeTable(set map[string]upstream.Record, mapping *mirror.MappingStore, def Definition, slugByID map[string]string) []NormalizedRecord {
	out := []NormalizedRecord{}
	for _, rec := range set {
		status := utils.ToString(rec.Fields["Status"])
		audiences := utils.ToStringSlice(rec.Fields["Audience"])
		if !def.Includes(status, audiences) {
			continue
		}
		out = append(out, normalize(rec, mapping, slugByID))
	}

	// Deterministic ordering: newest first, slug as tie-break.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].Slug < out[j].Slug
	})
	return out
}

func normalize(rec upstream.Record, mapping *mirror.MappingStore, slugByID map[string]string) NormalizedRecord {
	title := utils.ToString(rec.Fields["Title"])
	date := utils.ToString(rec.Fields["Date"])

	nr := NormalizedRecord{
		ID:           rec.ID,
		Slug:         Slugify(title, date),
		Title:        title,
		Description:  utils.ToString(rec.Fields["Description"]),
		Category:     utils.ToString(rec.Fields["Category"]),
		Status:       utils.ToString(rec.Fields["Status"]),
		Featured:     utils.ToBool(rec.Fields["Featured"]),
		Date:         date,
		Audiences:    utils.ToStringSlice(rec.Fields["Audience"]),
		LastModified: rec.LastModified,
	}

	// Hero is attachment index 0, the gallery is everything after it. URLs
	// resolve through the mapping store with origin fallback for assets the
	// mirror could not upload.
	atts := rec.Attachments()
	for i, att := range atts {
		url := mapping.ResolveURL(rec.ID, i, att.URL)
		if i == 0 {
			nr.Hero = url
			continue
		}
		nr.Gallery = append(nr.Gallery, url)
	}

	for _, ref := range utils.ToStringSlice(rec.Fields["Related"]) {
		if slug, ok := slugByID[ref]; ok {
			nr.Related = append(nr.Related, slug)
		}
	}

	return nr
}
