package variant

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"portfolio-sync/core/upstream"
	"portfolio-sync/feature/mirror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var buildTime = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func projectRecord(id, title, date, status string, audiences ...string) upstream.Record {
	auds := make([]any, len(audiences))
	for i, a := range audiences {
		auds[i] = a
	}
	return upstream.Record{
		ID: id,
		Fields: map[string]any{
			"Title":    title,
			"Date":     date,
			"Status":   status,
			"Audience": auds,
		},
		LastModified: "2026-01-01T00:00:00.000Z",
	}
}

func TestBuild_InclusionRule(t *testing.T) {
	sets := map[string]map[string]upstream.Record{
		"projects": {
			"rec1": projectRecord("rec1", "Published general", "2026-01-05", "published", "general"),
			"rec2": projectRecord("rec2", "Draft", "2026-01-06", "draft", "general"),
			"rec3": projectRecord("rec3", "Published client", "2026-01-07", "published", "client"),
		},
	}
	sets["projects"]["rec1"].Fields["Featured"] = true
	def := Definition{
		ID:        "public",
		Namespace: "work",
		Include:   Include{Statuses: []string{"published"}, Audiences: []string{"general"}},
	}

	ds := Build(sets, "projects", mirror.NewMappingStore(), def, buildTime)

	require.Len(t, ds.Records, 1)
	assert.Equal(t, "rec1", ds.Records[0].ID)
	assert.True(t, ds.Records[0].Featured)
	assert.Equal(t, "public", ds.VariantID)
	assert.Equal(t, "work", ds.Config["namespace"])
}

func TestBuild_VariantIndependence(t *testing.T) {
	sets := map[string]map[string]upstream.Record{
		"projects": {
			"rec1": projectRecord("rec1", "General", "2026-01-05", "published", "general"),
			"rec2": projectRecord("rec2", "Client", "2026-01-06", "published", "client"),
		},
	}
	public := Definition{ID: "public", Namespace: "work", Include: Include{Audiences: []string{"general"}}}
	client := Definition{ID: "client", Namespace: "client-work", Include: Include{Audiences: []string{"client"}}}

	mapping := mirror.NewMappingStore()
	pubDS := Build(sets, "projects", mapping, public, buildTime)
	cliDS := Build(sets, "projects", mapping, client, buildTime)

	require.Len(t, pubDS.Records, 1)
	require.Len(t, cliDS.Records, 1)
	assert.NotEqual(t, pubDS.Records[0].ID, cliDS.Records[0].ID,
		"disjoint predicates must never share records")

	// Building the client variant again after "removing" the public one
	// yields byte-identical content: no shared state between builds.
	again := Build(sets, "projects", mapping, client, buildTime)
	assert.Equal(t, cliDS, again)
}

func TestBuild_SortedNewestFirst(t *testing.T) {
	sets := map[string]map[string]upstream.Record{
		"projects": {
			"rec1": projectRecord("rec1", "Older", "2026-01-01", "published"),
			"rec2": projectRecord("rec2", "Newer", "2026-01-09", "published"),
			"rec3": projectRecord("rec3", "Also newer", "2026-01-09", "published"),
		},
	}
	ds := Build(sets, "projects", mirror.NewMappingStore(), Definition{ID: "all", Namespace: "work"}, buildTime)

	require.Len(t, ds.Records, 3)
	assert.Equal(t, "2026-01-09-also-newer", ds.Records[0].Slug)
	assert.Equal(t, "2026-01-09-newer", ds.Records[1].Slug)
	assert.Equal(t, "2026-01-01-older", ds.Records[2].Slug)
}

func TestBuild_AssetResolutionAndCollections(t *testing.T) {
	rec := projectRecord("rec1", "With assets", "2026-01-05", "published")
	rec.Fields["Images"] = []any{
		map[string]any{"id": "att0", "url": "https://origin/hero?sig=1", "filename": "hero.png", "size": float64(10), "mimeType": "image/png"},
		map[string]any{"id": "att1", "url": "https://origin/g1?sig=1", "filename": "g1.jpg", "size": float64(20), "mimeType": "image/jpeg"},
	}

	post := upstream.Record{
		ID: "recP",
		Fields: map[string]any{
			"Title":   "A note",
			"Date":    "2026-01-08",
			"Status":  "published",
			"Related": []any{"rec1"},
		},
		LastModified: "2026-01-08T00:00:00.000Z",
	}

	sets := map[string]map[string]upstream.Record{
		"projects": {"rec1": rec},
		"posts":    {"recP": post},
	}

	mapping := mirror.NewMappingStore()
	mapping.Set("rec1", []mirror.MirroredAsset{
		{Identity: "i0", MirrorURL: "https://cdn/mirror/projects/rec1/0.png", Format: "png"},
		{OriginURL: "https://origin/g1?sig=1"}, // upload failed last run
	})

	ds := Build(sets, "projects", mapping, Definition{ID: "public", Namespace: "work"}, buildTime)

	require.Len(t, ds.Records, 1)
	assert.Equal(t, "https://cdn/mirror/projects/rec1/0.png", ds.Records[0].Hero)
	require.Len(t, ds.Records[0].Gallery, 1)
	assert.Equal(t, "https://origin/g1?sig=1", ds.Records[0].Gallery[0],
		"failed mirror slot falls back to the origin URL")

	require.Contains(t, ds.Collections, "posts")
	require.Len(t, ds.Collections["posts"], 1)
	assert.Equal(t, []string{"2026-01-05-with-assets"}, ds.Collections["posts"][0].Related,
		"cross-table reference resolved to slug")
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		title, date, want string
	}{
		{"Hello, World!", "2026-01-05", "2026-01-05-hello-world"},
		{"  spaces   everywhere  ", "", "spaces-everywhere"},
		{"Ünïcode Títle", "2026-02-01", "2026-02-01-n-code-t-tle"},
		{"", "2026-03-01", "2026-03-01"},
		{"CamelCase99", "2026-01-05T00:00:00.000Z", "2026-01-05-camelcase99"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.title, tt.date), "title=%q date=%q", tt.title, tt.date)
	}
}

func TestLoadDefinitions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "variants.yaml")

	t.Run("Valid", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte(`
variants:
  - id: public
    namespace: work
    include:
      statuses: [published]
      audiences: [general]
  - id: client
    namespace: client-work
    include:
      statuses: [published]
      audiences: [client]
`), 0o644))

		defs, err := LoadDefinitions(path)
		require.NoError(t, err)
		require.Len(t, defs, 2)
		assert.Equal(t, "public", defs[0].ID)
		assert.Equal(t, []string{"general"}, defs[0].Include.Audiences)
	})

	t.Run("NoVariants", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("variants: []\n"), 0o644))
		_, err := LoadDefinitions(path)
		assert.Error(t, err)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte(`
variants:
  - id: public
    namespace: a
  - id: public
    namespace: b
`), 0o644))
		_, err := LoadDefinitions(path)
		assert.Error(t, err)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := LoadDefinitions(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}
