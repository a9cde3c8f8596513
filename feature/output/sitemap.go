package output

import (
	"encoding/xml"
	"fmt"
	"path/filepath"

	"portfolio-sync/core/utils"
	"portfolio-sync/feature/variant"
)

const sitemapXmlns = "http://www.sitemaps.org/schemas/sitemap/0.9"

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func (w *Writer) writeSitemap(def variant.Definition, ds *variant.Dataset) error {
	set := urlSet{Xmlns: sitemapXmlns}

	// Index page of the variant's namespace first, then one entry per record.
	set.URLs = append(set.URLs, sitemapURL{Loc: w.siteBase + "/" + def.Namespace})
	for _, rec := range ds.Records {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:     w.recordURL(def.Namespace, rec.Slug),
			LastMod: rec.LastModified,
		})
	}

	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sitemap for %s: %w", ds.VariantID, err)
	}
	data := append([]byte(xml.Header), body...)
	data = append(data, '\n')

	path := filepath.Join(w.outDir, fmt.Sprintf("sitemap-%s.xml", ds.VariantID))
	return utils.WriteFileAtomic(path, data, 0o644)
}
