package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"portfolio-sync/core/utils"
	"portfolio-sync/feature/variant"

	"go.uber.org/zap"
)

// Writer serializes each variant's dataset plus its derived artifacts, all
// namespaced by variant id so two variants never collide on output paths.
// Every write goes through the atomic temp-then-rename helper.
type Writer struct {
	outDir   string
	siteBase string
	log      *zap.Logger
}

// NewWriter creates a Writer rooted at outDir.
func NewWriter(outDir, siteBaseURL string, log *zap.Logger) *Writer {
	return &Writer{
		outDir:   outDir,
		siteBase: strings.TrimSuffix(siteBaseURL, "/"),
		log:      log,
	}
}

// DatasetPath returns the output path of a variant's dataset file.
func (w *Writer) DatasetPath(variantID string) string {
	return filepath.Join(w.outDir, fmt.Sprintf("dataset-%s.json", variantID))
}

// WriteAll writes the dataset and its three derived artifacts for one
// variant.
func (w *Writer) WriteAll(def variant.Definition, ds *variant.Dataset) error {
	if err := w.writeDataset(ds); err != nil {
		return err
	}
	if err := w.writeSitemap(def, ds); err != nil {
		return err
	}
	if err := w.writeShareMeta(def, ds); err != nil {
		return err
	}
	if err := w.writeRobots(def); err != nil {
		return err
	}
	w.log.Info("variant output written",
		zap.String("variant", def.ID),
		zap.Int("records", len(ds.Records)))
	return nil
}

// LoadDataset reads a previously written dataset, the fallback source in
// degraded mode. A missing file returns (nil, nil).
func (w *Writer) LoadDataset(variantID string) (*variant.Dataset, error) {
	data, err := os.ReadFile(w.DatasetPath(variantID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached dataset for %s: %w", variantID, err)
	}

	var ds variant.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode cached dataset for %s: %w", variantID, err)
	}
	return &ds, nil
}

func (w *Writer) writeDataset(ds *variant.Dataset) error {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dataset for %s: %w", ds.VariantID, err)
	}
	return utils.WriteFileAtomic(w.DatasetPath(ds.VariantID), append(data, '\n'), 0o644)
}

func (w *Writer) writeShareMeta(def variant.Definition, ds *variant.Dataset) error {
	manifest := shareManifest{VariantID: ds.VariantID, Entries: []shareEntry{}}
	for _, rec := range ds.Records {
		manifest.Entries = append(manifest.Entries, shareEntry{
			Slug:        rec.Slug,
			URL:         w.recordURL(def.Namespace, rec.Slug),
			Title:       rec.Title,
			Description: rec.Description,
			Image:       rec.Hero,
		})
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode share metadata for %s: %w", ds.VariantID, err)
	}
	path := filepath.Join(w.outDir, fmt.Sprintf("share-meta-%s.json", ds.VariantID))
	return utils.WriteFileAtomic(path, append(data, '\n'), 0o644)
}

func (w *Writer) writeRobots(def variant.Definition) error {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Allow: /\n")
	b.WriteString("Disallow: /drafts/\n")
	b.WriteString("\n")
	fmt.Fprintf(&b, "Sitemap: %s/sitemap-%s.xml\n", w.siteBase, def.ID)

	path := filepath.Join(w.outDir, fmt.Sprintf("robots-%s.txt", def.ID))
	return utils.WriteFileAtomic(path, []byte(b.String()), 0o644)
}

func (w *Writer) recordURL(namespace, slug string) string {
	return w.siteBase + "/" + namespace + "/" + slug
}

type shareManifest struct {
	VariantID string       `json:"variant_id"`
	Entries   []shareEntry `json:"entries"`
}

type shareEntry struct {
	Slug        string `json:"slug"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}
