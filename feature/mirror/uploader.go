package mirror

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"

	"portfolio-sync/core/storage"
	"portfolio-sync/core/upstream"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Uploader mirrors upstream attachments into the CDN bucket, uploading only
// when an attachment's identity is new or changed.
type Uploader struct {
	client     storage.Client
	bucket     string
	publicBase string
	http       *http.Client
	log        *zap.Logger
}

// NewUploader creates an Uploader bound to the configured mirror bucket.
func NewUploader(client storage.Client, cfg storage.Config, log *zap.Logger) *Uploader {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	return &Uploader{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		http:       &http.Client{Timeout: time.Duration(timeout) * time.Second},
		log:        log,
	}
}

// EnsureBucket verifies the mirror bucket exists, creating it if needed.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("failed to check mirror bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create mirror bucket: %w", err)
	}
	return nil
}

// Mirror resolves every attachment of a record against the prior ledger
// entry. Matching identities reuse the stored mirror URL at zero upload
// calls; new or changed identities are uploaded under a deterministic object
// name derived from (table, recordID, index) so re-uploads overwrite in
// place. Attachment order is preserved so index-based references stay stable.
//
// A single upload failure never aborts the run: the failed attachment gets a
// placeholder entry (empty MirrorURL, so consumers fall back to the origin
// URL) and the next run retries it. The returned flag reports whether the
// entry list differs from prior and the ledger needs persisting.
func (u *Uploader) Mirror(ctx context.Context, table, recordID string, atts []upstream.Attachment, prior []MirroredAsset) ([]MirroredAsset, bool) {
	entry := make([]MirroredAsset, 0, len(atts))

	for i, att := range atts {
		identity := Identity(att)

		if i < len(prior) && prior[i].Valid() && prior[i].Identity == identity {
			// Same content, possibly a rotated signed URL: refresh the
			// origin without re-uploading.
			asset := prior[i]
			asset.OriginURL = att.URL
			entry = append(entry, asset)
			continue
		}

		asset, err := u.upload(ctx, table, recordID, i, att, identity)
		if err != nil {
			u.log.Warn("asset upload failed, record falls back to origin URL",
				zap.String("table", table),
				zap.String("record", recordID),
				zap.Int("index", i),
				zap.String("filename", att.Filename),
				zap.Error(err))
			entry = append(entry, MirroredAsset{OriginURL: att.URL})
			continue
		}
		entry = append(entry, asset)
	}

	return entry, !slices.Equal(entry, prior)
}

// Remove deletes the mirrored objects of a deleted source record. Failures
// are logged and ignored; an orphaned object costs storage, not correctness.
func (u *Uploader) Remove(ctx context.Context, table, recordID string, assets []MirroredAsset) {
	for i, asset := range assets {
		if !asset.Valid() {
			continue
		}
		// Format is empty for extension-less filenames; the stored object
		// name has no dot in that case.
		ext := ""
		if asset.Format != "" {
			ext = "." + asset.Format
		}
		name := objectName(table, recordID, i, ext)
		if err := u.client.RemoveObject(ctx, u.bucket, name, minio.RemoveObjectOptions{}); err != nil {
			u.log.Warn("failed to remove mirrored object for deleted record",
				zap.String("object", name), zap.Error(err))
		}
	}
}

func (u *Uploader) upload(ctx context.Context, table, recordID string, index int, att upstream.Attachment, identity string) (MirroredAsset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		return MirroredAsset{}, fmt.Errorf("failed to build origin request: %w", err)
	}

	resp, err := u.http.Do(req)
	if err != nil {
		return MirroredAsset{}, fmt.Errorf("failed to download origin asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return MirroredAsset{}, fmt.Errorf("origin returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return MirroredAsset{}, fmt.Errorf("failed to read origin asset: %w", err)
	}

	ext := strings.ToLower(path.Ext(att.Filename))
	name := objectName(table, recordID, index, ext)

	_, err = u.client.PutObject(ctx, u.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: att.MimeType,
		// Objects are overwritten in place when content changes, so the CDN
		// must revalidate rather than cache forever.
		CacheControl: "public, max-age=0, must-revalidate",
	})
	if err != nil {
		return MirroredAsset{}, fmt.Errorf("failed to upload to mirror: %w", err)
	}

	return MirroredAsset{
		Identity:  identity,
		OriginURL: att.URL,
		MirrorURL: u.publicBase + "/" + name,
		Format:    strings.TrimPrefix(ext, "."),
		Bytes:     int64(len(data)),
	}, nil
}

// objectName derives the deterministic mirror object name for an attachment.
func objectName(table, recordID string, index int, ext string) string {
	return path.Join("mirror", table, recordID, fmt.Sprintf("%d%s", index, ext))
}
