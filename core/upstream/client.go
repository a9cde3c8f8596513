package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Client defines the read operations the pipeline needs from the upstream
// tabular store.
type Client interface {
	// ListSnapshot returns the id -> lastModified projection of a table
	// across all pages. An empty table yields an empty map, not an error.
	ListSnapshot(ctx context.Context, table string) (map[string]string, error)
	// FetchRecords returns full records for exactly the given ids, batched
	// into id-set queries. An empty id set performs zero network calls.
	FetchRecords(ctx context.Context, table string, ids []string) ([]Record, error)
}

// page is the wire shape of one paginated list response.
type page struct {
	Records       []json.RawMessage `json:"records"`
	NextPageToken string            `json:"nextPageToken"`
	Error         *apiError         `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

const quotaErrorType = "QUOTA_EXCEEDED"

type httpClient struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

// NewClient creates an upstream client speaking the paginated list endpoint
// with bearer authentication.
func NewClient(cfg Config, log *zap.Logger) Client {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}

	return &httpClient{
		cfg: cfg,
		http: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
		log: log,
	}
}

func (c *httpClient) ListSnapshot(ctx context.Context, table string) (map[string]string, error) {
	entries := make(map[string]string)

	params := url.Values{}
	// Field projection: ask only for the modification stamp, never payloads.
	params.Set("projection", "snapshot")

	// A snapshot entry that cannot be decoded must fail the whole table: a
	// record silently missing from the projection would be classified as
	// deleted downstream, turning a serialization glitch into a purge of its
	// cached state and mirrored assets.
	var decodeErr error
	err := c.forEachPage(ctx, "snapshot", table, params, func(raw json.RawMessage) {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil || rec.ID == "" {
			if decodeErr == nil {
				decodeErr = &RequestError{Op: "snapshot", Table: table,
					Err: fmt.Errorf("malformed snapshot entry: %q", string(raw))}
			}
			return
		}
		entries[rec.ID] = rec.LastModified
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}

	return entries, nil
}

func (c *httpClient) FetchRecords(ctx context.Context, table string, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var records []Record
	for start := 0; start < len(ids); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(ids) {
			end = len(ids)
		}

		params := url.Values{}
		params.Set("ids", strings.Join(ids[start:end], ","))

		err := c.forEachPage(ctx, "fetch", table, params, func(raw json.RawMessage) {
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil || rec.ID == "" {
				// Partial-table success: the record stays at its cached
				// state until a later run decodes it.
				c.log.Warn("skipping malformed record payload",
					zap.String("table", table), zap.Error(err))
				return
			}
			records = append(records, rec)
		})
		if err != nil {
			return nil, err
		}
	}

	return records, nil
}

// forEachPage walks every page of a list request, invoking fn per raw record.
// Transient failures are retried with bounded exponential backoff; quota
// rejections surface immediately as ErrQuotaExceeded.
func (c *httpClient) forEachPage(ctx context.Context, op, table string, params url.Values, fn func(json.RawMessage)) error {
	pageToken := ""
	for {
		p := params
		if pageToken != "" {
			p = url.Values{}
			for k, v := range params {
				p[k] = v
			}
			p.Set("pageToken", pageToken)
		}

		var pg page
		operation := func() error {
			var err error
			pg, err = c.getPage(ctx, op, table, p)
			if err == nil {
				return nil
			}
			if IsQuota(err) {
				return backoff.Permanent(err)
			}
			var reqErr *RequestError
			if errors.As(err, &reqErr) && reqErr.Transient() {
				c.log.Warn("transient upstream failure, retrying",
					zap.String("op", op), zap.String("table", table), zap.Error(err))
				return err
			}
			return backoff.Permanent(err)
		}

		bo := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.cfg.MaxRetries)),
			ctx,
		)
		if err := backoff.Retry(operation, bo); err != nil {
			return err
		}

		for _, raw := range pg.Records {
			fn(raw)
		}

		if pg.NextPageToken == "" {
			return nil
		}
		pageToken = pg.NextPageToken
	}
}

func (c *httpClient) getPage(ctx context.Context, op, table string, params url.Values) (page, error) {
	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + url.PathEscape(table)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return page{}, &RequestError{Op: op, Table: table, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return page{}, &RequestError{Op: op, Table: table, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return page{}, &RequestError{Op: op, Table: table, Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return page{}, fmt.Errorf("%s %s: %w", op, table, ErrQuotaExceeded)
	}
	if resp.StatusCode != http.StatusOK {
		return page{}, &RequestError{Op: op, Table: table, Status: resp.StatusCode}
	}

	var pg page
	if err := json.Unmarshal(body, &pg); err != nil {
		return page{}, &RequestError{Op: op, Table: table, Err: fmt.Errorf("malformed page: %w", err)}
	}
	// Some upstreams report quota exhaustion with a 200 body marker.
	if pg.Error != nil && pg.Error.Type == quotaErrorType {
		return page{}, fmt.Errorf("%s %s: %w", op, table, ErrQuotaExceeded)
	}

	return pg, nil
}
