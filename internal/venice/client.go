// Package venice fetches the Venice.ai model catalog, caching raw
// records per partition so outages degrade to stale data instead of
// failures.
package venice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AbstergoSweden/VeniceAI/internal/cache"
	"github.com/AbstergoSweden/VeniceAI/internal/catalog"
	"github.com/AbstergoSweden/VeniceAI/internal/httpclient"
	"github.com/AbstergoSweden/VeniceAI/internal/retry"
)

// DefaultBaseURL is the public Venice API endpoint.
const DefaultBaseURL = "https://api.venice.ai/api/v1"

const userAgent = "venice-sync/2.1"

// fallbackTypeKey annotates raw records that do not declare their own
// type with the partition they were fetched under. The annotation is
// written into the cache blob so cached multi-partition merges replay
// with correct per-record fallbacks.
const fallbackTypeKey = "_fallback_type"

// ErrEmptyCatalog reports a fetch that succeeded (live or stale) but
// yielded zero normalizable models. Distinct from a failed fetch.
var ErrEmptyCatalog = errors.New("catalog contains no models")

// FetchError reports a live fetch that exhausted its retries with no
// stale cache to fall back on.
type FetchError struct {
	Type catalog.ModelType
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s models: %v", e.Type, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusError is a non-2xx API response. Not retryable except for 429,
// which the client wraps in retry.Transient before it surfaces.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the Venice API with retry and cache support.
type Client struct {
	apiKey  string
	baseURL string
	http    *httpclient.Client
	cache   *cache.Store // nil disables caching
	policy  retry.Policy
}

// Option configures the Client.
type Option func(*Client)

// WithCache enables the two-TTL raw-record cache.
func WithCache(s *cache.Store) Option {
	return func(c *Client) { c.cache = s }
}

// WithHTTPClient replaces the default transport.
func WithHTTPClient(h *httpclient.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// New creates a Venice API client.
func New(apiKey, baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpclient.New(httpclient.WithRateLimit(10)),
		policy:  retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchModels returns the sorted model list for one partition, or all
// of them when typ is TypeAll.
//
// Fresh cache short-circuits the network. Partitions are fetched
// sequentially and a failure on one does not abort the others. When
// every partition fails, stale cache (if any) is served with a
// degraded-service notice; otherwise the fetch failure propagates.
func (c *Client) FetchModels(ctx context.Context, typ catalog.ModelType) ([]catalog.Model, error) {
	key := "models_" + string(typ)

	if c.cache != nil {
		if records, fresh := c.cache.Get(key); fresh {
			return c.finish(records, typ)
		}
	}

	var raw []map[string]any
	var fetchErr error
	for _, ft := range typ.FetchTypes() {
		records, err := c.fetchPartition(ctx, ft)
		if err != nil {
			slog.Warn("failed to fetch models", "type", ft, "error", err)
			fetchErr = err
			continue
		}
		raw = append(raw, records...)
	}

	if len(raw) > 0 && c.cache != nil {
		c.cache.Set(key, raw)
	}

	if len(raw) == 0 {
		if c.cache != nil {
			if stale := c.cache.GetStale(key); stale != nil {
				slog.Warn("serving stale catalog after failed fetch", "key", key)
				return c.finish(stale, typ)
			}
		}
		if fetchErr != nil {
			return nil, &FetchError{Type: typ, Err: fetchErr}
		}
	}

	return c.finish(raw, typ)
}

// fetchPartition performs the retried live fetch for one partition and
// annotates records that lack their own type.
func (c *Client) fetchPartition(ctx context.Context, typ catalog.ModelType) ([]map[string]any, error) {
	payload, err := retry.Do(ctx, c.policy, func(ctx context.Context) (map[string]any, error) {
		return c.get(ctx, "models", url.Values{"type": {string(typ)}})
	})
	if err != nil {
		return nil, err
	}

	items, _ := payload["data"].([]any)
	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if _, ok := record["type"]; !ok {
			record[fallbackTypeKey] = string(typ)
		}
		records = append(records, record)
	}
	return records, nil
}

// get performs one API call and classifies the failure modes: transport
// errors, body decode errors, and rate limiting retry; other non-2xx
// statuses propagate immediately.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values) (map[string]any, error) {
	u := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	slog.Debug("fetching", "url", u, "query", query.Encode())

	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"Content-Type":  "application/json",
		"User-Agent":    userAgent,
	}

	resp, err := c.http.Get(ctx, u, query, headers)
	if err != nil {
		return nil, &retry.Transient{Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &retry.Transient{
			Err:        &StatusError{StatusCode: resp.StatusCode, Body: "rate limited"},
			RetryAfter: parseRetryAfter(resp.Header),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(resp.Body), 200)}
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &retry.Transient{Err: fmt.Errorf("decoding response: %w", err)}
	}
	return payload, nil
}

// finish normalizes raw records, drops malformed ones, and returns the
// result sorted by id. Sorting lives here, not in the parser.
func (c *Client) finish(raw []map[string]any, typ catalog.ModelType) ([]catalog.Model, error) {
	defaultType := typ
	if typ == catalog.TypeAll {
		defaultType = catalog.TypeText
	}

	models := make([]catalog.Model, 0, len(raw))
	for _, record := range raw {
		fallback := defaultType
		if s, ok := record[fallbackTypeKey].(string); ok && s != "" {
			fallback = catalog.ModelType(s)
		}
		if m := catalog.Parse(record, fallback); m != nil {
			models = append(models, *m)
		}
	}

	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	slog.Info("parsed models", "count", len(models), "raw", len(raw))

	if len(models) == 0 {
		return nil, ErrEmptyCatalog
	}
	return models, nil
}

// Status reports API reachability.
type Status struct {
	OK              bool
	ModelsAvailable int
	StatusCode      int // zero when the failure carried no HTTP status
	Message         string
}

// APIStatus probes the text partition and reports whether the API is
// serving models. It never touches the cache.
func (c *Client) APIStatus(ctx context.Context) Status {
	payload, err := retry.Do(ctx, c.policy, func(ctx context.Context) (map[string]any, error) {
		return c.get(ctx, "models", url.Values{"type": {string(catalog.TypeText)}})
	})
	if err != nil {
		st := Status{Message: err.Error()}
		var se *StatusError
		if errors.As(err, &se) {
			st.StatusCode = se.StatusCode
		}
		return st
	}

	items, _ := payload["data"].([]any)
	return Status{OK: true, ModelsAvailable: len(items)}
}

func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
