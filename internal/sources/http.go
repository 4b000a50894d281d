package sources

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/vats98754/aus-job-fetcher/common/cache"
	"github.com/vats98754/aus-job-fetcher/common/telemetry"
	"github.com/vats98754/aus-job-fetcher/internal/errors"
)

const maxBodyBytes = 10 << 20

var secretParams = []string{"app_id", "app_key"}

// Fetcher performs GET requests for the adapters with browser-like headers
// and an optional response cache shared across runs.
type Fetcher struct {
	client    *http.Client
	cache     cache.Cache
	cacheTTL  time.Duration
	userAgent string
	logger    *zap.Logger
}

// NewFetcher returns a Fetcher. A nil cache disables response caching.
func NewFetcher(client *http.Client, c cache.Cache, cacheTTL time.Duration, userAgent string, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{
		client:    client,
		cache:     c,
		cacheTTL:  cacheTTL,
		userAgent: userAgent,
		logger:    logger,
	}
}

func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "Fetcher.Get")
	defer span.End()

	display := redactURL(rawURL)
	span.SetAttributes(telemetry.String("http.url", display))

	key := cacheKey(rawURL)
	if f.cache != nil {
		var cached []byte
		err := f.cache.Get(ctx, key, &cached)
		if err == nil {
			span.SetAttributes(telemetry.String("cache.result", "hit"))
			f.logger.Debug("cache hit", zap.String("url", display))
			return cached, nil
		} else if !stderrors.Is(err, cache.ErrNotFound) {
			span.SetAttributes(telemetry.String("cache.result", "error"))
			span.RecordError(err)
			f.logger.Warn("cache error", zap.String("url", display), zap.Error(err))
		} else {
			span.SetAttributes(telemetry.String("cache.result", "miss"))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		span.RecordError(err)
		return nil, errors.InvalidInput("creating request", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Unavailable("executing request", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.Warn("failed to close response body", zap.Error(cerr))
		}
	}()

	span.SetAttributes(
		telemetry.Int("http.status_code", resp.StatusCode),
		telemetry.String("http.method", http.MethodGet),
	)

	if err := statusError(resp.StatusCode); err != nil {
		f.logger.Warn("unexpected status code",
			zap.String("url", display),
			zap.Int("status_code", resp.StatusCode))
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		span.RecordError(err)
		return nil, errors.Unavailable("reading response", err)
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, key, body, f.cacheTTL); err != nil {
			f.logger.Warn("failed to cache response", zap.String("url", display), zap.Error(err))
		}
	}
	return body, nil
}

// GetJSON fetches rawURL and decodes the body into v.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, v interface{}) error {
	body, err := f.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Internal("decoding response", err)
	}
	return nil
}

func statusError(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return errors.NotFound("resource not found", nil)
	case code == http.StatusTooManyRequests:
		return errors.RateLimit("rate limited", nil)
	case code >= http.StatusInternalServerError:
		return errors.Unavailable(fmt.Sprintf("unexpected status code: %d", code), nil)
	default:
		return errors.Internal(fmt.Sprintf("unexpected status code: %d", code), nil)
	}
}

func cacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return "http:" + hex.EncodeToString(sum[:16])
}

// redactURL hides credential query parameters so URLs can be logged.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	changed := false
	for _, p := range secretParams {
		if q.Has(p) {
			q.Set(p, "REDACTED")
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
