package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/modelstack/driftwatch/internal/cache"
	"github.com/modelstack/driftwatch/internal/models"
)

// FeatureServiceClient fetches materialised feature samples from the external
// feature-engineering service. Baseline samples are immutable per version and
// are cached through the configured provider.
type FeatureServiceClient struct {
	baseURL      string
	baselinePath string
	windowPath   string
	httpClient   *http.Client
	cache        cache.Provider
	baselineTTL  time.Duration
}

// NewFeatureServiceClient constructs a client targeting the configured service.
func NewFeatureServiceClient(baseURL, baselinePath, windowPath string, timeout time.Duration, cacheProvider cache.Provider, baselineTTL time.Duration) *FeatureServiceClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FeatureServiceClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		baselinePath: baselinePath,
		windowPath:   windowPath,
		httpClient:   &http.Client{Timeout: timeout},
		cache:        cacheProvider,
		baselineTTL:  baselineTTL,
	}
}

// FetchBaseline retrieves the versioned baseline sample, consulting the cache
// first. A stale or corrupt cache entry is dropped, never served.
func (c *FeatureServiceClient) FetchBaseline(ctx context.Context, version string) (models.FeatureSample, error) {
	if c == nil || c.baseURL == "" {
		return models.FeatureSample{}, fmt.Errorf("feature service base URL not configured")
	}
	if version == "" {
		return models.FeatureSample{}, fmt.Errorf("baseline version is required")
	}

	// Cache trouble is never fatal; any miss or error falls through to origin.
	key := "driftwatch:baseline:" + version
	if cached, err := c.cache.Get(ctx, key); err == nil {
		var sample models.FeatureSample
		if err := json.Unmarshal(cached, &sample); err == nil {
			return sample, nil
		}
		_ = c.cache.Del(ctx, key)
	}

	payload := map[string]any{"version": version}
	var sample models.FeatureSample
	if err := c.postJSON(ctx, c.resolvePath(c.baselinePath), payload, &sample); err != nil {
		return models.FeatureSample{}, fmt.Errorf("fetch baseline %s: %w", version, err)
	}
	if len(sample.Columns) == 0 {
		return models.FeatureSample{}, fmt.Errorf("baseline %s returned no columns", version)
	}

	if encoded, err := json.Marshal(sample); err == nil {
		_ = c.cache.Set(ctx, key, encoded, c.baselineTTL)
	}
	return sample, nil
}

// FetchWindow retrieves the current sample for the given collection window.
func (c *FeatureServiceClient) FetchWindow(ctx context.Context, start, end time.Time) (models.FeatureSample, error) {
	if c == nil || c.baseURL == "" {
		return models.FeatureSample{}, fmt.Errorf("feature service base URL not configured")
	}

	payload := map[string]any{
		"start": start.Format(time.RFC3339),
		"end":   end.Format(time.RFC3339),
	}
	var sample models.FeatureSample
	if err := c.postJSON(ctx, c.resolvePath(c.windowPath), payload, &sample); err != nil {
		return models.FeatureSample{}, fmt.Errorf("fetch current window: %w", err)
	}
	if len(sample.Columns) == 0 {
		return models.FeatureSample{}, fmt.Errorf("current window returned no columns")
	}
	return sample, nil
}

func (c *FeatureServiceClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *FeatureServiceClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feature service returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
