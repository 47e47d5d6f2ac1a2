package repo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/modelstack/driftwatch/internal/cache"
	"github.com/modelstack/driftwatch/internal/models"
)

type stubCache struct {
	entries map[string][]byte
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[string][]byte)}
}

func (s *stubCache) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := s.entries[key]; ok {
		return v, nil
	}
	return nil, cache.ErrCacheMiss
}

func (s *stubCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.entries[key] = value
	return nil
}

func (s *stubCache) Del(_ context.Context, key string) error {
	delete(s.entries, key)
	return nil
}

func (s *stubCache) Close() error { return nil }

func featureService(t *testing.T, hits *int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/features/baseline", func(w http.ResponseWriter, r *http.Request) {
		*hits++
		var req struct {
			Version string `json:"version"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Version == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(models.FeatureSample{
			Order:   []string{"amount"},
			Columns: map[string][]float64{"amount": {10, 11, 12}},
		})
	})
	mux.HandleFunc("/api/v1/features/window", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.FeatureSample{
			Order:   []string{"amount"},
			Columns: map[string][]float64{"amount": {500, 510}},
		})
	})
	return httptest.NewServer(mux)
}

func TestFetchBaselineCachesByVersion(t *testing.T) {
	hits := 0
	srv := featureService(t, &hits)
	defer srv.Close()

	store := newStubCache()
	client := NewFeatureServiceClient(srv.URL, "/api/v1/features/baseline", "/api/v1/features/window", time.Second, store, time.Minute)

	ctx := context.Background()
	first, err := client.FetchBaseline(ctx, "baseline-v1")
	if err != nil {
		t.Fatalf("fetch baseline: %v", err)
	}
	second, err := client.FetchBaseline(ctx, "baseline-v1")
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected a single origin hit, got %d", hits)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("cached sample differs (-first +second):\n%s", diff)
	}
}

func TestFetchBaselineDropsCorruptCacheEntry(t *testing.T) {
	hits := 0
	srv := featureService(t, &hits)
	defer srv.Close()

	store := newStubCache()
	store.entries["driftwatch:baseline:baseline-v1"] = []byte("{corrupt")
	client := NewFeatureServiceClient(srv.URL, "/api/v1/features/baseline", "/api/v1/features/window", time.Second, store, time.Minute)

	sample, err := client.FetchBaseline(context.Background(), "baseline-v1")
	if err != nil {
		t.Fatalf("fetch baseline: %v", err)
	}
	if len(sample.Columns["amount"]) != 3 {
		t.Fatalf("unexpected sample: %+v", sample)
	}
	if hits != 1 {
		t.Fatalf("corrupt entry should fall through to origin, hits=%d", hits)
	}
	if string(store.entries["driftwatch:baseline:baseline-v1"]) == "{corrupt" {
		t.Fatal("corrupt entry should have been replaced")
	}
}

func TestFetchBaselineRequiresVersion(t *testing.T) {
	client := NewFeatureServiceClient("http://localhost:0", "/b", "/w", time.Second, nil, 0)
	if _, err := client.FetchBaseline(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty version")
	}
}

func TestFetchWindow(t *testing.T) {
	hits := 0
	srv := featureService(t, &hits)
	defer srv.Close()

	client := NewFeatureServiceClient(srv.URL, "/api/v1/features/baseline", "/api/v1/features/window", time.Second, nil, 0)
	sample, err := client.FetchWindow(context.Background(), time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("fetch window: %v", err)
	}
	if diff := cmp.Diff([]float64{500, 510}, sample.Columns["amount"]); diff != "" {
		t.Fatalf("window mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchWindowPropagatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewFeatureServiceClient(srv.URL, "/b", "/w", time.Second, nil, 0)
	if _, err := client.FetchWindow(context.Background(), time.Now().Add(-time.Hour), time.Now()); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
