package venice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AbstergoSweden/VeniceAI/internal/cache"
	"github.com/AbstergoSweden/VeniceAI/internal/catalog"
	"github.com/AbstergoSweden/VeniceAI/internal/retry"
)

// fastPolicy retries without sleeping.
func fastPolicy(retries int) retry.Policy {
	return retry.Policy{
		Retries:  retries,
		Delay:    time.Second,
		Backoff:  2.0,
		MaxDelay: time.Minute,
		Sleep:    func(context.Context, time.Duration) error { return nil },
	}
}

func modelsHandler(t *testing.T, byType map[string][]map[string]any, calls *int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		*calls++
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		data, ok := byType[r.URL.Query().Get("type")]
		if !ok {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	}
}

func newTestClient(baseURL string, opts ...Option) *Client {
	opts = append([]Option{WithRetryPolicy(fastPolicy(2))}, opts...)
	return New("test-key", baseURL, opts...)
}

func TestFetchModelsSortedByID(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(modelsHandler(t, map[string][]map[string]any{
		"text": {
			{"id": "zeta"},
			{"id": "alpha"},
			{"no_id": true},
			{"id": "mid"},
		},
	}, &calls))
	defer srv.Close()

	models, err := newTestClient(srv.URL).FetchModels(context.Background(), catalog.TypeText)
	if err != nil {
		t.Fatalf("FetchModels: %v", err)
	}
	if len(models) != 3 {
		t.Fatalf("got %d models, want 3 (malformed record dropped)", len(models))
	}
	for i, want := range []string{"alpha", "mid", "zeta"} {
		if models[i].ID != want {
			t.Errorf("models[%d].ID = %q, want %q", i, models[i].ID, want)
		}
	}
}

func TestFetchModelsFallbackType(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(modelsHandler(t, map[string][]map[string]any{
		"text":  {{"id": "t1"}},
		"image": {{"id": "i1"}, {"id": "i2", "type": "text"}},
		"code":  {{"id": "c1"}},
	}, &calls))
	defer srv.Close()

	models, err := newTestClient(srv.URL).FetchModels(context.Background(), catalog.TypeAll)
	if err != nil {
		t.Fatalf("FetchModels: %v", err)
	}

	types := map[string]catalog.ModelType{}
	for _, m := range models {
		types[m.ID] = m.Type
	}
	if types["i1"] != catalog.TypeImage {
		t.Errorf("i1 type = %q, want fetch-time fallback image", types["i1"])
	}
	if types["i2"] != catalog.TypeText {
		t.Errorf("i2 type = %q, want declared text", types["i2"])
	}
	if types["c1"] != catalog.TypeCode {
		t.Errorf("c1 type = %q, want code", types["c1"])
	}
}

func TestFetchModelsFreshCacheSkipsNetwork(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(modelsHandler(t, nil, &calls))
	defer srv.Close()

	store := cache.New(t.TempDir(), 5*time.Minute, 24*time.Hour)
	store.Set("models_text", []map[string]any{{"id": "cached-model"}})

	models, err := newTestClient(srv.URL, WithCache(store)).FetchModels(context.Background(), catalog.TypeText)
	if err != nil {
		t.Fatalf("FetchModels: %v", err)
	}
	if calls != 0 {
		t.Errorf("server calls = %d, want 0 on fresh cache hit", calls)
	}
	if len(models) != 1 || models[0].ID != "cached-model" {
		t.Errorf("models = %v", models)
	}
}

func TestFetchModelsStaleFallbackAfterFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	store := cache.New(dir, 5*time.Minute, 24*time.Hour)
	store.Set("models_text", []map[string]any{{"id": "stale-model"}})

	// Age the entry past fresh but well within stale.
	path := filepath.Join(dir, "models_text.json")
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatal(err)
	}

	models, err := newTestClient(srv.URL, WithCache(store)).FetchModels(context.Background(), catalog.TypeText)
	if err != nil {
		t.Fatalf("FetchModels should serve stale data, got: %v", err)
	}
	if len(models) != 1 || models[0].ID != "stale-model" {
		t.Errorf("models = %v", models)
	}
}

func TestFetchModelsFatalWithoutFallback(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchModels(context.Background(), catalog.TypeText)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FetchError", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusForbidden {
		t.Errorf("err = %v, want wrapped 403 StatusError", err)
	}
	if errors.Is(err, ErrEmptyCatalog) {
		t.Error("fetch failure must not be conflated with an empty catalog")
	}
	// 403 is not retryable.
	if calls != 1 {
		t.Errorf("server calls = %d, want 1", calls)
	}
}

func TestFetchModelsEmptyCatalog(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(modelsHandler(t, map[string][]map[string]any{"text": {}}, &calls))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchModels(context.Background(), catalog.TypeText)
	if !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("err = %v, want ErrEmptyCatalog", err)
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		t.Error("empty catalog must not be reported as a fetch failure")
	}
}

func TestFetchModelsPartialPartitionFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(modelsHandler(t, map[string][]map[string]any{
		"text": {{"id": "t1"}},
		"code": {{"id": "c1"}},
		// image missing: handler returns 500
	}, &calls))
	defer srv.Close()

	models, err := newTestClient(srv.URL).FetchModels(context.Background(), catalog.TypeAll)
	if err != nil {
		t.Fatalf("one failing partition should not abort the others: %v", err)
	}
	if len(models) != 2 {
		t.Errorf("got %d models, want 2", len(models))
	}
}

func TestRateLimitRetriesWithHint(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "3")
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"id": "m1"}}})
	}))
	defer srv.Close()

	var waits []time.Duration
	policy := fastPolicy(2)
	policy.Sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	models, err := New("test-key", srv.URL, WithRetryPolicy(policy)).FetchModels(context.Background(), catalog.TypeText)
	if err != nil {
		t.Fatalf("FetchModels: %v", err)
	}
	if len(models) != 1 {
		t.Errorf("got %d models", len(models))
	}
	if calls != 2 {
		t.Errorf("server calls = %d, want 2", calls)
	}
	if len(waits) != 1 || waits[0] != 3*time.Second {
		t.Errorf("waits = %v, want the Retry-After hint [3s]", waits)
	}
}

func TestDecodeErrorRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte("{truncated"))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"id": "m1"}}})
	}))
	defer srv.Close()

	models, err := newTestClient(srv.URL).FetchModels(context.Background(), catalog.TypeText)
	if err != nil {
		t.Fatalf("FetchModels: %v", err)
	}
	if calls != 2 {
		t.Errorf("server calls = %d, want a retry after the decode failure", calls)
	}
	if len(models) != 1 {
		t.Errorf("got %d models", len(models))
	}
}

func TestFetchSuccessPopulatesCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(modelsHandler(t, map[string][]map[string]any{
		"text": {{"id": "m1"}},
	}, &calls))
	defer srv.Close()

	store := cache.New(t.TempDir(), 5*time.Minute, 24*time.Hour)
	client := newTestClient(srv.URL, WithCache(store))

	if _, err := client.FetchModels(context.Background(), catalog.TypeText); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if calls != 1 {
		t.Fatalf("server calls = %d", calls)
	}

	// Second call should be served from the now-fresh cache.
	if _, err := client.FetchModels(context.Background(), catalog.TypeText); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if calls != 1 {
		t.Errorf("server calls = %d, want 1 (cache hit)", calls)
	}
}

func TestAPIStatus(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(modelsHandler(t, map[string][]map[string]any{
			"text": {{"id": "a"}, {"id": "b"}},
		}, &calls))
		defer srv.Close()

		status := newTestClient(srv.URL).APIStatus(context.Background())
		if !status.OK {
			t.Fatalf("status = %+v, want OK", status)
		}
		if status.ModelsAvailable != 2 {
			t.Errorf("ModelsAvailable = %d, want 2", status.ModelsAvailable)
		}
	})

	t.Run("http error carries status code", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad key", http.StatusUnauthorized)
		}))
		defer srv.Close()

		status := newTestClient(srv.URL).APIStatus(context.Background())
		if status.OK {
			t.Fatal("expected error status")
		}
		if status.StatusCode != http.StatusUnauthorized {
			t.Errorf("StatusCode = %d, want 401", status.StatusCode)
		}
		if status.Message == "" {
			t.Error("expected a message")
		}
	})
}
