package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newLookupServer(t *testing.T, calls *atomic.Int64, ids map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		name := r.URL.Path[len("/users/profiles/minecraft/"):]
		id, ok := ids[name]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "name": name})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveCachesAfterFirstLookup(t *testing.T) {
	var calls atomic.Int64
	srv := newLookupServer(t, &calls, map[string]string{
		"Notch": "069a79f444e94726a5befca90e38aaf5",
	})
	cache := NewCache(&Client{BaseURL: srv.URL})

	ctx := context.Background()
	first, err := cache.Resolve(ctx, "Notch")
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := cache.Resolve(ctx, "Notch")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first != second {
		t.Errorf("resolve not stable: %q then %q", first, second)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("external calls = %d, want 1", got)
	}
	if first != "069a79f444e94726a5befca90e38aaf5" {
		t.Errorf("id = %q", first)
	}
}

func TestResolveNormalizesDashedIDs(t *testing.T) {
	var calls atomic.Int64
	srv := newLookupServer(t, &calls, map[string]string{
		"Alice": "069a79f4-44e9-4726-a5be-fca90e38aaf5",
	})
	cache := NewCache(&Client{BaseURL: srv.URL})

	id, err := cache.Resolve(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id != "069a79f444e94726a5befca90e38aaf5" {
		t.Errorf("id = %q, want undashed form", id)
	}
}

func TestResolveFailureNotCached(t *testing.T) {
	var calls atomic.Int64
	srv := newLookupServer(t, &calls, map[string]string{})
	cache := NewCache(&Client{BaseURL: srv.URL})

	ctx := context.Background()
	if _, err := cache.Resolve(ctx, "nosuchplayer"); err == nil {
		t.Fatal("expected error for unknown username")
	}
	if _, err := cache.Resolve(ctx, "nosuchplayer"); err == nil {
		t.Fatal("expected error on retry")
	}
	// No negative caching: the second resolve must hit the network again.
	if got := calls.Load(); got != 2 {
		t.Errorf("external calls = %d, want 2", got)
	}
	if cache.Len() != 0 {
		t.Errorf("cache holds %d entries, want 0", cache.Len())
	}
}

func TestLookupRejectsMalformedID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "not-a-uuid", "name": "x"})
	}))
	t.Cleanup(srv.Close)
	c := &Client{BaseURL: srv.URL}
	if _, err := c.Lookup(context.Background(), "x"); err == nil {
		t.Fatal("expected error for malformed id")
	}
}
