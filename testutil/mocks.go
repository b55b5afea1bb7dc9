package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockIdentityServer mocks the Mojang profile lookup endpoint.
type MockIdentityServer struct {
	*httptest.Server

	mu       sync.Mutex
	calls    int
	Profiles map[string]string // username -> profile id
}

// NewMockIdentityServer serves GET /users/profiles/minecraft/{name} from the
// Profiles map, returning 404 for unknown names.
func NewMockIdentityServer(t *testing.T, profiles map[string]string) *MockIdentityServer {
	t.Helper()
	m := &MockIdentityServer{Profiles: profiles}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.calls++
		m.mu.Unlock()
		const prefix = "/users/profiles/minecraft/"
		if len(r.URL.Path) <= len(prefix) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		name := r.URL.Path[len(prefix):]
		id, ok := m.Profiles[name]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "name": name})
	}))
	t.Cleanup(m.Close)
	return m
}

// Calls reports how many lookups the server has answered.
func (m *MockIdentityServer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockWebhookSink records every notification payload posted to it.
type MockWebhookSink struct {
	*httptest.Server

	mu       sync.Mutex
	payloads []map[string]any
}

// NewMockWebhookSink accepts any POST and stores its decoded JSON body.
func NewMockWebhookSink(t *testing.T) *MockWebhookSink {
	t.Helper()
	m := &MockWebhookSink{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p map[string]any
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("webhook sink decode: %v", err)
		}
		m.mu.Lock()
		m.payloads = append(m.payloads, p)
		m.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(m.Close)
	return m
}

// Payloads returns a copy of the recorded notification bodies.
func (m *MockWebhookSink) Payloads() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]any, len(m.payloads))
	copy(out, m.payloads)
	return out
}
