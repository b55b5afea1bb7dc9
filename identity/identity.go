// Package identity resolves player usernames to their stable profile ids via
// the Mojang profile API, with a process-lifetime memoizing cache in front of
// the HTTP lookup.
package identity

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultBaseURL is the public Mojang profile API.
const DefaultBaseURL = "https://api.mojang.com"

// Client performs the network lookup. It carries no retry logic; the service
// is treated as unreliable and failures propagate to the caller.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	return DefaultBaseURL
}

// Lookup fetches the profile id for a username. Unknown usernames and
// transport failures are errors; nothing is cached here.
func (c *Client) Lookup(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("username empty")
	}
	u := c.base() + "/users/profiles/minecraft/" + url.PathEscape(username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("profile lookup for %q: status %d", username, resp.StatusCode)
	}
	var body struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("profile lookup for %q: %w", username, err)
	}
	if body.ID == "" {
		return "", fmt.Errorf("profile lookup for %q: empty id", username)
	}
	return normalizeID(body.ID)
}

// normalizeID validates the id as a UUID (the API returns the undashed form)
// and re-encodes it undashed lowercase, the form avatar services expect.
func normalizeID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("malformed profile id %q: %w", id, err)
	}
	return hex.EncodeToString(parsed[:]), nil
}

// Cache memoizes Lookup results for the life of the process. No eviction and
// no negative caching: a failed lookup is retried on the next occurrence of
// the name. Racing lookups of the same name may both hit the network; the
// second insert wins and the redundant call is accepted.
type Cache struct {
	client *Client

	mu  sync.Mutex
	ids map[string]string
}

// NewCache wraps client with an empty cache.
func NewCache(client *Client) *Cache {
	return &Cache{client: client, ids: make(map[string]string)}
}

// Resolve returns the stable id for username, hitting the network only on a
// cache miss.
func (c *Cache) Resolve(ctx context.Context, username string) (string, error) {
	c.mu.Lock()
	if id, ok := c.ids[username]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	id, err := c.client.Lookup(ctx, username)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.ids[username] = id
	c.mu.Unlock()
	return id, nil
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}
