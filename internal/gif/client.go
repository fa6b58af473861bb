// Package gif looks up animated GIFs for the picker. It is an outbound
// collaborator only: lookups never touch chat state, and upstream failures
// degrade to a deterministic local pool instead of surfacing errors.
package gif

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultBaseURL = "https://api.giphy.com/v1/gifs/search"
	maxResults     = 8
)

// GIF is one search result offered to the client.
type GIF struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Client queries a Giphy-style search API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a GIF search client. An empty API key means every search
// answers from the local fallback pool.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 2500 * time.Millisecond},
	}
}

// Search returns a small ordered list of GIFs for the query. It never fails:
// missing key, upstream errors, and empty result sets all fall back locally.
func (c *Client) Search(ctx context.Context, query string) []GIF {
	if c.apiKey == "" {
		return fallback(query)
	}

	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("q", query)
	q.Set("limit", fmt.Sprint(maxResults))
	q.Set("rating", "pg")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fallback(query)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("gif search upstream unavailable", "error", err)
		return fallback(query)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Warn("gif search upstream status", "status", resp.StatusCode)
		return fallback(query)
	}

	var body struct {
		Data []struct {
			Title  string `json:"title"`
			Images struct {
				FixedHeight struct {
					URL string `json:"url"`
				} `json:"fixed_height"`
			} `json:"images"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		slog.Warn("gif search decode failed", "error", err)
		return fallback(query)
	}

	out := make([]GIF, 0, len(body.Data))
	for _, d := range body.Data {
		if d.Images.FixedHeight.URL == "" {
			continue
		}
		name := d.Title
		if name == "" {
			name = query
		}
		out = append(out, GIF{Name: name, URL: d.Images.FixedHeight.URL})
	}
	if len(out) == 0 {
		return fallback(query)
	}
	return out
}

// fallbackPool is served when upstream search is unavailable. The rotation
// point is derived from the query so the same search always yields the same
// ordering.
var fallbackPool = []GIF{
	{Name: "thumbs up", URL: "https://media.giphy.com/media/111ebonMs90YLu/giphy.gif"},
	{Name: "clapping", URL: "https://media.giphy.com/media/7rj2ZgttvgomY/giphy.gif"},
	{Name: "mind blown", URL: "https://media.giphy.com/media/26ufdipQqU2lhNA4g/giphy.gif"},
	{Name: "shrug", URL: "https://media.giphy.com/media/JRhS6WoswF8FxE0g2R/giphy.gif"},
	{Name: "facepalm", URL: "https://media.giphy.com/media/6yRVg0HWzgS88/giphy.gif"},
	{Name: "party", URL: "https://media.giphy.com/media/g9582DNuQppxC/giphy.gif"},
	{Name: "typing cat", URL: "https://media.giphy.com/media/JIX9t2j0ZTN9S/giphy.gif"},
	{Name: "deal with it", URL: "https://media.giphy.com/media/rn1ffZ9ByGmXe/giphy.gif"},
}

func fallback(query string) []GIF {
	h := fnv.New32a()
	_, _ = h.Write([]byte(query))
	start := int(h.Sum32()) % len(fallbackPool)
	if start < 0 {
		start += len(fallbackPool)
	}

	n := 5
	out := make([]GIF, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fallbackPool[(start+i)%len(fallbackPool)])
	}
	return out
}
