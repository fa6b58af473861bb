// Package preview unfurls links into title/description/image cards. Fetch
// failures are never surfaced: the caller always gets at least the host.
package preview

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const maxBodyBytes = 512 << 10

// Preview is a best-effort link card.
type Preview struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Host        string `json:"host"`
}

// Client fetches and parses pages for link previews.
type Client struct {
	http *http.Client
}

// NewClient creates a preview client.
func NewClient() *Client {
	return &Client{http: &http.Client{Timeout: 3 * time.Second}}
}

// Fetch unfurls raw. Unparsable URLs yield an empty card; fetch or parse
// failures yield a card with the host only.
func (c *Client) Fetch(ctx context.Context, raw string) Preview {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Preview{}
	}
	p := Preview{Host: u.Host, Title: u.Host}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return p
	}
	req.Header.Set("User-Agent", "driftchat-preview/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Debug("preview fetch failed", "url", raw, "error", err)
		return p
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return p
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return p
	}

	fill(&p, io.LimitReader(resp.Body, maxBodyBytes))
	return p
}

// fill scans the document head for Open Graph metadata, falling back to the
// document title.
func fill(p *Preview, r io.Reader) {
	z := html.NewTokenizer(r)
	var docTitle string
	for {
		switch z.Next() {
		case html.ErrorToken:
			finish(p, docTitle)
			return
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "meta":
				prop, content := attr(tok, "property"), attr(tok, "content")
				if prop == "" {
					prop = attr(tok, "name")
				}
				switch prop {
				case "og:title":
					p.Title = content
				case "og:description", "description":
					if p.Description == "" {
						p.Description = content
					}
				case "og:image":
					p.Image = content
				}
			case "title":
				if z.Next() == html.TextToken {
					docTitle = strings.TrimSpace(z.Token().Data)
				}
			case "body":
				// Metadata lives in the head; stop before the content.
				finish(p, docTitle)
				return
			}
		}
	}
}

func finish(p *Preview, docTitle string) {
	if p.Title == p.Host && docTitle != "" {
		p.Title = docTitle
	}
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
