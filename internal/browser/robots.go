package browser

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	robotstxt "github.com/temoto/robotstxt"
)

// robotsGate fetches and caches robots.txt per host. When robots.txt is
// unreachable the gate allows the fetch; the crawler only honors an
// explicit disallow.
type robotsGate struct {
	client    *http.Client
	userAgent string

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

func newRobotsGate(userAgent string) *robotsGate {
	return &robotsGate{
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether targetURL may be fetched for the configured
// user agent.
func (g *robotsGate) Allowed(ctx context.Context, targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return true
	}

	g.mu.Lock()
	data, ok := g.cache[u.Host]
	g.mu.Unlock()

	if !ok {
		data, err = g.fetch(ctx, u)
		if err != nil {
			data = nil
		}
		g.mu.Lock()
		g.cache[u.Host] = data
		g.mu.Unlock()
	}

	if data == nil {
		return true
	}
	return data.FindGroup(g.userAgent).Test(u.String())
}

func (g *robotsGate) fetch(ctx context.Context, base *url.URL) (*robotstxt.RobotsData, error) {
	robotsURL := &url.URL{
		Scheme: base.Scheme,
		Host:   base.Host,
		Path:   "/robots.txt",
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, err
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("non-200 robots.txt")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return robotstxt.FromStatusAndBytes(resp.StatusCode, body)
}
