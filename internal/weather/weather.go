// README: Current-conditions client for surge pricing. Responses are cached
// per grid cell and every failure degrades to "Clear" so weather can only
// ever raise a fare, never block one.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"pirideshare/internal/types"
)

const (
	defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"
	defaultTTL     = 10 * time.Minute
	requestTimeout = 5 * time.Second

	// Conditions are effectively uniform at city-block scale; one cache cell
	// per ~1km keeps the upstream call volume trivial.
	cellDegrees = 0.01

	fallbackCondition = "Clear"
)

type cached struct {
	condition string
	fetchedAt time.Time
}

// Client resolves a weather condition label for a coordinate. It satisfies
// the surge calculator's WeatherSource.
type Client struct {
	baseURL string
	apiKey  string
	ttl     time.Duration
	http    *http.Client

	mu    sync.Mutex
	cells map[string]cached
}

type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

func WithTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		ttl:     defaultTTL,
		http:    &http.Client{Timeout: requestTimeout},
		cells:   make(map[string]cached),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type conditionsResponse struct {
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
}

// ConditionAt returns the condition label ("Clear", "Rain", ...) at p,
// serving from cache when fresh. On any upstream problem it logs and
// returns "Clear".
func (c *Client) ConditionAt(ctx context.Context, p types.Point) string {
	key := cellKey(p)

	c.mu.Lock()
	if entry, ok := c.cells[key]; ok && time.Since(entry.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return entry.condition
	}
	c.mu.Unlock()

	condition, err := c.fetch(ctx, p)
	if err != nil {
		log.Printf("weather: fetch %s: %v", key, err)
		return fallbackCondition
	}

	c.mu.Lock()
	c.cells[key] = cached{condition: condition, fetchedAt: time.Now()}
	c.mu.Unlock()
	return condition
}

func (c *Client) fetch(ctx context.Context, p types.Point) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("lat", fmt.Sprintf("%.4f", p.Lat))
	q.Set("lon", fmt.Sprintf("%.4f", p.Lng))
	q.Set("appid", c.apiKey)
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var decoded conditionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Weather) == 0 {
		return "", fmt.Errorf("empty weather block")
	}
	return decoded.Weather[0].Main, nil
}

func cellKey(p types.Point) string {
	return fmt.Sprintf("%.0f:%.0f", p.Lat/cellDegrees, p.Lng/cellDegrees)
}
