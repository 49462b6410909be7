package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"
)

// DefaultTTL is how long a fetched model list is served from cache.
const DefaultTTL = 5 * time.Minute

// ErrUnavailable is returned when the model list cannot be fetched.
var ErrUnavailable = errors.New("model catalog unavailable")

// Model is the subset of an OpenRouter model entry the catalog inspects.
type Model struct {
	ID           string                     `json:"id"`
	Name         string                     `json:"name"`
	Architecture Architecture               `json:"architecture"`
	Pricing      map[string]json.RawMessage `json:"pricing"`
}

type Architecture struct {
	InputModalities  []string `json:"input_modalities"`
	OutputModalities []string `json:"output_modalities"`
}

type modelsResponse struct {
	Data []Model `json:"data"`
}

// IsTextToText reports whether the model both accepts and produces text.
func (m Model) IsTextToText() bool {
	return slices.Contains(m.Architecture.InputModalities, "text") &&
		slices.Contains(m.Architecture.OutputModalities, "text")
}

// IsFree reports whether every pricing entry is zero. Prices may be encoded as strings or numbers;
// an entry that cannot be read as a number counts as non-free.
func (m Model) IsFree() bool {
	for _, raw := range m.Pricing {
		price, ok := parsePrice(raw)
		if !ok || price != 0 {
			return false
		}
	}
	return true
}

func parsePrice(raw json.RawMessage) (float64, bool) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Config controls where and how the catalog fetches models.
type Config struct {
	URL        string
	FreeOnly   bool
	TTL        time.Duration
	HTTPClient *http.Client
}

// Catalog caches the list of models usable for benchmarking.
type Catalog struct {
	url        string
	freeOnly   bool
	ttl        time.Duration
	httpClient *http.Client

	mutex     sync.RWMutex
	names     []string
	fetchedAt time.Time
}

func New(cfg Config) *Catalog {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Catalog{url: cfg.URL, freeOnly: cfg.FreeOnly, ttl: ttl, httpClient: httpClient}
}

// Names returns the ids of the usable models, fetching them when the cache is empty or stale.
func (c *Catalog) Names(ctx context.Context) ([]string, error) {
	if names := c.cached(); names != nil {
		return names, nil
	}

	log.Printf("🔍 Fetching model catalog from %s", c.url)
	models, err := c.fetch(ctx)
	if err != nil {
		log.Printf("⚠️ Model catalog fetch failed: %v", err)
		return nil, err
	}

	names := make([]string, 0, len(models))
	for _, m := range models {
		if !m.IsTextToText() {
			continue
		}
		if c.freeOnly && !m.IsFree() {
			continue
		}
		names = append(names, m.ID)
	}

	c.mutex.Lock()
	c.names = names
	c.fetchedAt = time.Now()
	c.mutex.Unlock()

	log.Printf("✅ Model catalog loaded: %d of %d models usable", len(names), len(models))
	return slices.Clone(names), nil
}

// Has reports whether model is in the catalog.
func (c *Catalog) Has(ctx context.Context, model string) (bool, error) {
	names, err := c.Names(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(names, model), nil
}

// Invalidate drops the cached list so the next lookup refetches it.
func (c *Catalog) Invalidate() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.names = nil
	c.fetchedAt = time.Time{}
	log.Printf("🗑️ Model catalog cache invalidated")
}

func (c *Catalog) cached() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.names == nil || time.Since(c.fetchedAt) > c.ttl {
		return nil
	}
	return slices.Clone(c.names)
}

func (c *Catalog) fetch(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	var body modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding models: %v", ErrUnavailable, err)
	}
	return body.Data, nil
}
