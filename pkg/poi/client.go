// Package poi looks up point-of-interest counts around the cursor through a
// TomTom-style category search, with optional caching.
package poi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/1F47E/quadcursor/internal/logger"
	"github.com/1F47E/quadcursor/internal/metrics"
	"github.com/paulmach/orb"
)

const (
	DefaultEndpoint = "https://api.tomtom.com/search/2/categorySearch/.json"
	DefaultLimit    = 100
)

var ErrMissingKey = errors.New("poi: missing api key")

// Category is a searchable POI category. Name is matched against the
// category names of each result.
type Category struct {
	ID     int    `yaml:"id"`
	Name   string `yaml:"name"`
	Plural string `yaml:"plural"`
}

// DefaultCategories are restaurants, shops and markets
var DefaultCategories = []Category{
	{ID: 7315, Name: "restaurant", Plural: "restaurants"},
	{ID: 9361, Name: "shop", Plural: "shops"},
	{ID: 7332, Name: "market", Plural: "markets"},
}

// Options configures a Client
type Options struct {
	Endpoint   string
	APIKey     string
	Categories []Category
	Limit      int
	HTTPClient *http.Client
}

// Client queries the category search API
type Client struct {
	endpoint   string
	key        string
	categories []Category
	limit      int
	http       *http.Client
}

// NewClient validates opts and fills defaults
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingKey
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if len(opts.Categories) == 0 {
		opts.Categories = DefaultCategories
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		endpoint:   opts.Endpoint,
		key:        opts.APIKey,
		categories: opts.Categories,
		limit:      opts.Limit,
		http:       opts.HTTPClient,
	}, nil
}

type searchResponse struct {
	Results []struct {
		POI struct {
			Name       string   `json:"name"`
			Categories []string `json:"categories"`
		} `json:"poi"`
	} `json:"results"`
}

// Counts is the number of results per category
type Counts struct {
	Categories []Category
	N          []int
}

// String renders counts as "Found 2 restaurants, 0 shops, and 1 markets."
func (c Counts) String() string {
	parts := make([]string, len(c.Categories))
	for i, cat := range c.Categories {
		parts[i] = strconv.Itoa(c.N[i]) + " " + cat.Plural
	}

	switch len(parts) {
	case 0:
		return ""
	case 1:
		return "Found " + parts[0] + "."
	case 2:
		return "Found " + parts[0] + " and " + parts[1] + "."
	}
	last := len(parts) - 1
	return "Found " + strings.Join(parts[:last], ", ") + ", and " + parts[last] + "."
}

// Search counts the POIs of each category inside bound
func (c *Client) Search(ctx context.Context, bound orb.Bound) (Counts, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(bound), nil)
	if err != nil {
		return Counts{}, err
	}

	t0 := time.Now()
	metrics.POIRequestsTotal.Inc()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.POIFailTotal.Inc()
		logger.L().Error("poi_http_error", "err", err)
		return Counts{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.POIFailTotal.Inc()
		return Counts{}, fmt.Errorf("poi: unexpected status %d", resp.StatusCode)
	}

	var r searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		metrics.POIFailTotal.Inc()
		logger.L().Error("poi_decode_error", "err", err)
		return Counts{}, err
	}

	counts := Counts{Categories: c.categories, N: make([]int, len(c.categories))}
	for _, res := range r.Results {
		for i, cat := range c.categories {
			if contains(res.POI.Categories, cat.Name) {
				counts.N[i]++
			}
		}
	}

	dur := time.Since(t0).Milliseconds()
	metrics.POIDurationMs.Observe(float64(dur))
	logger.L().Debug("poi_resp", "results", len(r.Results), "duration_ms", dur)
	return counts, nil
}

// Summary implements the session POI lookup
func (c *Client) Summary(ctx context.Context, bound orb.Bound) (string, error) {
	counts, err := c.Search(ctx, bound)
	if err != nil {
		return "", err
	}
	return counts.String(), nil
}

func (c *Client) url(bound orb.Bound) string {
	ids := make([]string, len(c.categories))
	for i, cat := range c.categories {
		ids[i] = strconv.Itoa(cat.ID)
	}

	q := url.Values{}
	q.Set("key", c.key)
	q.Set("categorySet", strings.Join(ids, ","))
	q.Set("limit", strconv.Itoa(c.limit))
	// lat,lon pairs of the north-west and south-east corners
	q.Set("topLeft", coord(bound.Max.Lat())+","+coord(bound.Min.Lon()))
	q.Set("btmRight", coord(bound.Min.Lat())+","+coord(bound.Max.Lon()))
	return c.endpoint + "?" + q.Encode()
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
