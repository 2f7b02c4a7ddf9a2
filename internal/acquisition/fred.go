package acquisition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"macro-regime-lab/internal/logger"
	"macro-regime-lab/internal/observability"
)

// ErrNoAPIKey is returned when the FRED client has no API key.
var ErrNoAPIKey = errors.New("fred: no api key configured")

// SeriesPoint is one observation of an economic series. Missing is NaN.
type SeriesPoint struct {
	Date  time.Time
	Value float64
}

// FREDClient fetches series observations from the FRED API.
// Requests are rate limited and pass through a circuit breaker.
type FREDClient struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	cache    SeriesCache
	cacheTTL time.Duration
	log      *logger.Logger
	metrics  *observability.Metrics
}

// FREDOption configures a FREDClient.
type FREDOption func(*FREDClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) FREDOption {
	return func(f *FREDClient) { f.http = c }
}

// WithRateLimit sets the request rate.
func WithRateLimit(perSecond float64) FREDOption {
	return func(f *FREDClient) {
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithCache stores fetched series in cache for ttl.
func WithCache(cache SeriesCache, ttl time.Duration) FREDOption {
	return func(f *FREDClient) {
		f.cache = cache
		f.cacheTTL = ttl
	}
}

// WithLogger sets the client logger.
func WithLogger(l *logger.Logger) FREDOption {
	return func(f *FREDClient) { f.log = l }
}

// WithMetrics counts requests by outcome on m.
func WithMetrics(m *observability.Metrics) FREDOption {
	return func(f *FREDClient) { f.metrics = m }
}

// NewFREDClient creates a client for baseURL, e.g. https://api.stlouisfed.org/fred.
func NewFREDClient(baseURL, apiKey string, opts ...FREDOption) *FREDClient {
	c := &FREDClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(2), 1),
		cache:   nopCache{},
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	st := gobreaker.Settings{
		Name:     "fred",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	}
	c.breaker = gobreaker.NewCircuitBreaker(st)
	return c
}

type fredResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// Series returns the observations of seriesID between start and end inclusive,
// sorted by date. FRED marks missing values with "."; they become NaN.
func (c *FREDClient) Series(ctx context.Context, seriesID string, start, end time.Time) ([]SeriesPoint, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	key := fmt.Sprintf("%s:%s:%s", seriesID, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if points, err := c.cache.Get(ctx, key); err == nil {
		c.log.Debug("fred cache hit", logger.String("series", seriesID))
		c.record("cache_hit")
		return points, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		c.log.Warn("fred cache read failed", logger.String("series", seriesID), logger.Error(err))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	res, err := c.breaker.Execute(func() (any, error) {
		return c.fetch(ctx, seriesID, start, end)
	})
	if err != nil {
		c.record("error")
		return nil, fmt.Errorf("fred %s: %w", seriesID, err)
	}
	c.record("ok")
	points := res.([]SeriesPoint)

	if err := c.cache.Set(ctx, key, points, c.cacheTTL); err != nil {
		c.log.Warn("fred cache write failed", logger.String("series", seriesID), logger.Error(err))
	}
	c.log.Info("fetched fred series", logger.String("series", seriesID), logger.Int("observations", len(points)))
	return points, nil
}

func (c *FREDClient) fetch(ctx context.Context, seriesID string, start, end time.Time) ([]SeriesPoint, error) {
	q := url.Values{}
	q.Set("series_id", seriesID)
	q.Set("api_key", c.apiKey)
	q.Set("file_type", "json")
	q.Set("observation_start", start.Format("2006-01-02"))
	q.Set("observation_end", end.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/series/observations?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var payload fredResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode observations: %w", err)
	}

	points := make([]SeriesPoint, 0, len(payload.Observations))
	for _, o := range payload.Observations {
		d, err := time.Parse("2006-01-02", o.Date)
		if err != nil {
			return nil, fmt.Errorf("observation date %q: %w", o.Date, err)
		}
		v := math.NaN()
		if o.Value != "." && o.Value != "" {
			if v, err = strconv.ParseFloat(o.Value, 64); err != nil {
				return nil, fmt.Errorf("observation %s value %q: %w", o.Date, o.Value, err)
			}
		}
		points = append(points, SeriesPoint{Date: d, Value: v})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}

// Macro fetches the policy-rate and long-yield series and merges them on
// date. A date present in only one series has NaN for the other.
func (c *FREDClient) Macro(ctx context.Context, policySeries, yieldSeries string, start, end time.Time) ([]MacroRow, error) {
	policy, err := c.Series(ctx, policySeries, start, end)
	if err != nil {
		return nil, err
	}
	yields, err := c.Series(ctx, yieldSeries, start, end)
	if err != nil {
		return nil, err
	}
	return mergeMacro(policy, yields), nil
}

func mergeMacro(policy, yields []SeriesPoint) []MacroRow {
	byDate := make(map[time.Time]*MacroRow, len(policy))
	get := func(d time.Time) *MacroRow {
		d = dayOf(d)
		row, ok := byDate[d]
		if !ok {
			row = &MacroRow{Date: d, PolicyRate: math.NaN(), LongYield: math.NaN()}
			byDate[d] = row
		}
		return row
	}
	for _, p := range policy {
		get(p.Date).PolicyRate = p.Value
	}
	for _, p := range yields {
		get(p.Date).LongYield = p.Value
	}

	out := make([]MacroRow, 0, len(byDate))
	for _, row := range byDate {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (c *FREDClient) record(outcome string) {
	if c.metrics != nil {
		c.metrics.RecordSeriesRequest("fred", outcome)
	}
}
