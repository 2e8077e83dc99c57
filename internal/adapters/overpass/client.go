package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/samirrijal/cityview/internal/core/domain"
	"github.com/samirrijal/cityview/internal/pkg/metrics"
	"github.com/samirrijal/cityview/internal/pkg/telemetry"
)

// DefaultEndpoint is the public Overpass interpreter.
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

// maxErrorBody caps how much of a failed response ends up in the error.
const maxErrorBody = 512

// Config tunes a Client.
type Config struct {
	Endpoint    string
	Amenity     string
	LabelPrefix string
	UserAgent   string
	Timeout     time.Duration
	// RatePerSecond paces outgoing requests; zero disables pacing.
	RatePerSecond float64
	Burst         int
}

// Client implements ports.PointSearcher against an Overpass interpreter.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	tracer  trace.Tracer
}

// NewClient creates a Client. Empty fields fall back to the public
// endpoint, restaurants and a "Restaurant" label prefix.
func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Amenity == "" {
		cfg.Amenity = "restaurant"
	}
	if cfg.LabelPrefix == "" {
		cfg.LabelPrefix = "Restaurant"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 35 * time.Second
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		tracer:  telemetry.Tracer(),
	}
}

// BuildQuery renders the Overpass QL query for amenity nodes around center.
func BuildQuery(amenity string, center domain.Coordinate, radiusMeters int) string {
	return fmt.Sprintf("[out:json];\nnode[amenity=%s](around:%d,%s,%s);\nout body;",
		amenity,
		radiusMeters,
		strconv.FormatFloat(center.Lat, 'f', -1, 64),
		strconv.FormatFloat(center.Lon, 'f', -1, 64),
	)
}

// Search runs one query. Failures are *domain.FetchError values of kind
// network, service or parse; there is no retry.
func (c *Client) Search(ctx context.Context, center domain.Coordinate, radiusMeters int) ([]domain.PointOfInterest, error) {
	ctx, span := c.tracer.Start(ctx, "overpass.search", trace.WithAttributes(
		telemetry.AttrRadius.Int(radiusMeters),
	))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.fail(domain.NewNetworkError(fmt.Errorf("rate limiter: %w", err)))
	}

	form := url.Values{"data": {BuildQuery(c.cfg.Amenity, center, radiusMeters)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, c.fail(domain.NewNetworkError(fmt.Errorf("build request: %w", err)))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.OverpassDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, c.fail(domain.NewNetworkError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, c.fail(domain.NewServiceError(resp.StatusCode, fmt.Errorf("overpass: %s", strings.TrimSpace(string(body)))))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(domain.NewNetworkError(fmt.Errorf("read body: %w", err)))
	}

	points, dropped, err := Parse(body, c.cfg.LabelPrefix)
	if err != nil {
		return nil, c.fail(domain.NewParseError(err))
	}
	if dropped > 0 {
		metrics.MalformedElements.Add(float64(dropped))
		slog.Debug("overpass dropped malformed elements", "dropped", dropped)
	}

	span.SetAttributes(telemetry.AttrCount.Int(len(points)))
	metrics.OverpassRequests.WithLabelValues("ok").Inc()
	return points, nil
}

func (c *Client) fail(err *domain.FetchError) error {
	metrics.OverpassRequests.WithLabelValues(string(err.Kind)).Inc()
	return err
}

type response struct {
	Elements []json.RawMessage `json:"elements"`
}

type element struct {
	ID   *int64            `json:"id"`
	Type string            `json:"type"`
	Lat  *float64          `json:"lat"`
	Lon  *float64          `json:"lon"`
	Tags map[string]string `json:"tags"`
}

// Parse decodes an Overpass JSON payload. Elements that cannot become a
// point are dropped and counted; an undecodable payload is an error.
func Parse(body []byte, labelPrefix string) ([]domain.PointOfInterest, int, error) {
	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}
	if r.Elements == nil {
		return nil, 0, errors.New("decode response: missing elements array")
	}

	points := make([]domain.PointOfInterest, 0, len(r.Elements))
	dropped := 0
	for _, raw := range r.Elements {
		p, err := parseElement(raw, labelPrefix)
		if err != nil {
			dropped++
			continue
		}
		points = append(points, p)
	}
	return points, dropped, nil
}

func parseElement(raw json.RawMessage, labelPrefix string) (domain.PointOfInterest, error) {
	var el element
	if err := json.Unmarshal(raw, &el); err != nil {
		return domain.PointOfInterest{}, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}
	if el.ID == nil {
		return domain.PointOfInterest{}, fmt.Errorf("%w: missing id", domain.ErrMalformedRecord)
	}
	if el.Lat == nil || el.Lon == nil {
		return domain.PointOfInterest{}, fmt.Errorf("%w: element %d has no position", domain.ErrMalformedRecord, *el.ID)
	}

	pos := domain.Coordinate{Lat: *el.Lat, Lon: *el.Lon}
	if !pos.Valid() {
		return domain.PointOfInterest{}, fmt.Errorf("%w: element %d position %v out of range", domain.ErrMalformedRecord, *el.ID, pos)
	}

	label := strings.TrimSpace(el.Tags["name"])
	if label == "" {
		label = labelPrefix + " " + strconv.FormatInt(*el.ID, 10)
	}

	return domain.PointOfInterest{ID: *el.ID, Label: label, Position: pos}, nil
}
