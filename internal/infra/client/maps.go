package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// DefaultMapsBaseURL is the Google Maps web services root.
const DefaultMapsBaseURL = "https://maps.googleapis.com"

// MapsClient measures driving distance from the restaurant to an address
// with the Google Geocoding and Distance Matrix APIs. It only measures;
// serviceability is decided by the quote engine.
type MapsClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	origin     string
	regionHint string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewMapsClient creates a MapsClient. origin is an address or "lat,lng";
// regionHint (e.g. "São Paulo - SP") is appended to addresses lacking it.
func NewMapsClient(httpClient *http.Client, baseURL, apiKey, origin, regionHint string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *MapsClient {
	if baseURL == "" {
		baseURL = DefaultMapsBaseURL
	}
	return &MapsClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		origin:     origin,
		regionHint: regionHint,
		cb:         cb,
		cfg:        cfg,
	}
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

type distanceMatrixResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Rows         []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value float64 `json:"value"` // meters
			} `json:"distance"`
			Duration struct {
				Value float64 `json:"value"` // seconds
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// Lookup geocodes address and measures the route from the origin.
// An unroutable destination yields KM = NaN rather than an error.
func (c *MapsClient) Lookup(ctx context.Context, address string) (*domain.DistanceResult, error) {
	ctx, span := tracer.Start(ctx, "MapsClient.Lookup")
	defer span.End()

	var result *domain.DistanceResult

	err := resilience.Call(ctx, c.cb, c.cfg, "google-maps", func() error {
		geo, err := c.geocode(ctx, c.withRegion(address))
		if err != nil {
			return err
		}
		loc := geo.Results[0].Geometry.Location
		destination := fmt.Sprintf("%f,%f", loc.Lat, loc.Lng)

		dm, err := c.distanceMatrix(ctx, destination)
		if err != nil {
			return err
		}

		result = &domain.DistanceResult{
			KM:               math.NaN(),
			FormattedAddress: geo.Results[0].FormattedAddress,
		}
		if len(dm.Rows) == 0 || len(dm.Rows[0].Elements) == 0 {
			return nil
		}
		el := dm.Rows[0].Elements[0]
		if el.Status != "OK" {
			return nil
		}
		result.KM = el.Distance.Value / 1000
		result.ETAMinutes = int(math.Ceil(el.Duration.Value / 60))
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Float64("distance.km", result.KM))
	return result, nil
}

func (c *MapsClient) geocode(ctx context.Context, address string) (*geocodeResponse, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("region", "br")
	q.Set("language", "pt-BR")
	q.Set("key", c.apiKey)

	var resp geocodeResponse
	if err := c.getJSON(ctx, "/maps/api/geocode/json", q, &resp); err != nil {
		return nil, err
	}
	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS", "INVALID_REQUEST", "REQUEST_DENIED":
		return nil, resilience.Permanent(fmt.Errorf("geocode status %s: %s", resp.Status, resp.ErrorMessage))
	default:
		return nil, fmt.Errorf("geocode status %s: %s", resp.Status, resp.ErrorMessage)
	}
	if len(resp.Results) == 0 {
		return nil, resilience.Permanent(fmt.Errorf("geocode returned no results"))
	}
	return &resp, nil
}

func (c *MapsClient) distanceMatrix(ctx context.Context, destination string) (*distanceMatrixResponse, error) {
	q := url.Values{}
	q.Set("origins", c.origin)
	q.Set("destinations", destination)
	q.Set("mode", "driving")
	q.Set("language", "pt-BR")
	q.Set("key", c.apiKey)

	var resp distanceMatrixResponse
	if err := c.getJSON(ctx, "/maps/api/distancematrix/json", q, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("distance matrix status %s: %s", resp.Status, resp.ErrorMessage)
	}
	return &resp, nil
}

func (c *MapsClient) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return resilience.Permanent(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return resilience.Permanent(fmt.Errorf("maps API %s returned status %d", path, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("maps API %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resilience.Permanent(fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

func (c *MapsClient) withRegion(address string) string {
	if c.regionHint == "" || strings.Contains(strings.ToLower(address), strings.ToLower(c.regionHint)) {
		return address
	}
	return address + ", " + c.regionHint
}
