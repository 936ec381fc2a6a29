// Package geo resolves an approximate device location for tagging meal
// records. Lookup failures are never fatal; callers log and move on.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sadopc/nutrilog/internal/record"
)

// DefaultTimeout bounds a single location lookup.
const DefaultTimeout = 5 * time.Second

var ErrUnavailable = errors.New("location unavailable")

// Provider resolves the current location.
type Provider interface {
	Locate(ctx context.Context) (record.Location, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (record.Location, error)

func (f ProviderFunc) Locate(ctx context.Context) (record.Location, error) {
	return f(ctx)
}

// Fetch runs the provider with a timeout. A nil provider, a timeout, or a
// provider error all yield a nil location.
func Fetch(ctx context.Context, p Provider) *record.Location {
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	loc, err := p.Locate(ctx)
	if err != nil {
		return nil
	}
	return &loc
}

// IPLocator resolves a coarse location from the machine's public IP
// via the ip-api.com JSON endpoint.
type IPLocator struct {
	// Endpoint overrides the lookup URL, mainly for tests.
	Endpoint string
	Client   *http.Client
}

const defaultEndpoint = "http://ip-api.com/json/"

func (l *IPLocator) Locate(ctx context.Context) (record.Location, error) {
	endpoint := l.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return record.Location{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return record.Location{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return record.Location{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		Status string  `json:"status"`
		Lat    float64 `json:"lat"`
		Lon    float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return record.Location{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if body.Status != "success" {
		return record.Location{}, fmt.Errorf("%w: status %q", ErrUnavailable, body.Status)
	}
	return record.Location{Lat: body.Lat, Lon: body.Lon}, nil
}
