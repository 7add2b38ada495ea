package asset

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/ryohey/warp/internal/coerce"
)

// DefaultHTTPTimeout bounds a single asset download.
const DefaultHTTPTimeout = 30 * time.Second

// HTTPStore resolves identifiers by downloading <BaseURL>/static/<id>.
type HTTPStore struct {
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
	kinds   []string
}

var _ coerce.AssetResolver = (*HTTPStore)(nil)

// HTTPOption configures an HTTPStore.
type HTTPOption func(*HTTPStore)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPStore) { s.client = c }
}

// WithRateLimit caps downloads at perSecond with the given burst.
func WithRateLimit(perSecond float64, burst int) HTTPOption {
	return func(s *HTTPStore) { s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithHTTPKinds restricts the asset kinds the store serves.
func WithHTTPKinds(kinds ...string) HTTPOption {
	return func(s *HTTPStore) { s.kinds = kinds }
}

// NewHTTPStore returns a store rooted at baseURL, e.g. "http://host:8080".
func NewHTTPStore(baseURL string, opts ...HTTPOption) (*HTTPStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse asset url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("asset url %q: scheme must be http or https", baseURL)
	}
	s := &HTTPStore{
		base:    u,
		client:  &http.Client{Timeout: DefaultHTTPTimeout},
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// StaticURL returns the URL an identifier is served at.
func (s *HTTPStore) StaticURL(id string) string {
	return s.base.JoinPath("static", id).String()
}

// Resolve implements coerce.AssetResolver.
func (s *HTTPStore) Resolve(ctx context.Context, id, kind string) (coerce.Asset, error) {
	if err := checkRequest(id, kind, s.kinds); err != nil {
		return coerce.Asset{}, err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return coerce.Asset{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.StaticURL(id), nil)
	if err != nil {
		return coerce.Asset{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return coerce.Asset{}, fmt.Errorf("fetch asset %s: %w", id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return coerce.Asset{}, fmt.Errorf("%w: %s", coerce.ErrAssetNotFound, id)
	case resp.StatusCode != http.StatusOK:
		return coerce.Asset{}, fmt.Errorf("fetch asset %s: unexpected status %s", id, resp.Status)
	}

	size, digest, err := digestOf(resp.Body)
	if err != nil {
		return coerce.Asset{}, fmt.Errorf("read asset %s: %w", id, err)
	}
	return coerce.Asset{ID: id, Kind: kind, Size: size, Digest: digest}, nil
}
