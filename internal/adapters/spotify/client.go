package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ewilliams-labs/crossfade/internal/cache"
	"github.com/ewilliams-labs/crossfade/internal/core/ports"
)

const (
	DefaultBaseURL  = "https://api.spotify.com/v1"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"
	DefaultMarket   = "US"

	tokenCacheKey = "spotify:client_credentials"
	// tokens are refreshed this long before the provider says they expire
	tokenRefreshMargin = 60 * time.Second
)

var errNoCredentials = errors.New("spotify adapter: no client credentials configured")

// Client is an HTTP client for the Spotify Web API catalog endpoints.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	market      string
	maxRetries  int
	baseBackoff time.Duration
	log         logrus.FieldLogger

	credentials *clientcredentials.Config
	tokens      *cache.MemoryCache
}

// compile-time interface assertions
var (
	_ ports.Catalog      = (*Client)(nil)
	_ ports.TrackMatcher = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithCredentials enables the client-credentials token exchange. Without it
// requests are sent unauthenticated.
func WithCredentials(clientID, clientSecret, tokenURL string) Option {
	return func(c *Client) {
		if tokenURL == "" {
			tokenURL = DefaultTokenURL
		}
		c.credentials = &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
	}
}

// WithTokenCache shares a token cache between clients.
func WithTokenCache(tc *cache.MemoryCache) Option {
	return func(c *Client) {
		if tc != nil {
			c.tokens = tc
		}
	}
}

func WithMarket(market string) Option {
	return func(c *Client) {
		if market != "" {
			c.market = market
		}
	}
}

// WithRetry sets the attempt budget and base backoff for 429/5xx responses.
func WithRetry(maxAttempts int, baseBackoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxAttempts
		c.baseBackoff = baseBackoff
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient constructs a new Spotify client.
func NewClient(httpClient *http.Client, baseURL string, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		market:     DefaultMarket,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokens == nil {
		c.tokens = cache.NewMemoryCache(time.Hour, 0)
	}
	return c
}

// AccessToken returns the cached catalog credential, exchanging client
// credentials when it is missing or about to expire. Concurrent refreshes are
// tolerated; the last one stored wins.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if c.credentials == nil {
		return "", errNoCredentials
	}
	if v, ok := c.tokens.Get(tokenCacheKey); ok {
		if tok, ok := v.(string); ok {
			return tok, nil
		}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.credentials.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("spotify adapter: token exchange: %w", err)
	}

	ttl := time.Hour
	if !tok.Expiry.IsZero() {
		ttl = time.Until(tok.Expiry)
	}
	c.tokens.SetWithTTL(tokenCacheKey, tok.AccessToken, ttl-tokenRefreshMargin)
	c.log.WithField("expires_in", ttl.Round(time.Second).String()).Debug("spotify adapter: access token refreshed")
	return tok.AccessToken, nil
}

// newRequest builds an authenticated GET against the catalog API.
func (c *Client) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: build request: %w", err)
	}
	if c.credentials != nil {
		tok, err := c.AccessToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}
