package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/0xmhha/token-screener/internal/constants"
	applog "github.com/0xmhha/token-screener/internal/logger"
)

// Common errors
var (
	// ErrRequestFailed is returned when the verification service cannot be reached
	// or answers with a non-2xx status
	ErrRequestFailed = errors.New("verification request failed")

	// ErrInvalidResponse is returned when the response body is not the expected envelope
	ErrInvalidResponse = errors.New("invalid verification response")
)

// StatusSuccess is the status value of a successful lookup
const StatusSuccess = "1"

// ABIResult is the envelope returned by an Etherscan-compatible getabi call
type ABIResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// IsSuccess reports whether the service found verified source for the address
func (r *ABIResult) IsSuccess() bool {
	return r != nil && r.Status == StatusSuccess
}

// HasABI reports whether a success result carries an ABI payload
func (r *ABIResult) HasABI() bool {
	return r.IsSuccess() && strings.TrimSpace(r.Result) != ""
}

// Verifier looks up verified contract interfaces
type Verifier interface {
	GetABI(ctx context.Context, address common.Address) (*ABIResult, error)
}

// Config holds verifier configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RateLimit is requests per second; zero disables limiting
	RateLimit float64
	// CacheTTL is how long answers are reused; zero disables caching
	CacheTTL time.Duration
	Logger   *zap.Logger
	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client
}

// DefaultConfig returns a configuration pointing at the public Etherscan API
func DefaultConfig(apiKey string) *Config {
	return &Config{
		BaseURL:   constants.DefaultVerifierBaseURL,
		APIKey:    apiKey,
		Timeout:   constants.DefaultVerifierTimeout,
		RateLimit: constants.DefaultVerifierRateLimit,
		CacheTTL:  constants.DefaultVerifierCacheTTL,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base url cannot be empty")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative")
	}
	return nil
}

// EtherscanVerifier implements Verifier against an Etherscan-compatible API
type EtherscanVerifier struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	results    *cache.Cache
	logger     *zap.Logger
}

var _ Verifier = (*EtherscanVerifier)(nil)

// NewEtherscanVerifier creates a verifier instance
func NewEtherscanVerifier(cfg *Config) (*EtherscanVerifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = applog.WithComponent(logger, "verifier")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	v := &EtherscanVerifier{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     logger,
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		v.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if cfg.CacheTTL > 0 {
		v.results = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return v, nil
}

// GetABI fetches the verified ABI for an address.
// A non-success status is returned as a result, not an error.
func (v *EtherscanVerifier) GetABI(ctx context.Context, address common.Address) (*ABIResult, error) {
	key := strings.ToLower(address.Hex())
	if v.results != nil {
		if cached, ok := v.results.Get(key); ok {
			return cached.(*ABIResult), nil
		}
	}

	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", ErrRequestFailed, err)
		}
	}

	result, err := v.fetchABI(ctx, key)
	if err != nil {
		return nil, err
	}

	// Unverified and throttled answers are retried on the next lookup.
	if v.results != nil && result.IsSuccess() {
		v.results.Set(key, result, cache.DefaultExpiration)
	}

	v.logger.Debug("verification lookup",
		zap.String("address", key),
		zap.String("status", result.Status),
		zap.String("message", result.Message))
	return result, nil
}

func (v *EtherscanVerifier) fetchABI(ctx context.Context, address string) (*ABIResult, error) {
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getabi")
	params.Set("address", address)
	if v.apiKey != "" {
		params.Set("apikey", v.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http status %d", ErrRequestFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	var result ABIResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &result, nil
}

// CanonicalABI parses an ABI JSON document and re-serializes it compactly
func CanonicalABI(raw string) (string, error) {
	var parsed interface{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", fmt.Errorf("failed to parse ABI: %w", err)
	}
	out, err := json.Marshal(parsed)
	if err != nil {
		return "", fmt.Errorf("failed to serialize ABI: %w", err)
	}
	return string(out), nil
}
