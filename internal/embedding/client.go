package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ClientType selects the wire dialect of the embeddings endpoint.
type ClientType string

const (
	ClientOpenAI ClientType = "openai"
	ClientAzure  ClientType = "azure"
	ClientOSS    ClientType = "oss"
)

const (
	defaultOpenAIEndpoint  = "https://api.openai.com"
	defaultAzureAPIVersion = "2023-05-15"
	userAgent              = "docindex"
)

// DefaultRetrySchedule is the wait before each retry of a rate-limited request.
var DefaultRetrySchedule = []time.Duration{2 * time.Second, 5 * time.Second}

// ClientConfig configures an embeddings client.
type ClientConfig struct {
	Type         ClientType
	APIKey       string
	Endpoint     string
	Model        string
	Organization string

	AzureDeployment string
	AzureAPIVersion string

	// Dimensions is passed through to models that support shortened embeddings (0 = model default).
	Dimensions int
	MaxTokens  int

	RetrySchedule     []time.Duration
	RequestsPerSecond float64
	Timeout           time.Duration
	LogRequests       bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used for request logging and retries.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

// Client calls an OpenAI, Azure OpenAI or OpenAI-compatible embeddings endpoint.
type Client struct {
	cfg     ClientConfig
	url     string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewClient validates cfg and returns a client.
func NewClient(cfg ClientConfig, opts ...ClientOption) (*Client, error) {
	if cfg.Type == "" {
		cfg.Type = ClientOpenAI
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8000
	}
	if cfg.RetrySchedule == nil {
		cfg.RetrySchedule = DefaultRetrySchedule
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	endpoint := strings.TrimSuffix(strings.TrimSpace(cfg.Endpoint), "/")

	var url string
	switch cfg.Type {
	case ClientOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai client requires an API key")
		}
		if cfg.Model == "" {
			cfg.Model = "text-embedding-3-small"
		}
		if endpoint == "" {
			endpoint = defaultOpenAIEndpoint
		}
		url = endpoint + "/v1/embeddings"
	case ClientAzure:
		if cfg.APIKey == "" || cfg.AzureDeployment == "" {
			return nil, fmt.Errorf("azure client requires an API key and a deployment")
		}
		if !strings.HasPrefix(strings.ToLower(endpoint), "https://") {
			return nil, fmt.Errorf("azure client created with an invalid endpoint of '%s': the endpoint must be a valid HTTPS url", endpoint)
		}
		if cfg.AzureAPIVersion == "" {
			cfg.AzureAPIVersion = defaultAzureAPIVersion
		}
		url = fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s", endpoint, cfg.AzureDeployment, cfg.AzureAPIVersion)
	case ClientOSS:
		if endpoint == "" || cfg.Model == "" {
			return nil, fmt.Errorf("oss client requires an endpoint and a model")
		}
		url = endpoint + "/v1/embeddings"
	default:
		return nil, fmt.Errorf("unknown embeddings client type: %s (supported: openai, azure, oss)", cfg.Type)
	}

	c := &Client{
		cfg:    cfg,
		url:    url,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: zap.NewNop(),
		sleep:  sleepContext,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MaxTokens returns the per-request token budget.
func (c *Client) MaxTokens() int {
	return c.cfg.MaxTokens
}

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model,omitempty"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []Embedding `json:"data"`
}

// CreateEmbeddings posts inputs in one request. Rate-limited requests are retried on the
// configured schedule before StatusRateLimited is returned.
func (c *Client) CreateEmbeddings(ctx context.Context, inputs []string) (*Response, error) {
	req := embeddingRequest{Input: inputs, Dimensions: c.cfg.Dimensions}
	if c.cfg.Type != ClientAzure {
		req.Model = c.cfg.Model
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal embeddings request: %w", err)
	}
	if c.cfg.LogRequests {
		c.logger.Info("embeddings request", zap.Int("inputs", len(inputs)), zap.String("url", c.url))
	}

	start := time.Now()
	resp, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embeddings response: %w", err)
	}
	if c.cfg.LogRequests {
		c.logger.Info("embeddings response",
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)),
		)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &Response{Status: StatusRateLimited, Message: "The embeddings API returned a rate limit error."}, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &Response{
			Status:  StatusError,
			Message: fmt.Sprintf("The embeddings API returned an error status of %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}, nil
	}

	var out embeddingResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return &Response{Status: StatusError, Message: fmt.Sprintf("invalid embeddings response: %v", err)}, nil
	}
	return &Response{Status: StatusSuccess, Output: out.Data}, nil
}

func (c *Client) post(ctx context.Context, body []byte) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build embeddings request: %w", err)
		}
		c.setHeaders(req)
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("embeddings request: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= len(c.cfg.RetrySchedule) {
			return resp, nil
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		delay := c.cfg.RetrySchedule[attempt]
		c.logger.Debug("embeddings rate limited, retrying", zap.Int("attempt", attempt+1), zap.Duration("delay", delay))
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	switch c.cfg.Type {
	case ClientAzure:
		req.Header.Set("api-key", c.cfg.APIKey)
	case ClientOpenAI:
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		if c.cfg.Organization != "" {
			req.Header.Set("OpenAI-Organization", c.cfg.Organization)
		}
	case ClientOSS:
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
