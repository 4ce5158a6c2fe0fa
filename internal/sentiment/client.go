package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned by Analyze when the outbound budget is spent.
var ErrRateLimited = errors.New("sentiment: rate limited")

// Annotator scores text in [-1, 1]. Implementations never fail; unavailable
// analysis yields a neutral 0.
type Annotator interface {
	Score(ctx context.Context, text string) float64
}

// Noop scores everything neutral. Used when no analysis service is configured.
type Noop struct{}

func (Noop) Score(context.Context, string) float64 { return 0 }

// Confidences are the upstream per-class probabilities.
type Confidences struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

// Score collapses the confidences into positive minus negative, clamped to [-1, 1].
func (c Confidences) Score() float64 {
	s := c.Positive - c.Negative
	switch {
	case math.IsNaN(s):
		return 0
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

// HTTPClient calls a text analytics endpoint over HTTP.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewHTTPClient constructs a client. rps <= 0 disables rate limiting.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, rps float64, logger *slog.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse sentiment url: %w", err)
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(math.Ceil(2*rps))))
	}
	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		limiter: limiter,
		logger:  logger.With(slog.String("component", "sentiment")),
	}, nil
}

// Score implements Annotator. Failures are logged and scored 0.
func (c *HTTPClient) Score(ctx context.Context, text string) float64 {
	conf, err := c.Analyze(ctx, text)
	if err != nil {
		c.logger.Warn("sentiment analysis failed, scoring neutral", slog.String("error", err.Error()))
		return 0
	}
	return conf.Score()
}

// Analyze returns the raw confidences for text.
func (c *HTTPClient) Analyze(ctx context.Context, text string) (Confidences, error) {
	if !c.limiter.Allow() {
		return Confidences{}, ErrRateLimited
	}

	body, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return Confidences{}, err
	}
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: c.baseURL.Path + "/text/analytics/sentiment"})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return Confidences{}, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Confidences{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Confidences{}, fmt.Errorf("sentiment: upstream returned %d", resp.StatusCode)
	}
	var payload Confidences
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Confidences{}, fmt.Errorf("decode sentiment response: %w", err)
	}
	return payload, nil
}

type analyzeRequest struct {
	Text string `json:"text"`
}
