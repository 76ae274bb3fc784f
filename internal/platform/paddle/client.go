package paddle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/apperr"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/config"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/logctx"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/metrics"
)

// ErrNotFound is returned when the provider has no such subscription.
var ErrNotFound = errors.New("paddle: subscription not found")

// Provider is the subset of the billing API the engine depends on.
type Provider interface {
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	// CancelSubscription schedules cancellation at the next billing period.
	CancelSubscription(ctx context.Context, id string) (*Subscription, error)
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Business
	log        *zap.SugaredLogger
}

var _ Provider = (*Client)(nil)

func NewClient(cfg *config.Config, m *metrics.Business, log *zap.SugaredLogger) *Client {
	timeout := cfg.Paddle.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:     strings.TrimSpace(cfg.Paddle.APIKey),
		baseURL:    strings.TrimRight(cfg.Paddle.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		metrics:    m,
		log:        log,
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"error"`
}

func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	out, err := c.do(ctx, "get_subscription", http.MethodGet, "/subscriptions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return DecodeSubscription(out)
}

func (c *Client) CancelSubscription(ctx context.Context, id string) (*Subscription, error) {
	body := map[string]string{"effective_from": "next_billing_period"}
	out, err := c.do(ctx, "cancel_subscription", http.MethodPost, "/subscriptions/"+url.PathEscape(id)+"/cancel", body)
	if err != nil {
		return nil, err
	}
	return DecodeSubscription(out)
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, errors.New("paddle api key is not configured")
	}
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ProviderCall(op, "error", metrics.MillisecondsSince(start))
		return nil, apperr.Transient(fmt.Errorf("paddle %s: %w", op, err))
	}
	defer resp.Body.Close()
	c.metrics.ProviderCall(op, strconv.Itoa(resp.StatusCode), metrics.MillisecondsSince(start))

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, apperr.Transient(fmt.Errorf("paddle %s failed: status=%d", op, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		logctx.FromCtx(ctx, c.log).Warnw("paddle request rejected", "op", op, "status", resp.StatusCode, "body", string(raw))
		return nil, fmt.Errorf("paddle %s failed: status=%d", op, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode paddle %s response: %w", op, err)
	}
	return env.Data, nil
}

var Module = fx.Options(
	fx.Provide(
		NewClient,
		func(c *Client) Provider { return c },
	),
)
