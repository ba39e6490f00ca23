// Package noderpc is a resilient client for a CometBFT-style node RPC endpoint.
//
// Every public call goes through one retry executor (Execute) on top of a
// non-retrying Transport, and returns a CallResult rather than an error. The
// client also tracks the node's sync state; see CheckHealth and WaitForSync.
package noderpc

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"github.com/bridgeguard/nodeguard/internal/config"
)

// Endpoint identifies the node a client talks to. It is never mutated after construction.
type Endpoint struct {
	URL     string `json:"url"`
	ChainID string `json:"chain_id"`
	Moniker string `json:"moniker"`
	Home    string `json:"home"`
	Denom   string `json:"denom"`
}

// Client talks to one node. It is safe for concurrent use.
type Client struct {
	endpoint  Endpoint
	policy    RetryPolicy
	caller    Caller
	transport *Transport
	metrics   *Metrics

	mu         sync.RWMutex
	state      SyncState
	observedAt time.Time
}

type Option func(*Client)

// WithCaller replaces the HTTP transport, e.g. with a fake in tests.
func WithCaller(caller Caller) Option {
	return func(c *Client) { c.caller = caller }
}

// WithMetrics records call and sync metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a client for endpoint using policy for every idempotent call.
func New(endpoint Endpoint, policy RetryPolicy, opts ...Option) (*Client, error) {
	if strings.TrimSpace(endpoint.URL) == "" {
		return nil, fmt.Errorf("endpoint url cannot be empty")
	}
	u, err := url.Parse(endpoint.URL)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("endpoint url must be http or https, got %q", endpoint.URL)
	}

	c := &Client{
		endpoint: endpoint,
		policy:   policy.normalized(),
		state:    SyncState{Phase: PhaseUnknown},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.caller == nil {
		c.transport = NewTransport(endpoint.URL, policy.AttemptTimeout)
		c.caller = c.transport
	}

	log.Info().
		Str("url", endpoint.URL).
		Str("chain_id", endpoint.ChainID).
		Str("moniker", endpoint.Moniker).
		Int("max_attempts", c.policy.MaxAttempts).
		Str("base_delay", c.policy.BaseDelay.String()).
		Str("max_delay", c.policy.MaxDelay.String()).
		Msg("node rpc client initialized")

	return c, nil
}

// NewFromConfig builds the endpoint and retry policy from environment configuration.
func NewFromConfig(cfg *config.AppConfig, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	endpoint := Endpoint{
		URL:     cfg.RPCURL,
		ChainID: cfg.ChainID,
		Moniker: cfg.Moniker,
		Home:    cfg.NodeHome(),
		Denom:   cfg.Denom,
	}
	policy := RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		BaseDelay:      cfg.BaseDelay,
		Multiplier:     cfg.Multiplier,
		MaxDelay:       cfg.MaxDelay,
		JitterFraction: cfg.Jitter,
		AttemptTimeout: cfg.RequestTimeout,
	}
	return New(endpoint, policy, opts...)
}

func (c *Client) Endpoint() Endpoint { return c.endpoint }

func (c *Client) Policy() RetryPolicy { return c.policy }

// Close releases the client's pooled connections. The client must not be used afterwards.
func (c *Client) Close() error {
	if c.transport != nil {
		c.transport.Close()
	}
	return nil
}

// call runs one JSON-RPC method through the retry executor, decodes its result into T
// and records the outcome.
func call[T any](ctx context.Context, c *Client, method string, params any, policy RetryPolicy, classify Classifier) CallResult[T] {
	return record(c, method, execute[T](ctx, c, method, params, policy, classify))
}

// execute is call without recording, for callers that reinterpret the failure first.
func execute[T any](ctx context.Context, c *Client, method string, params any, policy RetryPolicy, classify Classifier) CallResult[T] {
	return Execute(ctx, method, policy, classify, func(ctx context.Context) (T, error) {
		var out T
		raw, err := c.caller.Call(ctx, method, params)
		if err != nil {
			return out, err
		}
		if err := sonic.Unmarshal(raw, &out); err != nil {
			return out, &CallError{Kind: KindMalformedResponse, Message: fmt.Sprintf("decode %s result: %v", method, err), Sent: true, err: err}
		}
		return out, nil
	})
}

// record reports the final outcome of a call to metrics and logs.
func record[T any](c *Client, method string, res CallResult[T]) CallResult[T] {
	c.metrics.observeCall(method, res.Attempts, res.Elapsed, res.Err)
	if res.Err != nil {
		log.Error().
			Err(res.Err).
			Str("method", method).
			Int("attempts", res.Attempts).
			Str("category", string(res.Err.Category())).
			Msg("rpc call failed")
	}
	return res
}

// mapResult converts a successful payload while keeping attempts, timing and errors.
func mapResult[A, B any](in CallResult[A], f func(A) B) CallResult[B] {
	out := CallResult[B]{
		Success:  in.Success,
		Err:      in.Err,
		Attempts: in.Attempts,
		Elapsed:  in.Elapsed,
	}
	if in.Success {
		out.Payload = f(in.Payload)
	}
	return out
}

func invalidRequest[T any](msg string) CallResult[T] {
	return CallResult[T]{Err: &CallError{Kind: KindInvalidRequest, Message: msg}}
}
