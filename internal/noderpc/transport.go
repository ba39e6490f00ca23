package noderpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptrace"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog/log"
)

// DefaultAttemptTimeout bounds a single HTTP round trip.
const DefaultAttemptTimeout = 10 * time.Second

// Caller performs exactly one JSON-RPC round trip and returns the raw result member.
// Implementations never retry; failures are returned as *CallError.
type Caller interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// Transport is the HTTP Caller bound to a single node endpoint. It owns its connection pool.
type Transport struct {
	client  *resty.Client
	baseURL string
	timeout time.Duration
	nextID  atomic.Int64
}

// NewTransport creates a pooled JSON-RPC transport for baseURL.
func NewTransport(baseURL string, timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	baseURL = strings.TrimRight(baseURL, "/")

	client := resty.NewWithClient(cleanhttp.DefaultPooledClient()).
		SetBaseURL(baseURL).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetHeader("Accept", "application/json")

	return &Transport{
		client:  client,
		baseURL: baseURL,
		timeout: timeout,
	}
}

// BaseURL returns the endpoint this transport talks to.
func (t *Transport) BaseURL() string { return t.baseURL }

// Timeout returns the per-attempt timeout.
func (t *Transport) Timeout() time.Duration { return t.timeout }

// Call posts one JSON-RPC request. The attempt is bounded by the transport timeout in
// addition to any deadline already carried by ctx.
func (t *Transport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var sent atomic.Bool
	attemptCtx = httptrace.WithClientTrace(attemptCtx, &httptrace.ClientTrace{
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err == nil {
				sent.Store(true)
			}
		},
	})

	body := rpcRequest{
		JSONRPC: "2.0",
		ID:      t.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	log.Trace().
		Str("method", method).
		Str("url", t.baseURL).
		Msg("sending rpc request")

	resp, err := t.client.R().
		SetContext(attemptCtx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/")
	if err != nil {
		ce := classifyNetError(ctx, err)
		ce.Sent = sent.Load()
		log.Debug().
			Err(err).
			Str("method", method).
			Str("kind", string(ce.Kind)).
			Bool("sent", ce.Sent).
			Msg("rpc request failed")
		return nil, ce
	}

	if !resp.IsSuccess() {
		ce := &CallError{
			Kind:    KindHTTPError,
			Status:  resp.StatusCode(),
			Message: truncate(resp.String(), 256),
			Sent:    true,
		}
		log.Debug().
			Int("status", resp.StatusCode()).
			Str("method", method).
			Msg("rpc non-2xx")
		return nil, ce
	}

	var envelope rpcResponse
	if err := sonic.Unmarshal(resp.Body(), &envelope); err != nil {
		log.Error().
			Err(err).
			Str("method", method).
			Int("response_size", len(resp.Body())).
			Msg("failed to parse rpc envelope")
		return nil, &CallError{Kind: KindMalformedResponse, Message: "invalid json-rpc envelope: " + err.Error(), Sent: true, err: err}
	}
	if envelope.Error != nil {
		msg := envelope.Error.Message
		if envelope.Error.Data != "" {
			msg += ": " + envelope.Error.Data
		}
		log.Error().
			Int("code", envelope.Error.Code).
			Str("method", method).
			Str("message", msg).
			Msg("rpc response contains error")
		return nil, &CallError{Kind: KindRPCError, Status: envelope.Error.Code, Message: msg, Sent: true}
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil, &CallError{Kind: KindMalformedResponse, Message: "json-rpc envelope has no result", Sent: true}
	}

	return envelope.Result, nil
}

// Close releases idle pooled connections.
func (t *Transport) Close() {
	if hc := t.client.GetClient(); hc != nil {
		hc.CloseIdleConnections()
	}
}

// HTTPClient exposes the pooled client, mainly for tests that tune its transport.
func (t *Transport) HTTPClient() *http.Client {
	return t.client.GetClient()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
