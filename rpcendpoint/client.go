package rpcendpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nodewatch/rpcmanager/connstatus"
)

const (
	// DefaultCheckMethod is the lightweight RPC method used as a health
	// probe. Daemons are expected to answer it without side effects.
	DefaultCheckMethod = "get_version"

	jsonRPCVersion = "2.0"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Client is a JSON-RPC 2.0 endpoint reachable over HTTP. It implements
// Endpoint. Health checks issue a single POST with optional basic auth and
// record reachability, authentication status and latency.
type Client struct {
	address  string
	priority int

	httpClient  *http.Client
	checkMethod string
	logger      *zap.Logger

	mu            sync.RWMutex
	username      string
	secret        string
	reachable     connstatus.StatusType
	authenticated connstatus.StatusType
	latency       time.Duration
	hasLatency    bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCredentials sets the username and secret used for HTTP basic auth.
func WithCredentials(username, secret string) ClientOption {
	return func(c *Client) {
		c.username = username
		c.secret = secret
	}
}

// WithPriority sets the failover tier. 0 means unranked (probed last).
func WithPriority(priority int) ClientOption {
	return func(c *Client) {
		c.priority = priority
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithCheckMethod overrides the RPC method used for health checks.
func WithCheckMethod(method string) ClientOption {
	return func(c *Client) {
		c.checkMethod = method
	}
}

// WithLogger sets the logger used for check failures.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates an endpoint client for the given RPC URL.
func NewClient(address string, opts ...ClientOption) *Client {
	c := &Client{
		address:       address,
		httpClient:    &http.Client{},
		checkMethod:   DefaultCheckMethod,
		logger:        zap.NewNop(),
		reachable:     connstatus.StatusUnknown,
		authenticated: connstatus.StatusUnknown,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Address implements Endpoint.
func (c *Client) Address() string {
	return c.address
}

// Priority implements Endpoint.
func (c *Client) Priority() int {
	return c.priority
}

// SetCredentials implements Endpoint.
func (c *Client) SetCredentials(username, secret string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username = username
	c.secret = secret
}

// Credentials implements Endpoint.
func (c *Client) Credentials() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username, c.secret
}

// Reachable implements Endpoint.
func (c *Client) Reachable() connstatus.StatusType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reachable
}

// Authenticated implements Endpoint.
func (c *Client) Authenticated() connstatus.StatusType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

// Latency implements Endpoint.
func (c *Client) Latency() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latency, c.hasLatency
}

// Check implements Endpoint. It performs one JSON-RPC round-trip bounded by
// the given timeout. The outcome is stored on the client; concurrent checks
// of the same client resolve last-write-wins.
func (c *Client) Check(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	username, secret := c.Credentials()

	start := time.Now()
	statusCode, err := c.roundTrip(ctx, username, secret)
	elapsed := time.Since(start)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case err != nil:
		c.logger.Debug("endpoint check failed",
			zap.String("address", c.address),
			zap.Error(err))
		c.reachable = connstatus.StatusDown
		c.authenticated = connstatus.StatusUnknown
		c.hasLatency = false
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		c.reachable = connstatus.StatusUp
		c.authenticated = connstatus.StatusDown
		c.latency = elapsed
		c.hasLatency = true
	case statusCode >= 200 && statusCode < 300:
		c.reachable = connstatus.StatusUp
		if username != "" {
			c.authenticated = connstatus.StatusUp
		} else {
			c.authenticated = connstatus.StatusUnknown
		}
		c.latency = elapsed
		c.hasLatency = true
	default:
		c.logger.Debug("endpoint check returned unexpected status",
			zap.String("address", c.address),
			zap.Int("status", statusCode))
		c.reachable = connstatus.StatusDown
		c.authenticated = connstatus.StatusUnknown
		c.hasLatency = false
	}

	return connstatus.IsHealthy(c.reachable, c.authenticated)
}

func (c *Client) roundTrip(ctx context.Context, username, secret string) (int, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: jsonRPCVersion,
		ID:      "0",
		Method:  c.checkMethod,
	})
	if err != nil {
		return 0, errors.Wrap(err, "marshal check request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.address, bytes.NewReader(payload))
	if err != nil {
		return 0, errors.Wrap(err, "build check request")
	}
	req.Header.Set("Content-Type", "application/json")
	if username != "" {
		req.SetBasicAuth(username, secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "check round-trip")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var body rpcResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
			return 0, errors.Wrap(err, "decode check response")
		}
		// An RPC-level error still proves the daemon answered.
	}

	return resp.StatusCode, nil
}
