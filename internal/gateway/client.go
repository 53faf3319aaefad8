// Package gateway implements the REST client for the upstream message
// gateway: one named operation per call, JSON in, parsed JSON out.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wxpipe/wxpipe/internal/config"
)

// Client issues calls against the gateway's REST surface. It is
// stateless apart from the shared rate limiter and safe for concurrent
// use; retries are the caller's concern.
type Client struct {
	logger    *slog.Logger
	baseURL   string
	accountID string
	timeout   time.Duration
	limiter   *rate.Limiter
	http      *http.Client
}

func NewClient(log *slog.Logger, cfg config.GatewayConfig) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	for op, path := range operationPaths {
		if !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("gateway operation %q has invalid path %q", op, path)
		}
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = config.DefaultTimeoutSeconds * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		logger:    log.With(slog.String("component", "gateway")),
		baseURL:   baseURL,
		accountID: strings.TrimSpace(cfg.AccountID),
		timeout:   timeout,
		limiter:   rate.NewLimiter(limit, 1),
		http:      &http.Client{},
	}, nil
}

// AccountID returns the local account identity the gateway serves.
func (c *Client) AccountID() string {
	return c.accountID
}

// SendText sends a plain text message to the given contact or group.
func (c *Client) SendText(ctx context.Context, toID, text string) error {
	_, err := c.Call(ctx, OpSendText, map[string]any{
		"At":      "",
		"Content": text,
		"ToWxid":  toID,
		"Type":    1,
		"Wxid":    c.accountID,
	})
	return err
}

// ClaimRedPacket opens the red packet described by the message XML.
func (c *Client) ClaimRedPacket(ctx context.Context, senderID, packetXML string) error {
	_, err := c.Call(ctx, OpClaimRedPacket, map[string]any{
		"Wxid":         c.accountID,
		"Xml":          packetXML,
		"SendUserName": senderID,
	})
	return err
}

// Call posts the body to the named operation and returns the parsed
// JSON response. Unknown operation names fail with the valid set.
func (c *Client) Call(ctx context.Context, op string, body map[string]any) (map[string]any, error) {
	return c.do(ctx, op, body, nil)
}

// CallQuery is Call with URL query parameters instead of a JSON body.
func (c *Client) CallQuery(ctx context.Context, op string, query url.Values) (map[string]any, error) {
	return c.do(ctx, op, nil, query)
}

func (c *Client) do(ctx context.Context, op string, body map[string]any, query url.Values) (map[string]any, error) {
	path, err := resolvePath(op)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("gateway %s: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("gateway %s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, reader)
	if err != nil {
		return nil, fmt.Errorf("gateway %s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway %s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("gateway call failed",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
			slog.String("response", string(snippet)),
		)
		return nil, fmt.Errorf("gateway %s: status %d", op, resp.StatusCode)
	}

	var parsed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("gateway %s: decode response: %w", op, err)
	}
	return parsed, nil
}

func resolvePath(op string) (string, error) {
	if path, ok := operationPaths[strings.ToLower(strings.TrimSpace(op))]; ok {
		return path, nil
	}
	valid := make([]string, 0, len(operationPaths))
	for name := range operationPaths {
		valid = append(valid, name)
	}
	sort.Strings(valid)
	return "", fmt.Errorf("unknown gateway operation %q, valid: %s", op, strings.Join(valid, ", "))
}
