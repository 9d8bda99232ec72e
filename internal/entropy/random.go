// Package entropy draws fresh simulation seeds. Seeds come from random.org when
// an API key is configured, and from crypto/rand otherwise or on any failure.
package entropy

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultEndpoint is the random.org JSON-RPC endpoint.
const DefaultEndpoint = "https://api.random.org/json-rpc/4/invoke"

// Client fetches seeds from random.org.
type Client struct {
	apiKey string
	client *http.Client

	// Endpoint is the JSON-RPC URL; DefaultEndpoint unless overridden.
	Endpoint string
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
		Endpoint: DefaultEndpoint,
	}
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Seed returns a non-zero 64-bit seed. It never fails: random.org errors fall
// back to crypto/rand.
func (c *Client) Seed(ctx context.Context) uint64 {
	if !c.Enabled() {
		return CryptoSeed()
	}
	seed, err := c.fetch(ctx)
	if err != nil {
		slog.Debug("random.org seed failed, using crypto/rand", "error", err)
		return CryptoSeed()
	}
	if seed == 0 {
		return 1
	}
	return seed
}

func (c *Client) fetch(ctx context.Context) (uint64, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateBlobs",
		"params": map[string]any{
			"apiKey": c.apiKey,
			"n":      1,
			"size":   64,
			"format": "hex",
		},
		"id": 1,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch: status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}

	var result struct {
		Result struct {
			Random struct {
				Data []string `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}
	if result.Error != nil {
		return 0, fmt.Errorf("api: %s", result.Error.Message)
	}
	if len(result.Result.Random.Data) == 0 {
		return 0, fmt.Errorf("api: empty blob list")
	}

	raw, err := hex.DecodeString(result.Result.Random.Data[0])
	if err != nil || len(raw) < 8 {
		return 0, fmt.Errorf("api: malformed blob %q", result.Result.Random.Data[0])
	}
	return binary.LittleEndian.Uint64(raw[:8]), nil
}

// CryptoSeed returns a non-zero seed from crypto/rand.
func CryptoSeed() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		return uint64(time.Now().UnixNano()) | 1
	}
	if n := binary.LittleEndian.Uint64(buf[:]); n != 0 {
		return n
	}
	return 1
}
