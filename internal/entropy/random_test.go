package entropy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilClientUsesCrypto(t *testing.T) {
	var c *Client
	assert.False(t, c.Enabled())
	assert.NotZero(t, c.Seed(context.Background()))
	assert.Nil(t, NewClient(""))
}

func TestSeedFromRandomOrg(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string         `json:"method"`
			Params map[string]any `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "generateBlobs", req.Method)
		assert.Equal(t, "key", req.Params["apiKey"])
		w.Write([]byte(`{"jsonrpc":"2.0","result":{"random":{"data":["0100000000000000"]}},"id":1}`))
	}))
	defer srv.Close()

	c := NewClient("key")
	c.Endpoint = srv.URL
	assert.True(t, c.Enabled())
	assert.Equal(t, uint64(1), c.Seed(context.Background()))
}

func TestSeedFallsBackOnAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","error":{"message":"quota exceeded"},"id":1}`))
	}))
	defer srv.Close()

	c := NewClient("key")
	c.Endpoint = srv.URL
	_, err := c.fetch(context.Background())
	assert.ErrorContains(t, err, "quota exceeded")
	assert.NotZero(t, c.Seed(context.Background()))
}

func TestCryptoSeedVaries(t *testing.T) {
	assert.NotEqual(t, CryptoSeed(), CryptoSeed())
}
