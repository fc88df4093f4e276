// Package suirpc is a minimal JSON-RPC client for the Sui fullnode endpoints
// the service depends on: transaction verification, balance lookup, and
// transaction history. It is a boundary collaborator — the authentication
// core never talks to the chain.
package suirpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Cache is an optional ephemeral store for verified transaction results.
// Transaction effects are immutable once finalized, so caching is safe.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

const (
	defaultEndpoint = "https://fullnode.mainnet.sui.io"
	txCachePrefix   = "sui:tx:"
	txCacheTTL      = time.Hour
)

// Client talks JSON-RPC 2.0 to a Sui fullnode.
type Client struct {
	endpoint string
	httpc    *http.Client
	cache    Cache
}

func New(endpoint string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: 15 * time.Second},
	}
}

// WithCache attaches a result cache for VerifyTransaction.
func (c *Client) WithCache(cache Cache) *Client { c.cache = cache; return c }

// WithHTTPClient overrides the underlying HTTP client (tests).
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	if h != nil {
		c.httpc = h
	}
	return c
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("sui rpc %s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sui rpc %s: unexpected status %d", method, resp.StatusCode)
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("sui rpc %s: decode: %w", method, err)
	}
	if rr.Error != nil {
		return fmt.Errorf("sui rpc %s: %w", method, rr.Error)
	}
	if out != nil {
		return json.Unmarshal(rr.Result, out)
	}
	return nil
}

// TxVerification is the oracle's answer for a transaction digest.
type TxVerification struct {
	Valid       bool   `json:"valid"`
	TimestampMs string `json:"timestampMs,omitempty"`
	Sender      string `json:"sender,omitempty"`
}

// VerifyTransaction checks that the digest names a successfully executed
// transaction. An unknown digest reports {Valid: false}, not an error;
// transport failures are errors so callers fail closed.
func (c *Client) VerifyTransaction(ctx context.Context, digest string) (*TxVerification, error) {
	if c.cache != nil {
		if b, ok, err := c.cache.Get(ctx, txCachePrefix+digest); err == nil && ok {
			var v TxVerification
			if json.Unmarshal(b, &v) == nil {
				return &v, nil
			}
		}
	}

	var result struct {
		Effects struct {
			Status struct {
				Status string `json:"status"`
			} `json:"status"`
		} `json:"effects"`
		TimestampMs string `json:"timestampMs"`
		Transaction struct {
			Data struct {
				Sender string `json:"sender"`
			} `json:"data"`
		} `json:"transaction"`
	}
	err := c.call(ctx, "sui_getTransactionBlock", []any{
		digest,
		map[string]bool{"showEffects": true, "showInput": true},
	}, &result)
	if err != nil {
		var rpcErr *rpcError
		// Unknown digests come back as RPC-level errors; everything else
		// (transport, decode) propagates.
		if asRPCError(err, &rpcErr) {
			return &TxVerification{Valid: false}, nil
		}
		return nil, err
	}

	v := &TxVerification{
		Valid:       result.Effects.Status.Status == "success",
		TimestampMs: result.TimestampMs,
		Sender:      result.Transaction.Data.Sender,
	}
	if c.cache != nil && v.Valid {
		if b, err := json.Marshal(v); err == nil {
			_ = c.cache.Set(ctx, txCachePrefix+digest, b, txCacheTTL)
		}
	}
	return v, nil
}

// VerifyDigest is VerifyTransaction reduced to a yes/no answer.
func (c *Client) VerifyDigest(ctx context.Context, digest string) (bool, error) {
	v, err := c.VerifyTransaction(ctx, digest)
	if err != nil {
		return false, err
	}
	return v.Valid, nil
}

func asRPCError(err error, target **rpcError) bool {
	for err != nil {
		if e, ok := err.(*rpcError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Balance is the total coin balance for an address.
type Balance struct {
	CoinType     string `json:"coinType"`
	TotalBalance string `json:"totalBalance"`
}

// GetBalance fetches the SUI balance owned by address.
func (c *Client) GetBalance(ctx context.Context, address string) (*Balance, error) {
	var b Balance
	if err := c.call(ctx, "suix_getBalance", []any{address}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// TxSummary is one entry of an address's transaction history.
type TxSummary struct {
	Digest      string `json:"digest"`
	TimestampMs string `json:"timestampMs,omitempty"`
}

// QueryTransactions lists recent transactions sent from address.
func (c *Client) QueryTransactions(ctx context.Context, address string, limit int) ([]TxSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	var result struct {
		Data []TxSummary `json:"data"`
	}
	err := c.call(ctx, "suix_queryTransactionBlocks", []any{
		map[string]any{"filter": map[string]string{"FromAddress": address}},
		nil, limit, true,
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.Data, nil
}
