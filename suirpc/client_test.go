package suirpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	memorystore "github.com/fOmar24/Medical-Research-Data-Sharing/storage/memory"
)

func rpcServer(t *testing.T, handler func(method string, params []any) (any, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handler(req.Method, req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestVerifyTransactionSuccess(t *testing.T) {
	srv := rpcServer(t, func(method string, params []any) (any, *rpcError) {
		require.Equal(t, "sui_getTransactionBlock", method)
		require.Equal(t, "DIGEST1", params[0])
		return map[string]any{
			"effects":     map[string]any{"status": map[string]any{"status": "success"}},
			"timestampMs": "1700000000000",
			"transaction": map[string]any{"data": map[string]any{"sender": "0xsender"}},
		}, nil
	})
	defer srv.Close()

	c := New(srv.URL)
	v, err := c.VerifyTransaction(context.Background(), "DIGEST1")
	require.NoError(t, err)
	require.True(t, v.Valid)
	require.Equal(t, "0xsender", v.Sender)
	require.Equal(t, "1700000000000", v.TimestampMs)
}

func TestVerifyTransactionFailedExecution(t *testing.T) {
	srv := rpcServer(t, func(string, []any) (any, *rpcError) {
		return map[string]any{
			"effects": map[string]any{"status": map[string]any{"status": "failure"}},
		}, nil
	})
	defer srv.Close()

	v, err := New(srv.URL).VerifyTransaction(context.Background(), "D")
	require.NoError(t, err)
	require.False(t, v.Valid)
}

func TestVerifyTransactionUnknownDigest(t *testing.T) {
	srv := rpcServer(t, func(string, []any) (any, *rpcError) {
		return nil, &rpcError{Code: -32602, Message: "Could not find the referenced transaction"}
	})
	defer srv.Close()

	// Unknown digest is a negative answer, not a transport failure.
	v, err := New(srv.URL).VerifyTransaction(context.Background(), "D")
	require.NoError(t, err)
	require.False(t, v.Valid)
}

func TestVerifyTransactionCaches(t *testing.T) {
	calls := 0
	srv := rpcServer(t, func(string, []any) (any, *rpcError) {
		calls++
		return map[string]any{
			"effects": map[string]any{"status": map[string]any{"status": "success"}},
		}, nil
	})
	defer srv.Close()

	c := New(srv.URL).WithCache(memorystore.NewKV())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := c.VerifyTransaction(ctx, "D")
		require.NoError(t, err)
		require.True(t, v.Valid)
	}
	require.Equal(t, 1, calls)
}

func TestGetBalance(t *testing.T) {
	srv := rpcServer(t, func(method string, params []any) (any, *rpcError) {
		require.Equal(t, "suix_getBalance", method)
		require.Equal(t, "0xaddr", params[0])
		return map[string]any{"coinType": "0x2::sui::SUI", "totalBalance": "123456789"}, nil
	})
	defer srv.Close()

	b, err := New(srv.URL).GetBalance(context.Background(), "0xaddr")
	require.NoError(t, err)
	require.Equal(t, "123456789", b.TotalBalance)
}

func TestQueryTransactions(t *testing.T) {
	srv := rpcServer(t, func(method string, params []any) (any, *rpcError) {
		require.Equal(t, "suix_queryTransactionBlocks", method)
		return map[string]any{"data": []map[string]any{
			{"digest": "D1", "timestampMs": "1"},
			{"digest": "D2", "timestampMs": "2"},
		}}, nil
	})
	defer srv.Close()

	txs, err := New(srv.URL).QueryTransactions(context.Background(), "0xaddr", 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Equal(t, "D1", txs[0].Digest)
}
