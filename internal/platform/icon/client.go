// Package icon is a read-only ICON JSON-RPC v3 client for the swap exchange
// SCORE and IRC-2 token contracts.
package icon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alanyoungcy/swapmarket/internal/domain"
)

const (
	// DefaultPageSize is the largest page the exchange SCORE returns.
	DefaultPageSize = 100

	// maxPages bounds a single paged listing.
	maxPages = 1000

	nativeDecimals = 18
	nativeSymbol   = "ICX"
)

// Client calls read-only SCORE methods through icx_call.
type Client struct {
	endpoint   string
	exchange   string
	pageSize   int
	httpClient *http.Client
	nextID     atomic.Int64
}

var _ domain.MarketDataSource = (*Client)(nil)

// NewClient creates a client for the JSON-RPC endpoint, e.g.
// "https://ctz.solidwallet.io/api/v3", reading markets from the exchange
// SCORE at exchange.
func NewClient(endpoint, exchange string, pageSize int, timeout time.Duration) *Client {
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		exchange: exchange,
		pageSize: pageSize,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetBuyers returns every pending swap of the buyers listing for pairName.
func (c *Client) GetBuyers(ctx context.Context, pairName string) ([]domain.Swap, error) {
	swaps, err := c.listAll(ctx, "get_market_buyers_pending_swaps", pairName)
	if err != nil {
		return nil, fmt.Errorf("icon: get buyers %s: %w", pairName, err)
	}
	return swaps, nil
}

// GetSellers returns every pending swap of the sellers listing for pairName.
func (c *Client) GetSellers(ctx context.Context, pairName string) ([]domain.Swap, error) {
	swaps, err := c.listAll(ctx, "get_market_sellers_pending_swaps", pairName)
	if err != nil {
		return nil, fmt.Errorf("icon: get sellers %s: %w", pairName, err)
	}
	return swaps, nil
}

// GetFilledSwaps returns up to limit filled swaps starting at offset, most
// recent first.
func (c *Client) GetFilledSwaps(ctx context.Context, pairName string, offset, limit int) ([]domain.Swap, error) {
	if offset < 0 || limit < 0 {
		return nil, fmt.Errorf("icon: get filled swaps %s: negative offset or limit", pairName)
	}
	out := make([]domain.Swap, 0, limit)
	for len(out) < limit {
		size := min(c.pageSize, limit-len(out))
		page, err := c.listPage(ctx, "get_market_filled_swaps", pairName, offset+len(out), size)
		if err != nil {
			return nil, fmt.Errorf("icon: get filled swaps %s: %w", pairName, err)
		}
		out = append(out, page...)
		if len(page) < size {
			break
		}
	}
	return out, nil
}

// GetDecimals calls the token's decimals method.
func (c *Client) GetDecimals(ctx context.Context, asset domain.AssetID) (int, error) {
	if asset == domain.NativeICX {
		return nativeDecimals, nil
	}
	var hex string
	if err := c.call(ctx, string(asset), "decimals", nil, &hex); err != nil {
		return 0, fmt.Errorf("icon: decimals of %s: %w", asset, err)
	}
	d, err := hexutil.DecodeUint64(hex)
	if err != nil {
		return 0, fmt.Errorf("icon: decimals of %s: decode %q: %w", asset, hex, err)
	}
	return int(d), nil
}

// GetSymbol calls the token's symbol method.
func (c *Client) GetSymbol(ctx context.Context, asset domain.AssetID) (string, error) {
	if asset == domain.NativeICX {
		return nativeSymbol, nil
	}
	var sym string
	if err := c.call(ctx, string(asset), "symbol", nil, &sym); err != nil {
		return "", fmt.Errorf("icon: symbol of %s: %w", asset, err)
	}
	return sym, nil
}

// listAll pages through a pending-swap listing until a short page.
func (c *Client) listAll(ctx context.Context, method, pairName string) ([]domain.Swap, error) {
	var out []domain.Swap
	for page := 0; page < maxPages; page++ {
		swaps, err := c.listPage(ctx, method, pairName, page*c.pageSize, c.pageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, swaps...)
		if len(swaps) < c.pageSize {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%s: more than %d pages", method, maxPages)
}

func (c *Client) listPage(ctx context.Context, method, pairName string, offset, size int) ([]domain.Swap, error) {
	params := map[string]string{
		"pair":   pairName,
		"offset": hexutil.EncodeUint64(uint64(offset)),
		"size":   hexutil.EncodeUint64(uint64(size)),
	}
	var raw []swapJSON
	if err := c.call(ctx, c.exchange, method, params, &raw); err != nil {
		return nil, err
	}
	swaps := make([]domain.Swap, 0, len(raw))
	for _, r := range raw {
		s, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, s)
	}
	return swaps, nil
}

// --------------------------------------------------------------------------
// JSON-RPC envelope
// --------------------------------------------------------------------------

type rpcRequest struct {
	JSONRPC string     `json:"jsonrpc"`
	Method  string     `json:"method"`
	ID      int64      `json:"id"`
	Params  callParams `json:"params"`
}

type callParams struct {
	To       string   `json:"to"`
	DataType string   `json:"dataType"`
	Data     callData `json:"data"`
}

type callData struct {
	Method string            `json:"method"`
	Params map[string]string `json:"params,omitempty"`
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

// call performs icx_call of method on the contract at to and decodes the
// result into out.
func (c *Client) call(ctx context.Context, to, method string, params map[string]string, out any) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		Method:  "icx_call",
		ID:      c.nextID.Add(1),
		Params: callParams{
			To:       to,
			DataType: "call",
			Data:     callData{Method: method, Params: params},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
		}
		return fmt.Errorf("decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
