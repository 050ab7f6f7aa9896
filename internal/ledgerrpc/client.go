// Package ledgerrpc talks JSON-RPC to a self-hosted Bitcoin node and
// inscribes content as a data-carrier output funded from the node's wallet.
package ledgerrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/ordvault/internal/common"
)

const DefaultTimeout = 30 * time.Second

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Well-known node error codes.
const (
	CodeInvalidAddressOrKey = -5
	CodeWalletError         = -4
	CodeVerifyRejected      = -26
)

type Config struct {
	URL        string
	User       string
	Password   string
	Wallet     string
	HTTPClient *http.Client
}

type Client struct {
	endpoint   string
	user       string
	password   string
	httpClient *http.Client
	nextID     atomic.Uint64
}

func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if raw == "" {
		return nil, fmt.Errorf("%w: node RPC URL is required", common.ErrValidation)
	}
	if _, err := url.Parse(raw); err != nil {
		return nil, fmt.Errorf("%w: node RPC URL: %v", common.ErrValidation, err)
	}
	if cfg.Wallet != "" {
		raw += "/wallet/" + url.PathEscape(cfg.Wallet)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return &Client{
		endpoint:   raw,
		user:       cfg.User,
		password:   cfg.Password,
		httpClient: httpClient,
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Call invokes method and decodes its result into result, which may be nil.
func (c *Client) Call(ctx context.Context, method string, params []any, result any) error {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "1.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	if c.user != "" || c.password != "" {
		request.SetBasicAuth(c.user, c.password)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	// The node reports RPC errors with a 4xx/5xx status and a JSON body, so
	// try to decode before looking at the status code.
	var resp rpcResponse
	if jerr := json.Unmarshal(responseBody, &resp); jerr != nil {
		if response.StatusCode < 200 || response.StatusCode >= 300 {
			return fmt.Errorf("%s failed with status %d: %s", method, response.StatusCode, strings.TrimSpace(string(responseBody)))
		}
		return fmt.Errorf("%s: decode response: %w", method, jerr)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("%s failed with status %d", method, response.StatusCode)
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

// IsCode reports whether err carries a node error with the given code.
func IsCode(err error, code int) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == code
}
