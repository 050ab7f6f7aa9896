// Package ordersapi is an HTTP client for a hosted inscription order service.
// It implements inscription.Submitter and inscription.Estimator.
package ordersapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/dmitrijs2005/ordvault/internal/inscription"
)

const DefaultTimeout = 60 * time.Second

var defaultBaseURLs = map[string]string{
	inscription.NetworkMainnet:  "https://api.secretkeylabs.io",
	inscription.NetworkSignet:   "https://api-signet.secretkeylabs.io",
	inscription.NetworkTestnet4: "https://api-testnet4.secretkeylabs.io",
}

type Config struct {
	APIKey     string
	Network    string
	BaseURL    string
	HTTPClient *http.Client
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var (
	_ inscription.Submitter = (*Client)(nil)
	_ inscription.Estimator = (*Client)(nil)
)

// NewClient creates a new Client. BaseURL defaults to the service host of
// the configured network.
func NewClient(config Config) (*Client, error) {
	apiKey := strings.TrimSpace(config.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: order service API key is required", common.ErrValidation)
	}

	network := config.Network
	if network == "" {
		network = inscription.NetworkSignet
	}
	if !inscription.ValidNetwork(network) {
		return nil, fmt.Errorf("%w: unknown network %q", common.ErrValidation, network)
	}

	baseURL := strings.TrimSpace(config.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURLs[network]
	}
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpClient,
	}, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

// Submit creates an inscription order for the encoded content.
func (c *Client) Submit(ctx context.Context, req inscription.SubmitRequest) (*inscription.Order, error) {
	if strings.TrimSpace(req.ReceiveAddress) == "" {
		return nil, fmt.Errorf("%w: receive address is required for real inscriptions", common.ErrValidation)
	}

	var raw map[string]any
	if err := c.postJSON(ctx, "/v1/inscriptions/orders", orderBody(req), &raw); err != nil {
		return nil, err
	}
	return parseOrder(raw), nil
}

// Status fetches the current state of an order.
func (c *Client) Status(ctx context.Context, orderID string) (*inscription.OrderStatus, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, fmt.Errorf("%w: order id is required", common.ErrValidation)
	}

	var raw map[string]any
	if err := c.getJSON(ctx, "/v1/inscriptions/orders/"+url.PathEscape(orderID), &raw); err != nil {
		return nil, err
	}
	return parseStatus(raw), nil
}

// Estimate prices an order without creating it.
func (c *Client) Estimate(ctx context.Context, req inscription.SubmitRequest) (*inscription.Estimate, error) {
	var raw map[string]any
	if err := c.postJSON(ctx, "/v1/inscriptions/estimate", orderBody(req), &raw); err != nil {
		return nil, err
	}
	return &inscription.Estimate{
		TotalCost:       intField(raw, "totalCost", "total_cost", "amount"),
		InscriptionSize: int(intField(raw, "inscriptionSize", "inscription_size", "size")),
		NetworkFee:      intField(raw, "networkFee", "network_fee"),
		ServiceFee:      intField(raw, "serviceFee", "service_fee"),
	}, nil
}

func orderBody(req inscription.SubmitRequest) map[string]any {
	body := map[string]any{
		"content":     base64.StdEncoding.EncodeToString(req.Content),
		"contentType": req.ContentType,
		"feeRate":     req.FeeRate,
	}
	if req.ReceiveAddress != "" {
		body["receiveAddress"] = req.ReceiveAddress
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	return body
}

func (c *Client) getJSON(ctx context.Context, endpoint string, target any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(request, endpoint, target)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	return c.do(request, endpoint, target)
}

func (c *Client) do(request *http.Request, endpoint string, target any) error {
	request.Header.Set("X-API-Key", c.apiKey)
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf(
			"order service %s %s failed with status %d: %s",
			request.Method,
			endpoint,
			response.StatusCode,
			strings.TrimSpace(string(responseBody)),
		)
	}

	if err := json.Unmarshal(responseBody, target); err != nil {
		return fmt.Errorf("failed to decode order service response: %w", err)
	}
	return nil
}

// The service has used several spellings for the same fields over time.

func parseOrder(raw map[string]any) *inscription.Order {
	return &inscription.Order{
		OrderID:         stringField(raw, "orderId", "id"),
		PaymentAddress:  stringField(raw, "paymentAddress", "payment_address", "payment"),
		TotalCost:       intField(raw, "totalCost", "total_cost", "amount"),
		InscriptionSize: int(intField(raw, "inscriptionSize", "inscription_size", "size")),
		FeeRate:         stringField(raw, "feeRate", "fee_rate"),
	}
}

func parseStatus(raw map[string]any) *inscription.OrderStatus {
	st := &inscription.OrderStatus{
		InscriptionID: stringField(raw, "inscriptionId", "inscription_id"),
		TxID:          stringField(raw, "txid", "tx"),
		Confirmations: int(intField(raw, "confirmations")),
		Error:         stringField(raw, "error", "message"),
	}

	switch strings.ToLower(stringField(raw, "status", "state")) {
	case "completed", "confirmed", "inscribed":
		st.State = inscription.OrderCompleted
	case "failed", "expired", "cancelled", "canceled":
		st.State = inscription.OrderFailed
	default:
		st.State = inscription.OrderPending
	}
	return st
}

func stringField(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func intField(raw map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case float64:
			return int64(v)
		case string:
			if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return int64(n)
			}
		}
	}
	return 0
}
