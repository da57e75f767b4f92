// Package gateway talks to the PayPal REST API: OAuth2 client-credentials
// tokens, Orders v2 create/capture, and webhook signature verification.
//
// The client is stateless and never retries. Transport failures, timeouts
// and non-2xx answers all surface as *Error so callers can log the
// provider's body verbatim; an ambiguous outcome must never be read as
// "not paid".
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Govind-619/SettleSphere/config"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Provider is the name payments are recorded under
const Provider = "paypal"

const maxBodyBytes = 1 << 20

// ErrNotConfigured is returned when client credentials are absent. It is a
// configuration failure and retrying will not help.
var ErrNotConfigured = errors.New("payment gateway not configured")

// Error is a failed exchange with the gateway
type Error struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("gateway %s: status %d: %v: %s", e.Op, e.StatusCode, e.Err, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("gateway %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AlreadyCaptured reports whether the gateway refused a capture because the
// order was captured before
func (e *Error) AlreadyCaptured() bool {
	return e.StatusCode == http.StatusUnprocessableEntity && strings.Contains(e.Body, "ORDER_ALREADY_CAPTURED")
}

// Client is a PayPal REST client
type Client struct {
	cfg        config.GatewayConfig
	baseURL    string
	httpClient *http.Client
	oauth      *clientcredentials.Config
}

// NewClient builds a client from the gateway configuration
func NewClient(cfg config.GatewayConfig) *Client {
	return NewClientWithHTTP(cfg, &http.Client{Timeout: cfg.Timeout})
}

// NewClientWithHTTP builds a client that sends every request, token
// requests included, through httpClient
func NewClientWithHTTP(cfg config.GatewayConfig, httpClient *http.Client) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: httpClient,
		oauth: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     base + "/v1/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
	}
}

// Configured reports whether credentials are present
func (c *Client) Configured() bool {
	return c.cfg.Configured()
}

// VerifiesWebhooks reports whether inbound webhooks must be signature-checked
func (c *Client) VerifiesWebhooks() bool {
	return c.cfg.WebhookID != ""
}

// AccessToken obtains a fresh access token with the client-credentials grant
func (c *Client) AccessToken(ctx context.Context) (*oauth2.Token, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauth.Token(ctx)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return nil, &Error{Op: "token", StatusCode: re.Response.StatusCode, Body: string(re.Body), Err: err}
		}
		return nil, &Error{Op: "token", Err: err}
	}
	return tok, nil
}

// CreateOrder creates a CAPTURE-intent order and returns it with its
// approval link
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	body := orderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			ReferenceID: req.ReferenceID,
			Description: req.Description,
			Amount: Money{
				CurrencyCode: req.Currency,
				Value:        req.Amount.StringFixed(2),
			},
		}},
	}
	if req.ReturnURL != "" || req.CancelURL != "" {
		body.ApplicationContext = &applicationContext{
			ReturnURL:  req.ReturnURL,
			CancelURL:  req.CancelURL,
			UserAction: "PAY_NOW",
		}
	}

	var order Order
	if _, err := c.do(ctx, "create order", http.MethodPost, "/v2/checkout/orders", body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CaptureOrder captures an approved order
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	var details orderDetails
	raw, err := c.do(ctx, "capture order", http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", struct{}{}, &details)
	if err != nil {
		return nil, err
	}
	return details.capture(raw), nil
}

// GetOrder looks up an order, returning it in the same shape as a capture
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Capture, error) {
	var details orderDetails
	raw, err := c.do(ctx, "get order", http.MethodGet, "/v2/checkout/orders/"+orderID, nil, &details)
	if err != nil {
		return nil, err
	}
	return details.capture(raw), nil
}

// VerifyWebhookSignature asks the gateway whether a webhook delivery carries
// a valid signature for the configured webhook
func (c *Client) VerifyWebhookSignature(ctx context.Context, header http.Header, body []byte) (bool, error) {
	req := verifyRequest{
		AuthAlgo:         header.Get("PAYPAL-AUTH-ALGO"),
		CertURL:          header.Get("PAYPAL-CERT-URL"),
		TransmissionID:   header.Get("PAYPAL-TRANSMISSION-ID"),
		TransmissionSig:  header.Get("PAYPAL-TRANSMISSION-SIG"),
		TransmissionTime: header.Get("PAYPAL-TRANSMISSION-TIME"),
		WebhookID:        c.cfg.WebhookID,
		WebhookEvent:     json.RawMessage(body),
	}
	if req.TransmissionID == "" || req.TransmissionSig == "" {
		return false, nil
	}

	var resp verifyResponse
	if _, err := c.do(ctx, "verify webhook", http.MethodPost, "/v1/notifications/verify-webhook-signature", req, &resp); err != nil {
		return false, err
	}
	return resp.VerificationStatus == "SUCCESS", nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) ([]byte, error) {
	tok, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, &Error{Op: op, Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		req.Header.Set("PayPal-Request-Id", uuid.NewString())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, &Error{Op: op, StatusCode: resp.StatusCode, Body: string(raw), Err: err}
		}
	}
	return raw, nil
}
