package gateway

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Gateway order and capture statuses
const (
	StatusCompleted = "COMPLETED"
	StatusApproved  = "APPROVED"
	StatusCreated   = "CREATED"
)

// Money is the gateway's amount representation
type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// Decimal parses Value, returning zero when it is empty or malformed
func (m Money) Decimal() decimal.Decimal {
	d, err := decimal.NewFromString(m.Value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Link is a HATEOAS link returned with gateway resources
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

// CreateOrderRequest describes a checkout order initiated by this service
type CreateOrderRequest struct {
	ReferenceID string
	Amount      decimal.Decimal
	Currency    string
	Description string
	ReturnURL   string
	CancelURL   string
}

// Order is the gateway's answer to an order creation
type Order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
}

// ApprovalURL returns the link the payer must visit to approve the order
func (o *Order) ApprovalURL() string {
	for _, l := range o.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

// Capture is the flattened result of capturing (or looking up) an order
type Capture struct {
	OrderID       string
	Status        string
	ReferenceID   string
	CaptureID     string
	CaptureStatus string
	Amount        Money
	PayerEmail    string
	Raw           json.RawMessage
}

// Completed reports whether the gateway settled the money
func (c *Capture) Completed() bool {
	return c.Status == StatusCompleted
}

type orderRequest struct {
	Intent             string              `json:"intent"`
	PurchaseUnits      []purchaseUnit      `json:"purchase_units"`
	ApplicationContext *applicationContext `json:"application_context,omitempty"`
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	Description string `json:"description,omitempty"`
	Amount      Money  `json:"amount"`
}

type applicationContext struct {
	ReturnURL  string `json:"return_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
	UserAction string `json:"user_action,omitempty"`
}

type orderDetails struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Payer  struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
	PurchaseUnits []struct {
		ReferenceID string `json:"reference_id"`
		Amount      Money  `json:"amount"`
		Payments    struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Amount Money  `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func (d *orderDetails) capture(raw []byte) *Capture {
	c := &Capture{
		OrderID:    d.ID,
		Status:     d.Status,
		PayerEmail: d.Payer.EmailAddress,
		Raw:        json.RawMessage(raw),
	}
	if len(d.PurchaseUnits) > 0 {
		pu := d.PurchaseUnits[0]
		c.ReferenceID = pu.ReferenceID
		c.Amount = pu.Amount
		if len(pu.Payments.Captures) > 0 {
			cp := pu.Payments.Captures[0]
			c.CaptureID = cp.ID
			c.CaptureStatus = cp.Status
			c.Amount = cp.Amount
		}
	}
	return c
}

type verifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}
