package reconcile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Intent names what an inbound payload asks the service to do
type Intent string

const (
	IntentCreateDeposit       Intent = "create_deposit"
	IntentCaptureDeposit      Intent = "capture_deposit"
	IntentCheckoutCompleted   Intent = "checkout_completed"
	IntentCheckoutDenied      Intent = "checkout_denied"
	IntentCaptureRefunded     Intent = "capture_refunded"
	IntentLegacySaleCompleted Intent = "legacy_sale_completed"
	IntentUnhandled           Intent = "unhandled"
)

// Webhook event types acted upon
const (
	EventCheckoutOrderApproved    = "CHECKOUT.ORDER.APPROVED"
	EventCheckoutOrderVoided      = "CHECKOUT.ORDER.VOIDED"
	EventPaymentApprovalReversed  = "CHECKOUT.PAYMENT-APPROVAL.REVERSED"
	EventPaymentCaptureCompleted  = "PAYMENT.CAPTURE.COMPLETED"
	EventPaymentCaptureDenied     = "PAYMENT.CAPTURE.DENIED"
	EventPaymentCaptureDeclined   = "PAYMENT.CAPTURE.DECLINED"
	EventPaymentCaptureRefunded   = "PAYMENT.CAPTURE.REFUNDED"
	EventPaymentSaleCompleted     = "PAYMENT.SALE.COMPLETED"
	actionCreateDeposit           = "create_deposit"
	actionCaptureDeposit          = "capture_deposit"
	checkoutOrderEventTypePrefix  = "CHECKOUT.ORDER."
	captureLinkRel                = "up"
	captureLinkPathSegment        = "/captures/"
)

// Event is a classified inbound payload. The set of implementations is
// closed; Decide switches over all of them.
type Event interface {
	Intent() Intent
	// Reference is the correlating identifier recorded in the audit trail
	Reference() string
	isEvent()
}

// CreateDeposit asks for a gateway order to be created for a pending deposit
type CreateDeposit struct {
	DepositID   string
	Amount      decimal.NullDecimal
	Description string
}

// CaptureDeposit asks for the gateway order of a deposit to be captured and
// the wallet credited
type CaptureDeposit struct {
	DepositID      string
	GatewayOrderID string
	// GatewayStatus is empty until the engine has talked to the gateway
	GatewayStatus string
}

// CheckoutCompleted reports that the payer's money for a checkout was taken
type CheckoutCompleted struct {
	EventID        string
	EventType      string
	GatewayOrderID string
	CaptureID      string
	Amount         decimal.Decimal
	Currency       string
	PayerEmail     string
}

// CheckoutDenied reports a declined, voided or reversed checkout
type CheckoutDenied struct {
	EventID        string
	EventType      string
	GatewayOrderID string
	Reason         string
}

// CaptureRefunded reports a refund against a settled capture
type CaptureRefunded struct {
	EventID        string
	RefundID       string
	CaptureID      string
	RefundAmount   decimal.Decimal
	RefundCurrency string
}

// LegacySaleCompleted is a completed sale from the pre-Orders API, matched
// to an order by invoice number
type LegacySaleCompleted struct {
	EventID       string
	SaleID        string
	Amount        decimal.Decimal
	Currency      string
	InvoiceNumber string
}

// Unhandled is any webhook the service acknowledges without acting on
type Unhandled struct {
	EventID   string
	EventType string
}

func (CreateDeposit) Intent() Intent       { return IntentCreateDeposit }
func (CaptureDeposit) Intent() Intent      { return IntentCaptureDeposit }
func (CheckoutCompleted) Intent() Intent   { return IntentCheckoutCompleted }
func (CheckoutDenied) Intent() Intent      { return IntentCheckoutDenied }
func (CaptureRefunded) Intent() Intent     { return IntentCaptureRefunded }
func (LegacySaleCompleted) Intent() Intent { return IntentLegacySaleCompleted }
func (Unhandled) Intent() Intent           { return IntentUnhandled }

func (e CreateDeposit) Reference() string       { return e.DepositID }
func (e CaptureDeposit) Reference() string      { return e.DepositID }
func (e CheckoutCompleted) Reference() string   { return e.GatewayOrderID }
func (e CheckoutDenied) Reference() string      { return e.GatewayOrderID }
func (e CaptureRefunded) Reference() string     { return e.CaptureID }
func (e LegacySaleCompleted) Reference() string { return e.InvoiceNumber }
func (e Unhandled) Reference() string           { return e.EventID }

func (CreateDeposit) isEvent()       {}
func (CaptureDeposit) isEvent()      {}
func (CheckoutCompleted) isEvent()   {}
func (CheckoutDenied) isEvent()      {}
func (CaptureRefunded) isEvent()     {}
func (LegacySaleCompleted) isEvent() {}
func (Unhandled) isEvent()           {}

// IsDirect reports whether the event came from a synchronous direct action
// rather than an asynchronous gateway webhook
func IsDirect(ev Event) bool {
	switch ev.(type) {
	case CreateDeposit, CaptureDeposit:
		return true
	}
	return false
}

type envelope struct {
	Action        string              `json:"action"`
	DepositID     string              `json:"depositId"`
	Amount        decimal.NullDecimal `json:"amount"`
	PayPalOrderID string              `json:"paypalOrderId"`
	Description   string              `json:"description"`

	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

type resourceAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
	Currency     string `json:"currency"`
	Total        string `json:"total"`
}

func (a resourceAmount) decimal() decimal.Decimal {
	v := a.Value
	if v == "" {
		v = a.Total
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a resourceAmount) currency() string {
	if a.CurrencyCode != "" {
		return a.CurrencyCode
	}
	return a.Currency
}

type webhookResource struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	OrderID       string         `json:"order_id"`
	InvoiceID     string         `json:"invoice_id"`
	InvoiceNumber string         `json:"invoice_number"`
	Custom        string         `json:"custom"`
	Amount        resourceAmount `json:"amount"`
	StatusDetails struct {
		Reason string `json:"reason"`
	} `json:"status_details"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID   string `json:"order_id"`
			CaptureID string `json:"capture_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
	Payer struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
	PurchaseUnits []struct {
		ReferenceID string         `json:"reference_id"`
		Amount      resourceAmount `json:"amount"`
	} `json:"purchase_units"`
	Links []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

// Classify turns a raw inbound body into an Event. An explicit action wins
// over the webhook event type. Unknown event types are Unhandled, not
// errors; a body that cannot be understood is ErrMalformed.
func Classify(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if env.Action != "" {
		return classifyAction(env)
	}
	if env.EventType == "" {
		return nil, fmt.Errorf("%w: neither action nor event_type present", ErrMalformed)
	}
	return classifyWebhook(env)
}

func classifyAction(env envelope) (Event, error) {
	if env.DepositID == "" {
		return nil, fmt.Errorf("%w: depositId is required", ErrMalformed)
	}

	switch env.Action {
	case actionCreateDeposit:
		if env.Amount.Valid && !env.Amount.Decimal.IsPositive() {
			return nil, fmt.Errorf("%w: amount must be positive", ErrMalformed)
		}
		return CreateDeposit{
			DepositID:   env.DepositID,
			Amount:      env.Amount,
			Description: env.Description,
		}, nil
	case actionCaptureDeposit:
		return CaptureDeposit{
			DepositID:      env.DepositID,
			GatewayOrderID: env.PayPalOrderID,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrMalformed, env.Action)
	}
}

func classifyWebhook(env envelope) (Event, error) {
	var res webhookResource
	if len(env.Resource) > 0 && string(env.Resource) != "null" {
		if err := json.Unmarshal(env.Resource, &res); err != nil {
			return nil, fmt.Errorf("%w: resource: %v", ErrMalformed, err)
		}
	}

	switch env.EventType {
	case EventCheckoutOrderApproved, EventPaymentCaptureCompleted:
		ev := CheckoutCompleted{
			EventID:        env.ID,
			EventType:      env.EventType,
			GatewayOrderID: orderID(env.EventType, res),
			Amount:         res.Amount.decimal(),
			Currency:       res.Amount.currency(),
			PayerEmail:     res.Payer.EmailAddress,
		}
		if env.EventType == EventPaymentCaptureCompleted {
			ev.CaptureID = res.ID
		} else if len(res.PurchaseUnits) > 0 {
			ev.Amount = res.PurchaseUnits[0].Amount.decimal()
			ev.Currency = res.PurchaseUnits[0].Amount.currency()
		}
		if ev.GatewayOrderID == "" {
			return nil, fmt.Errorf("%w: %s without order id", ErrMalformed, env.EventType)
		}
		return ev, nil

	case EventPaymentCaptureDenied, EventPaymentCaptureDeclined,
		EventCheckoutOrderVoided, EventPaymentApprovalReversed:
		ev := CheckoutDenied{
			EventID:        env.ID,
			EventType:      env.EventType,
			GatewayOrderID: orderID(env.EventType, res),
			Reason:         res.StatusDetails.Reason,
		}
		if ev.Reason == "" {
			ev.Reason = env.EventType
		}
		if ev.GatewayOrderID == "" {
			return nil, fmt.Errorf("%w: %s without order id", ErrMalformed, env.EventType)
		}
		return ev, nil

	case EventPaymentCaptureRefunded:
		ev := CaptureRefunded{
			EventID:        env.ID,
			RefundID:       res.ID,
			CaptureID:      refundedCaptureID(res),
			RefundAmount:   res.Amount.decimal(),
			RefundCurrency: res.Amount.currency(),
		}
		if ev.CaptureID == "" {
			return nil, fmt.Errorf("%w: refund without capture id", ErrMalformed)
		}
		return ev, nil

	case EventPaymentSaleCompleted:
		ev := LegacySaleCompleted{
			EventID:       env.ID,
			SaleID:        res.ID,
			Amount:        res.Amount.decimal(),
			Currency:      res.Amount.currency(),
			InvoiceNumber: firstNonEmpty(res.InvoiceNumber, res.InvoiceID, res.Custom),
		}
		if ev.InvoiceNumber == "" {
			return nil, fmt.Errorf("%w: sale without invoice number", ErrMalformed)
		}
		return ev, nil
	}

	return Unhandled{EventID: env.ID, EventType: env.EventType}, nil
}

// orderID finds the checkout order a webhook refers to. Capture resources
// carry it in related ids; checkout order resources are the order itself.
func orderID(eventType string, res webhookResource) string {
	id := firstNonEmpty(res.SupplementaryData.RelatedIDs.OrderID, res.OrderID)
	if id == "" && strings.HasPrefix(eventType, checkoutOrderEventTypePrefix) {
		id = res.ID
	}
	return id
}

func refundedCaptureID(res webhookResource) string {
	for _, l := range res.Links {
		if l.Rel != captureLinkRel {
			continue
		}
		if i := strings.LastIndex(l.Href, captureLinkPathSegment); i >= 0 {
			if id := strings.Trim(l.Href[i+len(captureLinkPathSegment):], "/"); id != "" {
				return id
			}
		}
	}
	return firstNonEmpty(res.SupplementaryData.RelatedIDs.CaptureID, res.ID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
