// Package reconcile turns inbound gateway callbacks and direct deposit
// actions into idempotent local state transitions.
//
// Every request runs the same pipeline: classify, resolve, decide, apply,
// then notify. The store's conditional write is the only idempotency gate;
// nothing here holds in-process state between requests.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Govind-619/SettleSphere/gateway"
	"github.com/Govind-619/SettleSphere/models"
	"github.com/Govind-619/SettleSphere/notify"
	"github.com/Govind-619/SettleSphere/store"
	"github.com/Govind-619/SettleSphere/utils"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Gateway is the part of the payment gateway client the engine uses
type Gateway interface {
	Configured() bool
	VerifiesWebhooks() bool
	CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*gateway.Capture, error)
	GetOrder(ctx context.Context, orderID string) (*gateway.Capture, error)
	VerifyWebhookSignature(ctx context.Context, header http.Header, body []byte) (bool, error)
}

// Store resolves records and applies atomic transitions
type Store interface {
	DepositByID(ctx context.Context, id string) (*models.Deposit, error)
	PaymentByGatewayOrder(ctx context.Context, provider, gatewayOrderID string) (*models.Payment, error)
	PaymentByCaptureID(ctx context.Context, provider, captureID string) (*models.Payment, error)
	PaymentByInvoice(ctx context.Context, invoiceNumber string) (*models.Payment, error)
	ApplyCredit(ctx context.Context, depositID string, amount decimal.Decimal, ch store.Change) (*store.Credit, error)
	CompleteCheckout(ctx context.Context, paymentID uint, ch store.Change) (*store.Settlement, error)
	FailCheckout(ctx context.Context, paymentID uint, ch store.Change) (*store.Settlement, error)
	RefundCapture(ctx context.Context, paymentID uint, ch store.Change) (*store.Settlement, error)
	AttachDepositOrder(ctx context.Context, depositID, gatewayOrderID, paymentURL string, ch store.Change) (*models.Deposit, bool, error)
	AnnotatePayment(ctx context.Context, paymentID uint, ch store.Change) error
	AnnotateDeposit(ctx context.Context, depositID string, ch store.Change) error
	RecordEvent(ctx context.Context, event *models.GatewayEvent) error
}

// Notifier receives notices after a transition has committed
type Notifier interface {
	Notify(ctx context.Context, n notify.Notice)
}

// Options configures an Engine
type Options struct {
	Provider  string
	Currency  string
	ReturnURL string
	CancelURL string
	// ExchangeRate converts a deposit amount into the gateway currency
	ExchangeRate decimal.Decimal
	// RequireCaller rejects direct actions without an authenticated caller
	RequireCaller bool
}

// Caller is the authenticated user behind a direct action
type Caller struct {
	UserID uint
}

// Input is one inbound request
type Input struct {
	Body   []byte
	Header http.Header
	Caller *Caller
}

// Status summarises what a request did
type Status string

const (
	StatusApplied           Status = "applied"
	StatusAlreadyProcessed  Status = "already_processed"
	StatusIgnored           Status = "ignored"
	StatusNotFound          Status = "not_found"
	StatusInvalidTransition Status = "invalid_transition"
	StatusMismatch          Status = "mismatch"
	StatusCaptureFailed     Status = "capture_failed"
	StatusRejected          Status = "rejected"
)

// Outcome is the successful result of processing a request. Benign no-ops
// are outcomes too; only failures the caller must see are errors.
type Outcome struct {
	Intent  Intent      `json:"intent"`
	Status  Status      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Engine runs the reconciliation pipeline
type Engine struct {
	gw       Gateway
	store    Store
	notifier Notifier
	opts     Options
}

// NewEngine builds an engine
func NewEngine(gw Gateway, st Store, n Notifier, opts Options) *Engine {
	if opts.Provider == "" {
		opts.Provider = gateway.Provider
	}
	if !opts.ExchangeRate.IsPositive() {
		opts.ExchangeRate = decimal.NewFromInt(1)
	}
	return &Engine{gw: gw, store: st, notifier: n, opts: opts}
}

// Process classifies and reconciles one inbound request
func (e *Engine) Process(ctx context.Context, in Input) (*Outcome, error) {
	ev, err := Classify(in.Body)
	if err != nil {
		utils.LogWarn("Rejected inbound payload: %v", err)
		return nil, err
	}

	if IsDirect(ev) {
		return e.processDirect(ctx, ev, in)
	}
	return e.processWebhook(ctx, ev, in)
}

func (e *Engine) processWebhook(ctx context.Context, ev Event, in Input) (*Outcome, error) {
	if e.gw.VerifiesWebhooks() {
		ok, err := e.gw.VerifyWebhookSignature(ctx, in.Header, in.Body)
		if err != nil {
			return nil, err
		}
		if !ok {
			e.audit(ctx, ev, in.Body, StatusRejected, ErrInvalidSignature)
			return nil, ErrInvalidSignature
		}
	}

	if u, ok := ev.(Unhandled); ok {
		utils.LogInfo("Ignoring webhook %s (%s)", u.EventType, u.EventID)
		out := &Outcome{Intent: ev.Intent(), Status: StatusIgnored, Message: "Event type not handled"}
		e.audit(ctx, ev, in.Body, out.Status, nil)
		return out, nil
	}

	payment, err := e.resolvePayment(ctx, ev)
	if errors.Is(err, store.ErrNotFound) {
		utils.LogWarn("No payment matches %s %s", ev.Intent(), ev.Reference())
		out := &Outcome{Intent: ev.Intent(), Status: StatusNotFound, Message: "No matching payment, nothing to do"}
		e.audit(ctx, ev, in.Body, out.Status, err)
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	if err := e.checkAmount(ev, payment); err != nil {
		utils.LogError("Payment %d: %v", payment.ID, err)
		out := &Outcome{Intent: ev.Intent(), Status: StatusMismatch, Message: "Event does not match payment, nothing to do"}
		e.audit(ctx, ev, in.Body, out.Status, err)
		return out, nil
	}

	ch := webhookChange(ev, in.Body)
	tr, err := Decide(PaymentRecord, payment.Status, ev)
	if isNoop(err) {
		if err := e.store.AnnotatePayment(ctx, payment.ID, ch); err != nil {
			utils.LogError("Failed to record %s on payment %d: %v", ev.Intent(), payment.ID, err)
			return nil, err
		}
	}
	if out, ok := e.benign(ctx, ev, in.Body, err); ok {
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	var settlement *store.Settlement
	switch tr.Effect {
	case EffectMarkOrderPaid:
		settlement, err = e.store.CompleteCheckout(ctx, payment.ID, ch)
	case EffectMarkOrderFailed:
		settlement, err = e.store.FailCheckout(ctx, payment.ID, ch)
	case EffectMarkOrderRefunded:
		settlement, err = e.store.RefundCapture(ctx, payment.ID, ch)
	default:
		err = fmt.Errorf("%w: effect %s on payment", ErrInvalidTransition, tr.Effect)
	}
	if errors.Is(err, store.ErrAlreadyApplied) {
		err = ErrAlreadyProcessed
		if aerr := e.store.AnnotatePayment(ctx, payment.ID, ch); aerr != nil {
			utils.LogError("Failed to record %s on payment %d: %v", ev.Intent(), payment.ID, aerr)
			return nil, aerr
		}
	}
	if out, ok := e.benign(ctx, ev, in.Body, err); ok {
		return out, nil
	}
	if err != nil {
		utils.LogError("Failed to apply %s to payment %d: %v", ev.Intent(), payment.ID, err)
		return nil, err
	}

	e.notifier.Notify(ctx, paymentNotice(ev, settlement))

	out := &Outcome{
		Intent:  ev.Intent(),
		Status:  StatusApplied,
		Message: fmt.Sprintf("Payment %s", settlement.Payment.Status),
		Data:    paymentData(settlement),
	}
	e.audit(ctx, ev, in.Body, out.Status, nil)
	return out, nil
}

func (e *Engine) resolvePayment(ctx context.Context, ev Event) (*models.Payment, error) {
	switch v := ev.(type) {
	case CheckoutCompleted:
		return e.store.PaymentByGatewayOrder(ctx, e.opts.Provider, v.GatewayOrderID)
	case CheckoutDenied:
		return e.store.PaymentByGatewayOrder(ctx, e.opts.Provider, v.GatewayOrderID)
	case CaptureRefunded:
		return e.store.PaymentByCaptureID(ctx, e.opts.Provider, v.CaptureID)
	case LegacySaleCompleted:
		return e.store.PaymentByInvoice(ctx, v.InvoiceNumber)
	}
	return nil, fmt.Errorf("%w: %s does not resolve to a payment", ErrInvalidTransition, ev.Intent())
}

// checkAmount refuses to settle a payment for a different sum than it was
// created for. Events that carry no amount pass.
func (e *Engine) checkAmount(ev Event, p *models.Payment) error {
	var amount decimal.Decimal
	var currency string
	switch v := ev.(type) {
	case CheckoutCompleted:
		amount, currency = v.Amount, v.Currency
	case LegacySaleCompleted:
		amount, currency = v.Amount, v.Currency
	default:
		return nil
	}
	if !amount.IsZero() && !amount.Equal(p.Amount) {
		return fmt.Errorf("%w: amount %s, expected %s", ErrMismatch, amount, p.Amount)
	}
	if currency != "" && p.Currency != "" && currency != p.Currency {
		return fmt.Errorf("%w: currency %s, expected %s", ErrMismatch, currency, p.Currency)
	}
	return nil
}

// isNoop reports whether err is an outcome answered with success and no
// status change
func isNoop(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed) || errors.Is(err, ErrInvalidTransition)
}

// benign turns replays and off-table transitions into successful no-op
// outcomes so the gateway stops retrying them
func (e *Engine) benign(ctx context.Context, ev Event, body []byte, err error) (*Outcome, bool) {
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		utils.LogInfo("%s for %s already processed", ev.Intent(), ev.Reference())
		out := &Outcome{Intent: ev.Intent(), Status: StatusAlreadyProcessed, Message: "Already processed"}
		e.audit(ctx, ev, body, out.Status, nil)
		return out, true
	case errors.Is(err, ErrInvalidTransition):
		utils.LogWarn("Ignoring %s for %s: %v", ev.Intent(), ev.Reference(), err)
		out := &Outcome{Intent: ev.Intent(), Status: StatusInvalidTransition, Message: "Transition not allowed, nothing to do"}
		e.audit(ctx, ev, body, out.Status, err)
		return out, true
	}
	return nil, false
}

func (e *Engine) processDirect(ctx context.Context, ev Event, in Input) (*Outcome, error) {
	if e.opts.RequireCaller && in.Caller == nil {
		return nil, ErrUnauthorized
	}

	deposit, err := e.store.DepositByID(ctx, ev.Reference())
	if errors.Is(err, store.ErrNotFound) {
		utils.LogWarn("%s for unknown deposit %s", ev.Intent(), ev.Reference())
		return nil, fmt.Errorf("%w: deposit %s", ErrNotFound, ev.Reference())
	}
	if err != nil {
		return nil, err
	}
	if in.Caller != nil && deposit.UserID != in.Caller.UserID {
		utils.LogWarn("User %d attempted %s on deposit %s owned by %d", in.Caller.UserID, ev.Intent(), deposit.ID, deposit.UserID)
		return nil, ErrForbidden
	}

	switch v := ev.(type) {
	case CreateDeposit:
		return e.createDeposit(ctx, v, deposit, in.Body)
	case CaptureDeposit:
		return e.captureDeposit(ctx, v, deposit, in.Body)
	}
	return nil, fmt.Errorf("%w: %s is not a direct action", ErrMalformed, ev.Intent())
}

func (e *Engine) createDeposit(ctx context.Context, ev CreateDeposit, deposit *models.Deposit, body []byte) (*Outcome, error) {
	_, err := Decide(DepositRecord, deposit.Status, ev)
	if errors.Is(err, ErrAlreadyProcessed) {
		return e.depositReplay(ctx, ev, deposit, body, "Deposit already completed")
	}
	if err != nil {
		return nil, err
	}
	if ev.Amount.Valid && !ev.Amount.Decimal.Equal(deposit.Amount) {
		return nil, fmt.Errorf("%w: amount %s, deposit is %s", ErrMismatch, ev.Amount.Decimal, deposit.Amount)
	}
	if deposit.GatewayOrderID != "" {
		return e.depositReplay(ctx, ev, deposit, body, "Payment order already created")
	}
	if !e.gw.Configured() {
		return nil, gateway.ErrNotConfigured
	}

	gatewayAmount := deposit.Amount.Div(e.opts.ExchangeRate).Round(2)
	if !gatewayAmount.IsPositive() {
		return nil, fmt.Errorf("%w: deposit amount %s is below the smallest chargeable amount", ErrMalformed, deposit.Amount)
	}
	description := ev.Description
	if description == "" {
		description = deposit.Description
	}
	if description == "" {
		description = "Wallet top-up"
	}

	order, err := e.gw.CreateOrder(ctx, gateway.CreateOrderRequest{
		ReferenceID: deposit.ID,
		Amount:      gatewayAmount,
		Currency:    e.opts.Currency,
		Description: description,
		ReturnURL:   e.opts.ReturnURL,
		CancelURL:   e.opts.CancelURL,
	})
	if err != nil {
		utils.LogError("Failed to create gateway order for deposit %s: %v", deposit.ID, err)
		return nil, err
	}

	updated, created, err := e.store.AttachDepositOrder(ctx, deposit.ID, order.ID, order.ApprovalURL(), store.Change{
		Fields: map[string]interface{}{
			"gateway_amount":   gatewayAmount.StringFixed(2),
			"gateway_currency": e.opts.Currency,
		},
		Event: map[string]interface{}{
			"action":           string(IntentCreateDeposit),
			"gateway_order_id": order.ID,
			"status":           order.Status,
			"at":               time.Now().UTC().Format(time.RFC3339),
		},
	})
	if errors.Is(err, store.ErrAlreadyApplied) {
		return e.depositReplay(ctx, ev, deposit, body, "Deposit already completed")
	}
	if err != nil {
		return nil, err
	}
	if !created {
		utils.LogWarn("Deposit %s already has gateway order %s, dropping %s", deposit.ID, updated.GatewayOrderID, order.ID)
		return e.depositReplay(ctx, ev, updated, body, "Payment order already created")
	}

	utils.LogInfo("Gateway order %s created for deposit %s (%s %s)", order.ID, deposit.ID, gatewayAmount, e.opts.Currency)
	out := &Outcome{Intent: ev.Intent(), Status: StatusApplied, Message: "Payment order created", Data: depositData(updated, nil)}
	e.audit(ctx, ev, body, out.Status, nil)
	return out, nil
}

func (e *Engine) captureDeposit(ctx context.Context, ev CaptureDeposit, deposit *models.Deposit, body []byte) (*Outcome, error) {
	_, err := Decide(DepositRecord, deposit.Status, ev)
	if errors.Is(err, ErrAlreadyProcessed) {
		return e.depositReplay(ctx, ev, deposit, body, "Deposit already completed")
	}
	if err != nil {
		return nil, err
	}

	orderID := ev.GatewayOrderID
	switch {
	case orderID == "":
		orderID = deposit.GatewayOrderID
	case deposit.GatewayOrderID != "" && orderID != deposit.GatewayOrderID:
		return nil, fmt.Errorf("%w: gateway order %s, deposit has %s", ErrMismatch, orderID, deposit.GatewayOrderID)
	}
	if orderID == "" {
		return nil, fmt.Errorf("%w: deposit %s has no gateway order", ErrMalformed, deposit.ID)
	}
	if !e.gw.Configured() {
		return nil, gateway.ErrNotConfigured
	}

	capture, err := e.gw.CaptureOrder(ctx, orderID)
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) && gwErr.AlreadyCaptured() {
		utils.LogInfo("Gateway order %s was captured before, looking it up", orderID)
		capture, err = e.gw.GetOrder(ctx, orderID)
	}
	if err != nil {
		utils.LogError("Capture of gateway order %s for deposit %s failed: %v", orderID, deposit.ID, err)
		return nil, err
	}
	if capture.ReferenceID != "" && capture.ReferenceID != deposit.ID {
		return nil, fmt.Errorf("%w: gateway order %s belongs to %s", ErrMismatch, orderID, capture.ReferenceID)
	}

	ev.GatewayOrderID = orderID
	ev.GatewayStatus = capture.Status
	if _, err := Decide(DepositRecord, deposit.Status, ev); err != nil {
		utils.LogWarn("Deposit %s not credited: %v", deposit.ID, err)
		if errors.Is(err, ErrCaptureIncomplete) {
			e.audit(ctx, ev, capture.Raw, StatusCaptureFailed, err)
		}
		return nil, err
	}

	credit, err := e.store.ApplyCredit(ctx, deposit.ID, deposit.Amount, store.Change{
		CaptureID: capture.CaptureID,
		Fields: map[string]interface{}{
			"gateway_order_id": orderID,
			"payer_email":      capture.PayerEmail,
		},
		Event: rawEvent(capture.Raw),
	})
	if errors.Is(err, store.ErrAlreadyApplied) {
		utils.LogInfo("Deposit %s was credited by a concurrent request", deposit.ID)
		return e.depositReplay(ctx, ev, deposit, capture.Raw, "Deposit already completed")
	}
	if err != nil {
		utils.LogError("Failed to credit deposit %s: %v", deposit.ID, err)
		return nil, err
	}

	balance := credit.Balance
	e.notifier.Notify(ctx, notify.Notice{
		UserID:    credit.UserID,
		Kind:      notify.KindDepositCredited,
		Title:     "Wallet credited",
		Body:      fmt.Sprintf("Your deposit %s of %s was added to your wallet.", deposit.ID, credit.Amount.StringFixed(2)),
		Reference: deposit.ID,
		Amount:    credit.Amount,
		Balance:   &balance,
		Receipt:   true,
	})

	deposit.Status = models.DepositStatusCompleted
	deposit.GatewayOrderID = orderID
	out := &Outcome{Intent: ev.Intent(), Status: StatusApplied, Message: "Deposit completed", Data: depositData(deposit, credit)}
	e.audit(ctx, ev, capture.Raw, out.Status, nil)
	return out, nil
}

// depositReplay answers a repeated direct action. The request still lands
// in the deposit's payload.
func (e *Engine) depositReplay(ctx context.Context, ev Event, deposit *models.Deposit, body []byte, message string) (*Outcome, error) {
	if event := rawEvent(body); event != nil {
		if err := e.store.AnnotateDeposit(ctx, deposit.ID, store.Change{Event: event}); err != nil {
			utils.LogError("Failed to record %s on deposit %s: %v", ev.Intent(), deposit.ID, err)
			return nil, err
		}
	}
	out := &Outcome{Intent: ev.Intent(), Status: StatusAlreadyProcessed, Message: message, Data: depositData(deposit, nil)}
	e.audit(ctx, ev, body, out.Status, nil)
	return out, nil
}

// audit records the event; a failure here never changes the outcome
func (e *Engine) audit(ctx context.Context, ev Event, payload []byte, status Status, cause error) {
	record := &models.GatewayEvent{
		Provider:  e.opts.Provider,
		EventType: string(ev.Intent()),
		Intent:    string(ev.Intent()),
		Reference: ev.Reference(),
		Outcome:   string(status),
	}
	switch v := ev.(type) {
	case CheckoutCompleted:
		record.EventID, record.EventType = v.EventID, v.EventType
	case CheckoutDenied:
		record.EventID, record.EventType = v.EventID, v.EventType
	case CaptureRefunded:
		record.EventID, record.EventType = v.EventID, EventPaymentCaptureRefunded
	case LegacySaleCompleted:
		record.EventID, record.EventType = v.EventID, EventPaymentSaleCompleted
	case Unhandled:
		record.EventID, record.EventType = v.EventID, v.EventType
	}
	if cause != nil {
		record.Error = cause.Error()
	}
	if json.Valid(payload) {
		record.Payload = datatypes.JSON(payload)
	} else {
		record.Payload = datatypes.JSON("{}")
	}

	if err := e.store.RecordEvent(ctx, record); err != nil {
		utils.LogError("Failed to record %s event for %s: %v", ev.Intent(), ev.Reference(), err)
	}
}

func webhookChange(ev Event, body []byte) store.Change {
	ch := store.Change{Event: rawEvent(body)}
	switch v := ev.(type) {
	case CheckoutCompleted:
		ch.CaptureID = v.CaptureID
		if v.PayerEmail != "" {
			ch.Fields = map[string]interface{}{"payer_email": v.PayerEmail}
		}
	case CheckoutDenied:
		ch.Reason = v.Reason
	case CaptureRefunded:
		ch.Fields = map[string]interface{}{
			"refund_id":     v.RefundID,
			"refund_amount": v.RefundAmount.String(),
		}
	case LegacySaleCompleted:
		ch.Fields = map[string]interface{}{"sale_id": v.SaleID}
	}
	return ch
}

func rawEvent(b []byte) interface{} {
	if len(b) == 0 || !json.Valid(b) {
		return nil
	}
	return json.RawMessage(b)
}

func paymentNotice(ev Event, s *store.Settlement) notify.Notice {
	n := notify.Notice{
		Reference: s.Payment.GatewayOrderID,
		Amount:    s.Payment.Amount,
		Currency:  s.Payment.Currency,
	}
	if s.Order != nil {
		n.UserID = s.Order.UserID
		if s.Order.InvoiceNumber != "" {
			n.Reference = s.Order.InvoiceNumber
		}
	}

	switch v := ev.(type) {
	case CheckoutCompleted:
		n.Kind, n.Title, n.Receipt = notify.KindPaymentCompleted, "Payment received", true
		n.Body = fmt.Sprintf("We received your payment for order %s.", n.Reference)
		if n.UserID == 0 {
			n.Email = v.PayerEmail
		}
	case LegacySaleCompleted:
		n.Kind, n.Title, n.Receipt = notify.KindPaymentCompleted, "Payment received", true
		n.Body = fmt.Sprintf("We received your payment for order %s.", n.Reference)
	case CheckoutDenied:
		n.Kind, n.Title = notify.KindPaymentFailed, "Payment failed"
		n.Body = fmt.Sprintf("Your payment for order %s did not go through (%s).", n.Reference, v.Reason)
	case CaptureRefunded:
		n.Kind, n.Title = notify.KindPaymentRefunded, "Payment refunded"
		n.Body = fmt.Sprintf("Your payment for order %s was refunded.", n.Reference)
		if v.RefundAmount.IsPositive() {
			n.Amount = v.RefundAmount
		}
	}
	return n
}

func paymentData(s *store.Settlement) map[string]interface{} {
	data := map[string]interface{}{
		"payment_id":       s.Payment.ID,
		"gateway_order_id": s.Payment.GatewayOrderID,
		"status":           s.Payment.Status,
		"amount":           s.Payment.Amount.StringFixed(2),
	}
	if s.Order != nil {
		data["order_id"] = s.Order.ID
		data["order_status"] = s.Order.Status
	}
	return data
}

func depositData(d *models.Deposit, credit *store.Credit) map[string]interface{} {
	data := map[string]interface{}{
		"deposit_id":    d.ID,
		"status":        d.Status,
		"amount":        d.Amount.StringFixed(2),
		"paypalOrderId": d.GatewayOrderID,
	}
	if d.PaymentURL != "" {
		data["payment_url"] = d.PaymentURL
	}
	if credit != nil {
		data["balance"] = credit.Balance.StringFixed(2)
		data["transaction_id"] = credit.TransactionID
	}
	return data
}
