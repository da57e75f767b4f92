package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Event
	}{
		{
			name: "create deposit",
			body: `{"action":"create_deposit","depositId":"D1","amount":"100000","description":"Top-up"}`,
			want: CreateDeposit{
				DepositID:   "D1",
				Amount:      decimal.NullDecimal{Decimal: decimal.NewFromInt(100000), Valid: true},
				Description: "Top-up",
			},
		},
		{
			name: "capture deposit",
			body: `{"action":"capture_deposit","depositId":"D1","paypalOrderId":"5O190127TN364715T"}`,
			want: CaptureDeposit{DepositID: "D1", GatewayOrderID: "5O190127TN364715T"},
		},
		{
			name: "action wins over event type",
			body: `{"action":"capture_deposit","depositId":"D1","event_type":"PAYMENT.CAPTURE.COMPLETED"}`,
			want: CaptureDeposit{DepositID: "D1"},
		},
		{
			name: "capture completed",
			body: `{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP-1",
				"amount":{"currency_code":"USD","value":"10.50"},
				"supplementary_data":{"related_ids":{"order_id":"ORDER-1"}}}}`,
			want: CheckoutCompleted{
				EventID:        "WH-1",
				EventType:      EventPaymentCaptureCompleted,
				GatewayOrderID: "ORDER-1",
				CaptureID:      "CAP-1",
				Amount:         decimal.RequireFromString("10.50"),
				Currency:       "USD",
			},
		},
		{
			name: "order approved",
			body: `{"id":"WH-2","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"ORDER-2",
				"payer":{"email_address":"buyer@example.com"},
				"purchase_units":[{"reference_id":"default","amount":{"currency_code":"EUR","value":"3.00"}}]}}`,
			want: CheckoutCompleted{
				EventID:        "WH-2",
				EventType:      EventCheckoutOrderApproved,
				GatewayOrderID: "ORDER-2",
				Amount:         decimal.RequireFromString("3.00"),
				Currency:       "EUR",
				PayerEmail:     "buyer@example.com",
			},
		},
		{
			name: "capture denied",
			body: `{"id":"WH-3","event_type":"PAYMENT.CAPTURE.DENIED","resource":{"id":"CAP-3",
				"status_details":{"reason":"RISK"},"supplementary_data":{"related_ids":{"order_id":"ORDER-3"}}}}`,
			want: CheckoutDenied{EventID: "WH-3", EventType: EventPaymentCaptureDenied, GatewayOrderID: "ORDER-3", Reason: "RISK"},
		},
		{
			name: "approval reversed",
			body: `{"id":"WH-4","event_type":"CHECKOUT.PAYMENT-APPROVAL.REVERSED","resource":{"order_id":"ORDER-4"}}`,
			want: CheckoutDenied{EventID: "WH-4", EventType: EventPaymentApprovalReversed, GatewayOrderID: "ORDER-4", Reason: EventPaymentApprovalReversed},
		},
		{
			name: "refund",
			body: `{"id":"WH-5","event_type":"PAYMENT.CAPTURE.REFUNDED","resource":{"id":"REF-5",
				"amount":{"currency_code":"USD","value":"1.00"},
				"links":[{"href":"https://api.paypal.com/v2/payments/refunds/REF-5","rel":"self"},
				{"href":"https://api.paypal.com/v2/payments/captures/CAP-5","rel":"up"}]}}`,
			want: CaptureRefunded{
				EventID:        "WH-5",
				RefundID:       "REF-5",
				CaptureID:      "CAP-5",
				RefundAmount:   decimal.RequireFromString("1.00"),
				RefundCurrency: "USD",
			},
		},
		{
			name: "legacy sale",
			body: `{"id":"WH-6","event_type":"PAYMENT.SALE.COMPLETED","resource":{"id":"SALE-6","invoice_number":"INV-6",
				"amount":{"total":"7.25","currency":"USD"}}}`,
			want: LegacySaleCompleted{
				EventID:       "WH-6",
				SaleID:        "SALE-6",
				Amount:        decimal.RequireFromString("7.25"),
				Currency:      "USD",
				InvoiceNumber: "INV-6",
			},
		},
		{
			name: "unknown event type",
			body: `{"id":"WH-7","event_type":"BILLING.SUBSCRIPTION.CREATED","resource":{}}`,
			want: Unhandled{EventID: "WH-7", EventType: "BILLING.SUBSCRIPTION.CREATED"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want.Intent(), got.Intent())
			assertEventEqual(t, tt.want, got)
		})
	}
}

// assertEventEqual compares decimals by value; their internal
// representation differs with scale
func assertEventEqual(t *testing.T, want, got Event) {
	t.Helper()
	switch w := want.(type) {
	case CheckoutCompleted:
		g := got.(CheckoutCompleted)
		assert.True(t, w.Amount.Equal(g.Amount), "amount %s != %s", w.Amount, g.Amount)
		w.Amount, g.Amount = decimal.Zero, decimal.Zero
		assert.Equal(t, w, g)
	case CaptureRefunded:
		g := got.(CaptureRefunded)
		assert.True(t, w.RefundAmount.Equal(g.RefundAmount))
		w.RefundAmount, g.RefundAmount = decimal.Zero, decimal.Zero
		assert.Equal(t, w, g)
	case LegacySaleCompleted:
		g := got.(LegacySaleCompleted)
		assert.True(t, w.Amount.Equal(g.Amount))
		w.Amount, g.Amount = decimal.Zero, decimal.Zero
		assert.Equal(t, w, g)
	case CreateDeposit:
		g := got.(CreateDeposit)
		assert.Equal(t, w.Amount.Valid, g.Amount.Valid)
		assert.True(t, w.Amount.Decimal.Equal(g.Amount.Decimal))
		assert.Equal(t, w.DepositID, g.DepositID)
		assert.Equal(t, w.Description, g.Description)
	default:
		assert.Equal(t, want, got)
	}
}

func TestClassifyMalformed(t *testing.T) {
	bodies := map[string]string{
		"not json":             `{"event_type":`,
		"empty object":         `{}`,
		"unknown action":       `{"action":"refund_deposit","depositId":"D1"}`,
		"missing deposit id":   `{"action":"create_deposit","amount":10}`,
		"non-positive amount":  `{"action":"create_deposit","depositId":"D1","amount":0}`,
		"capture without ids":  `{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP-1"}}`,
		"refund without ids":   `{"event_type":"PAYMENT.CAPTURE.REFUNDED","resource":{}}`,
		"sale without invoice": `{"event_type":"PAYMENT.SALE.COMPLETED","resource":{"id":"SALE-1"}}`,
		"resource not object":  `{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":"oops"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := Classify([]byte(body))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestIsDirect(t *testing.T) {
	assert.True(t, IsDirect(CreateDeposit{}))
	assert.True(t, IsDirect(CaptureDeposit{}))
	assert.False(t, IsDirect(CheckoutCompleted{}))
	assert.False(t, IsDirect(Unhandled{}))
}
