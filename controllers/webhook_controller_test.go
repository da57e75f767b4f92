package controllers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Govind-619/SettleSphere/gateway"
	"github.com/Govind-619/SettleSphere/middleware"
	"github.com/Govind-619/SettleSphere/notify"
	"github.com/Govind-619/SettleSphere/reconcile"
	"github.com/Govind-619/SettleSphere/store"
	"github.com/Govind-619/SettleSphere/testutil"
	"github.com/Govind-619/SettleSphere/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct {
	out *reconcile.Outcome
	err error
	in  reconcile.Input
}

func (s *stubProcessor) Process(ctx context.Context, in reconcile.Input) (*reconcile.Outcome, error) {
	s.in = in
	return s.out, s.err
}

func newRouter(p Processor, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(utils.RequestIDMiddleware(), utils.RecoveryMiddleware(), utils.CORSMiddleware())
	wc := NewWebhookController(p)
	g := r.Group("/v1/payments", middleware.CallerAuth(secret))
	g.POST("/webhook", wc.Handle)
	g.OPTIONS("/webhook", func(c *gin.Context) {})
	return r
}

func TestHandleStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"malformed", fmt.Errorf("%w: bad json", reconcile.ErrMalformed), http.StatusBadRequest},
		{"not configured", gateway.ErrNotConfigured, http.StatusBadRequest},
		{"bad signature", reconcile.ErrInvalidSignature, http.StatusBadRequest},
		{"capture incomplete", fmt.Errorf("%w: APPROVED", reconcile.ErrCaptureIncomplete), http.StatusBadRequest},
		{"mismatch", reconcile.ErrMismatch, http.StatusBadRequest},
		{"unauthorized", reconcile.ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", reconcile.ErrForbidden, http.StatusForbidden},
		{"deposit not found", fmt.Errorf("%w: deposit D9", reconcile.ErrNotFound), http.StatusNotFound},
		{"gateway failure", &gateway.Error{Op: "capture order", StatusCode: 503}, http.StatusInternalServerError},
		{"store failure", fmt.Errorf("%w: apply credit: disk full", store.ErrStore), http.StatusInternalServerError},
		{"unexpected", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(&stubProcessor{err: tt.err}, "")

			resp := testutil.MakeTestRequest(t, router, testutil.TestRequest{
				Method: http.MethodPost,
				Path:   "/v1/payments/webhook",
				Body:   `{}`,
			})

			testutil.AssertResponse(t, resp, tt.code, false)
			assert.NotEmpty(t, resp.Body["error"])
		})
	}
}

func TestHandleSuccess(t *testing.T) {
	p := &stubProcessor{out: &reconcile.Outcome{
		Intent:  reconcile.IntentUnhandled,
		Status:  reconcile.StatusIgnored,
		Message: "Event type not handled",
	}}
	router := newRouter(p, "")

	resp := testutil.MakeTestRequest(t, router, testutil.TestRequest{
		Method: http.MethodPost,
		Path:   "/v1/payments/webhook",
		Body:   `{"event_type":"X"}`,
	})

	testutil.AssertResponse(t, resp, http.StatusOK, true)
	assert.Equal(t, "ignored", resp.Body["status"])
	assert.Equal(t, `{"event_type":"X"}`, string(p.in.Body))
	assert.Nil(t, p.in.Caller)
}

func TestHandleCallerToken(t *testing.T) {
	p := &stubProcessor{out: &reconcile.Outcome{Status: reconcile.StatusApplied}}
	router := newRouter(p, "s3cret")
	token, err := utils.GenerateToken(7, "s3cret", time.Hour)
	require.NoError(t, err)

	resp := testutil.MakeTestRequest(t, router, testutil.TestRequest{
		Method:  http.MethodPost,
		Path:    "/v1/payments/webhook",
		Body:    `{"action":"create_deposit","depositId":"D1"}`,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	})
	testutil.AssertResponse(t, resp, http.StatusOK, true)
	require.NotNil(t, p.in.Caller)
	assert.Equal(t, uint(7), p.in.Caller.UserID)

	forged, err := utils.GenerateToken(7, "other", time.Hour)
	require.NoError(t, err)
	resp = testutil.MakeTestRequest(t, router, testutil.TestRequest{
		Method:  http.MethodPost,
		Path:    "/v1/payments/webhook",
		Body:    `{"action":"create_deposit","depositId":"D1"}`,
		Headers: map[string]string{"Authorization": "Bearer " + forged},
	})
	testutil.AssertResponse(t, resp, http.StatusUnauthorized, false)
}

func TestHandlePreflight(t *testing.T) {
	router := newRouter(&stubProcessor{}, "")

	resp := testutil.MakeTestRequest(t, router, testutil.TestRequest{
		Method: http.MethodOptions,
		Path:   "/v1/payments/webhook",
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleRecoversFromPanic(t *testing.T) {
	router := newRouter(panicProcessor{}, "")

	resp := testutil.MakeTestRequest(t, router, testutil.TestRequest{
		Method: http.MethodPost,
		Path:   "/v1/payments/webhook",
		Body:   `{}`,
	})

	testutil.AssertResponse(t, resp, http.StatusInternalServerError, false)
}

type panicProcessor struct{}

func (panicProcessor) Process(ctx context.Context, in reconcile.Input) (*reconcile.Outcome, error) {
	panic("unexpected nil")
}

// End to end through the real engine and a SQLite store: the D1 top-up is
// credited once and the replay still answers success.
func TestDepositCaptureEndToEnd(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "buyer@example.com")
	testutil.CreateDeposit(t, db, "D1", user.ID, "100000", "ORDER-D1")

	gw := &completedGateway{}
	engine := reconcile.NewEngine(gw, store.New(db), nopNotifier{}, reconcile.Options{Currency: "USD"})
	router := newRouter(engine, "")
	req := testutil.TestRequest{
		Method: http.MethodPost,
		Path:   "/v1/payments/webhook",
		Body:   map[string]string{"action": "capture_deposit", "depositId": "D1"},
	}

	resp := testutil.MakeTestRequest(t, router, req)
	testutil.AssertResponse(t, resp, http.StatusOK, true)
	assert.Equal(t, "applied", resp.Body["status"])

	resp = testutil.MakeTestRequest(t, router, req)
	testutil.AssertResponse(t, resp, http.StatusOK, true)
	assert.Equal(t, "already_processed", resp.Body["status"])

	assert.Equal(t, "100000", testutil.WalletBalance(t, db, user.ID).String())

	resp = testutil.MakeTestRequest(t, router, testutil.TestRequest{
		Method: http.MethodPost,
		Path:   "/v1/payments/webhook",
		Body:   map[string]string{"action": "capture_deposit", "depositId": "D404"},
	})
	testutil.AssertResponse(t, resp, http.StatusNotFound, false)

	resp = testutil.MakeTestRequest(t, router, testutil.TestRequest{
		Method: http.MethodPost,
		Path:   "/v1/payments/webhook",
		Body:   `{"id":"WH-1","event_type":"PAYMENT.CAPTURE.REFUNDED","resource":{"id":"R","links":[{"rel":"up","href":"https://x/v2/payments/captures/NOPE"}]}}`,
	})
	testutil.AssertResponse(t, resp, http.StatusOK, true)
	assert.Equal(t, "not_found", resp.Body["status"])
}

type completedGateway struct{}

func (completedGateway) Configured() bool       { return true }
func (completedGateway) VerifiesWebhooks() bool { return false }
func (completedGateway) CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error) {
	return &gateway.Order{ID: "ORDER-" + req.ReferenceID, Status: gateway.StatusCreated}, nil
}
func (completedGateway) CaptureOrder(ctx context.Context, orderID string) (*gateway.Capture, error) {
	return &gateway.Capture{OrderID: orderID, Status: gateway.StatusCompleted, CaptureID: "CAP-" + orderID}, nil
}
func (g completedGateway) GetOrder(ctx context.Context, orderID string) (*gateway.Capture, error) {
	return g.CaptureOrder(ctx, orderID)
}
func (completedGateway) VerifyWebhookSignature(ctx context.Context, h http.Header, body []byte) (bool, error) {
	return true, nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(ctx context.Context, n notify.Notice) {}
