// Package testutil holds the database, fixture and HTTP helpers shared by
// the package tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/Govind-619/SettleSphere/config"
	"github.com/Govind-619/SettleSphere/models"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated SQLite database in a temp dir. Several connections
// stay open so concurrent tests really race; transactions begin IMMEDIATE
// and wait on the busy timeout instead of failing a lock upgrade.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "settlesphere.db") + "?_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "open test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(8)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, config.Migrate(db), "migrate test database")
	return db
}

// CreateUser creates a marketplace user with the given email
func CreateUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{Username: email, Email: email}
	require.NoError(t, db.Create(user).Error, "create test user")
	return user
}

// CreateDeposit creates a pending deposit
func CreateDeposit(t *testing.T, db *gorm.DB, id string, userID uint, amount string, gatewayOrderID string) *models.Deposit {
	t.Helper()
	deposit := &models.Deposit{
		ID:             id,
		UserID:         userID,
		Amount:         decimal.RequireFromString(amount),
		Description:    "Wallet top-up",
		GatewayOrderID: gatewayOrderID,
		Status:         models.DepositStatusPending,
	}
	require.NoError(t, db.Create(deposit).Error, "create test deposit")
	return deposit
}

// CreateCheckout creates an order awaiting payment and its pending payment
func CreateCheckout(t *testing.T, db *gorm.DB, userID uint, invoice, gatewayOrderID, amount string) (*models.Order, *models.Payment) {
	t.Helper()
	order := &models.Order{
		UserID:        userID,
		InvoiceNumber: invoice,
		TotalAmount:   decimal.RequireFromString(amount),
		Currency:      "USD",
		Status:        models.OrderStatusPendingPayment,
	}
	require.NoError(t, db.Create(order).Error, "create test order")

	payment := &models.Payment{
		OrderID:        order.ID,
		Provider:       "paypal",
		GatewayOrderID: gatewayOrderID,
		Amount:         decimal.RequireFromString(amount),
		Currency:       "USD",
		Status:         models.PaymentStatusPending,
	}
	require.NoError(t, db.Create(payment).Error, "create test payment")
	return order, payment
}

// WalletBalance returns the user's wallet balance, zero if there is no wallet
func WalletBalance(t *testing.T, db *gorm.DB, userID uint) decimal.Decimal {
	t.Helper()
	var wallet models.Wallet
	err := db.Where("user_id = ?", userID).First(&wallet).Error
	if err == gorm.ErrRecordNotFound {
		return decimal.Zero
	}
	require.NoError(t, err)
	return wallet.Balance
}

// Count returns the number of rows of model matching the optional condition
func Count(t *testing.T, db *gorm.DB, model interface{}, query ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if len(query) > 0 {
		q = q.Where(query[0], query[1:]...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

// TestRequest represents a test HTTP request
type TestRequest struct {
	Method  string
	Path    string
	Body    interface{}
	Headers map[string]string
}

// TestResponse represents a test HTTP response
type TestResponse struct {
	StatusCode int
	Body       map[string]interface{}
}

// MakeTestRequest makes a test HTTP request. A []byte or string Body is
// sent as is; anything else is JSON encoded.
func MakeTestRequest(t *testing.T, router *gin.Engine, req TestRequest) TestResponse {
	t.Helper()

	var body []byte
	switch b := req.Body.(type) {
	case nil:
	case []byte:
		body = b
	case string:
		body = []byte(b)
	default:
		var err error
		body, err = json.Marshal(req.Body)
		require.NoError(t, err, "marshal request body")
	}

	httpReq, err := http.NewRequest(req.Method, req.Path, bytes.NewBuffer(body))
	require.NoError(t, err, "create request")

	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httpReq)

	var responseBody map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &responseBody), "unmarshal response body: %s", w.Body.String())
	}

	return TestResponse{
		StatusCode: w.Code,
		Body:       responseBody,
	}
}

// AssertResponse asserts the status code and the success flag
func AssertResponse(t *testing.T, response TestResponse, expectedStatusCode int, expectedSuccess bool) {
	t.Helper()
	assert.Equal(t, expectedStatusCode, response.StatusCode, "body: %v", response.Body)
	assert.Equal(t, expectedSuccess, response.Body["success"], "body: %v", response.Body)
}
