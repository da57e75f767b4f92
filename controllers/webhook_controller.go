package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/Govind-619/SettleSphere/gateway"
	"github.com/Govind-619/SettleSphere/middleware"
	"github.com/Govind-619/SettleSphere/reconcile"
	"github.com/Govind-619/SettleSphere/store"
	"github.com/Govind-619/SettleSphere/utils"
	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// Processor runs one inbound request through reconciliation
type Processor interface {
	Process(ctx context.Context, in reconcile.Input) (*reconcile.Outcome, error)
}

// WebhookController receives gateway webhooks and direct deposit actions
type WebhookController struct {
	processor Processor
}

// NewWebhookController creates a controller backed by p
func NewWebhookController(p Processor) *WebhookController {
	return &WebhookController{processor: p}
}

// Handle reconciles the posted payload and answers with the standard
// response envelope
func (wc *WebhookController) Handle(c *gin.Context) {
	requestID := c.GetString(utils.RequestIDKey)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.LogError("[%s] Failed to read request body: %v", requestID, err)
		utils.BadRequest(c, "Could not read request body")
		return
	}

	in := reconcile.Input{Body: body, Header: c.Request.Header}
	if id, ok := middleware.CallerID(c); ok {
		in.Caller = &reconcile.Caller{UserID: id}
	}

	out, err := wc.processor.Process(c.Request.Context(), in)
	if err != nil {
		appErr := toAppError(err)
		if appErr.Code >= http.StatusInternalServerError {
			utils.LogError("[%s] Reconciliation failed: %v", requestID, err)
		} else {
			utils.LogWarn("[%s] Reconciliation rejected: %v", requestID, err)
		}
		utils.Fail(c, appErr)
		return
	}

	utils.LogInfo("[%s] %s %s: %s", requestID, out.Intent, out.Status, out.Message)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": out.Message,
		"intent":  out.Intent,
		"status":  out.Status,
		"data":    out.Data,
	})
}

// toAppError maps reconciliation errors onto the HTTP contract. Anything
// unrecognised is an internal error.
func toAppError(err error) *utils.AppError {
	if appErr := utils.GetAppError(err); appErr != nil {
		return appErr
	}

	var gwErr *gateway.Error
	switch {
	case errors.Is(err, reconcile.ErrMalformed):
		return utils.BadRequestError("Invalid request payload", err)
	case errors.Is(err, gateway.ErrNotConfigured):
		return utils.BadRequestError("Payment gateway not configured", err)
	case errors.Is(err, reconcile.ErrInvalidSignature):
		return utils.BadRequestError("Invalid webhook signature", err)
	case errors.Is(err, reconcile.ErrCaptureIncomplete):
		return utils.BadRequestError("Payment was not completed", err)
	case errors.Is(err, reconcile.ErrMismatch):
		return utils.BadRequestError("Request does not match the deposit", err)
	case errors.Is(err, reconcile.ErrInvalidTransition):
		return utils.BadRequestError("Action not allowed in the current state", err)
	case errors.Is(err, reconcile.ErrUnauthorized):
		return utils.UnauthorizedError("Please login for access", err)
	case errors.Is(err, reconcile.ErrForbidden):
		return utils.ForbiddenError("Deposit belongs to another user", err)
	case errors.Is(err, reconcile.ErrNotFound):
		return utils.NotFoundError("Deposit not found", err)
	case errors.As(err, &gwErr):
		return utils.InternalError("Payment gateway request failed", err)
	case errors.Is(err, store.ErrStore):
		return utils.InternalError("Failed to save payment state", err)
	default:
		return utils.InternalError("Internal server error", err)
	}
}

// Health reports liveness
func Health(c *gin.Context) {
	utils.Success(c, "ok", nil)
}
