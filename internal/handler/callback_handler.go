package handler

import (
	"errors"
	"log"
	"net/http"

	"patentpay/internal/bank"
	"patentpay/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const signatureHeader = "X-Signature"

// BankCallbackRequest is the JSON body the bank posts after a payment
// changes state on its side.
type BankCallbackRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
	Status    string `json:"status" binding:"required,oneof=PAID FAILED"`
	Amount    string `json:"amount" binding:"required"`
}

// CallbackHandler is the unauthenticated-user-facing boundary for bank
// notifications: signature check, schema validation, then reconciliation.
// Responses deliberately say nothing about the ledger beyond a generic
// detail string.
type CallbackHandler struct {
	verifier  bank.Verifier
	reconcile service.ReconcileService
}

func NewCallbackHandler(verifier bank.Verifier, reconcile service.ReconcileService) *CallbackHandler {
	return &CallbackHandler{verifier: verifier, reconcile: reconcile}
}

func (h *CallbackHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/api/bank/callback", h.HandleCallback)
}

// HandleCallback processes a bank payment notification
// @Summary      Bank payment callback
// @Description  Applies a signed payment status notification from the bank
// @Tags         bank
// @Accept       json
// @Produce      json
// @Param        X-Signature  header    string               true  "hex HMAC-SHA256 of the raw body"
// @Param        payload      body      BankCallbackRequest  true  "Notification Payload"
// @Success      200          {object}  object
// @Failure      400          {object}  object
// @Failure      403          {object}  object
// @Router       /api/bank/callback [post]
func (h *CallbackHandler) HandleCallback(c *gin.Context) {
	// The signature covers the exact raw bytes, so read them before any parsing
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "unreadable body"})
		return
	}

	if !h.verifier.Verify(body, c.GetHeader(signatureHeader)) {
		log.Println("Bank callback: invalid signature")
		c.JSON(http.StatusForbidden, gin.H{"detail": "invalid signature"})
		return
	}

	req, fields := parseCallback(body)
	if len(fields) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid payload", "fields": fields})
		return
	}

	outcome, err := h.reconcile.Apply(c.Request.Context(), service.Notification{
		BankPaymentID: req.PaymentID,
		Status:        req.Status,
		Amount:        req.amount,
	})
	if err != nil {
		log.Printf("Bank callback: reconciliation failed for %s: %v", req.PaymentID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "processing error"})
		return
	}

	// Every business outcome — including unknown payment and amount mismatch —
	// is acknowledged with 200 so the bank stops redelivering.
	switch outcome {
	case service.OutcomeUnknownPayment:
		c.JSON(http.StatusOK, gin.H{"detail": "payment not found"})
	case service.OutcomeAmountMismatch:
		c.JSON(http.StatusOK, gin.H{"detail": "amount mismatch"})
	default:
		c.JSON(http.StatusOK, gin.H{"detail": "ok"})
	}
}

type parsedCallback struct {
	BankCallbackRequest
	amount decimal.Decimal
}

// Validator field names back to their wire names for error reporting.
var callbackFieldNames = map[string]string{
	"PaymentID": "payment_id",
	"Status":    "status",
	"Amount":    "amount",
}

// parseCallback validates the notification schema without touching the
// ledger, reporting offending fields by their JSON names.
func parseCallback(body []byte) (parsedCallback, []string) {
	var req parsedCallback
	if err := binding.JSON.BindBody(body, &req.BankCallbackRequest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, callbackFieldNames[fe.Field()])
			}
			return req, fields
		}
		return req, []string{"body"}
	}

	// The binding tags cannot express "decimal with at most two fractional
	// digits", so the amount format stays a manual check.
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() || amount.Exponent() < -2 {
		return req, []string{"amount"}
	}
	req.amount = amount

	return req, nil
}
