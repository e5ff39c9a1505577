package handlers

import (
	"net/http"
	"strconv"

	apperrors "teetime/internal/errors"
	"teetime/internal/models"
	"teetime/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Operator handlers, mounted behind OperatorAuth

// ListReconciliations - GET /api/admin/reconciliations?status=open&limit=50
func (h *Handlers) ListReconciliations(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		respondError(c, apperrors.Validation("limit", "must be between 1 and 500"))
		return
	}
	status := models.ReconciliationStatus(c.DefaultQuery("status", string(models.ReconciliationOpen)))

	cases, err := h.services.Reconciliations.List(c.Request.Context(), status, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cases)
}

// ResolveReconciliation - PATCH /api/admin/reconciliations/:id/resolve
func (h *Handlers) ResolveReconciliation(c *gin.Context) {
	var req models.ResolveReconciliationRequest
	if !bindJSON(c, &req) {
		return
	}

	rc, err := h.services.Reconciliations.Resolve(c.Request.Context(), c.Param("id"), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rc)
}

// RefundBooking - POST /api/admin/bookings/:id/refund
// Возврат только с явным подтверждением оператора: {"confirm": true}
func (h *Handlers) RefundBooking(c *gin.Context) {
	var req models.RefundBookingRequest
	if !bindJSON(c, &req) {
		return
	}

	in := service.RefundInput{Confirm: req.Confirm, Reason: req.Reason}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			respondError(c, apperrors.Validation("amount", "must be a decimal number"))
			return
		}
		in.Amount = &amount
	}

	booking, err := h.services.Bookings.Refund(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookingResponse(booking))
}
