package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	apperrors "teetime/internal/errors"
	"teetime/internal/logger"
	"teetime/internal/models"
	"teetime/internal/payment"
	"teetime/internal/service"
	"teetime/internal/validation"

	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader несет ключ идемпотентности клиента для POST /api/bookings
const IdempotencyKeyHeader = "Idempotency-Key"

type Handlers struct {
	services *service.Services
	webhooks *payment.Registry
}

func NewHandlers(services *service.Services, webhooks *payment.Registry) *Handlers {
	return &Handlers{
		services: services,
		webhooks: webhooks,
	}
}

// respondError пишет тело {code, error, retryable} по таксономии ошибок
func respondError(c *gin.Context, err error) {
	d := apperrors.Describe(err)
	log := logger.WithContext(c.Request.Context())
	if d.Status >= http.StatusInternalServerError {
		log.Error("Request failed", "error", err, "path", c.FullPath(), "code", d.Code)
	} else {
		log.Debug("Request rejected", "error", err, "path", c.FullPath(), "code", d.Code)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(d.Status, models.ErrorResponse{
		Code:      d.Code,
		Error:     d.Message,
		Retryable: d.Retryable,
	})
}

// bindJSON разбирает тело запроса; при ошибке отвечает 400 validation_error
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondError(c, bindingError(err))
		return false
	}
	return true
}

func bindingError(err error) error {
	fields := validation.FieldErrors(err)
	if len(fields) == 0 {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s failed %s", strings.ToLower(name), fields[name])
	}
	return apperrors.Validation(strings.ToLower(names[0]), strings.Join(parts, ", "))
}

func bookingResponse(b *models.Booking) models.BookingResponse {
	return models.BookingResponse{
		ID:         b.ID,
		CourseID:   b.Slot.CourseID,
		Date:       b.Slot.Date,
		Time:       b.Slot.StartTime,
		Players:    b.Players,
		TotalPrice: b.TotalPrice,
		Currency:   b.Currency,
		Status:     b.Status,
		PaymentRef: b.PaymentRef,
		CreatedAt:  b.CreatedAt,
	}
}

func isUnknownProvider(err error) bool {
	return errors.Is(err, payment.ErrUnknownProvider)
}
