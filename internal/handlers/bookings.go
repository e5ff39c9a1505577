package handlers

import (
	"net/http"

	"teetime/internal/models"
	"teetime/internal/service"

	"github.com/gin-gonic/gin"
)

// Bookings handlers

// CreateBooking - POST /api/bookings
// Забронировать ти-тайм: расчет цены, удержание слота, скидка, списание, фиксация
func (h *Handlers) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if !bindJSON(c, &req) {
		return
	}

	response, err := h.services.Coordinator.CreateBooking(c.Request.Context(), service.CreateBookingInput{
		CreateBookingRequest: req,
		IdempotencyKey:       c.GetHeader(IdempotencyKeyHeader),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetBooking - GET /api/bookings/:id
// Получить бронирование
func (h *Handlers) GetBooking(c *gin.Context) {
	booking, err := h.services.Bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookingResponse(booking))
}

// CancelBooking - PATCH /api/bookings/:id/cancel
// Отменить бронирование. Повторная отмена возвращает 200
func (h *Handlers) CancelBooking(c *gin.Context) {
	booking, err := h.services.Bookings.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookingResponse(booking))
}
