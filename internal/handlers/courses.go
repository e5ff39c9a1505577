package handlers

import (
	"net/http"
	"strconv"

	apperrors "teetime/internal/errors"
	"teetime/internal/models"

	"github.com/gin-gonic/gin"
)

// Courses handlers

// ListCourses - GET /api/courses
// Поиск полей по названию и локации
func (h *Handlers) ListCourses(c *gin.Context) {
	query := c.Query("query")

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		respondError(c, apperrors.Validation("page", "must be >= 1"))
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		respondError(c, apperrors.Validation("pageSize", "must be between 1 and 100"))
		return
	}

	courses, err := h.services.Courses.Search(c.Request.Context(), query, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ListCoursesResponse(courses))
}

// ListSlots - GET /api/courses/:slug/slots?date=YYYY-MM-DD
// Доступность ти-таймов на дату
func (h *Handlers) ListSlots(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		respondError(c, apperrors.Validation("date", "is required"))
		return
	}

	response, err := h.services.Courses.Slots(c.Request.Context(), c.Param("slug"), date)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// CreateQuote - POST /api/quotes
// Рассчитать цену без удержания слота
func (h *Handlers) CreateQuote(c *gin.Context) {
	var req models.QuoteRequest
	if !bindJSON(c, &req) {
		return
	}

	response, err := h.services.Quotes.Quote(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}
