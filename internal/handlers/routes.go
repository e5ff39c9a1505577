package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes монтирует публичные и операторские роуты под /api
func (h *Handlers) RegisterRoutes(r gin.IRouter, operatorAuth gin.HandlerFunc) {
	api := r.Group("/api")
	{
		courses := api.Group("/courses")
		{
			courses.GET("", h.ListCourses)
			courses.GET("/:slug/slots", h.ListSlots)
		}

		api.POST("/quotes", h.CreateQuote)

		bookings := api.Group("/bookings")
		{
			bookings.POST("", h.CreateBooking)
			bookings.GET("/:id", h.GetBooking)
			bookings.PATCH("/:id/cancel", h.CancelBooking)
		}

		payments := api.Group("/payments")
		{
			payments.POST("/webhooks/:provider", h.PaymentWebhook)
		}

		admin := api.Group("/admin")
		admin.Use(operatorAuth)
		{
			admin.GET("/reconciliations", h.ListReconciliations)
			admin.PATCH("/reconciliations/:id/resolve", h.ResolveReconciliation)
			admin.POST("/bookings/:id/refund", h.RefundBooking)
		}
	}
}
