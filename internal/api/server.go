package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"teetime/internal/app"
	"teetime/internal/config"
	"teetime/internal/handlers"
	"teetime/internal/metrics"
	"teetime/internal/middleware"
	"teetime/internal/validation"

	"github.com/gin-gonic/gin"
)

// Server представляет HTTP сервер API
type Server struct {
	router *gin.Engine
	config *config.Config
	app    *app.App
}

// NewServer создает новый экземпляр сервера
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	// Устанавливаем режим Gin
	gin.SetMode(cfg.GinMode)

	if err := validation.RegisterBindings(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return newServer(cfg, a), nil
}

func newServer(cfg *config.Config, a *app.App) *Server {
	router := gin.New()

	// Применяем middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	server := &Server{
		router: router,
		config: cfg,
		app:    a,
	}

	// Настраиваем роуты
	server.setupRoutes()

	return server
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.app.Services, s.app.Webhooks)
	h.RegisterRoutes(s.router, middleware.OperatorAuth(s.config.Operator.User, s.config.Operator.Password))

	if s.config.Operator.Password == "" {
		slog.Warn("OPERATOR_PASSWORD not set, admin routes are closed")
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", metrics.Handler())
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	db := s.app.DB.HealthCheck(c.Request.Context())

	status := http.StatusOK
	if db.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   db.Status,
		"service":  "teetime-api",
		"version":  "1.0.0",
		"database": db,
		"payment":  s.app.Gateway.Name(),
	})
}

// Run запускает HTTP сервер
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.app.Close(ctx)
}
