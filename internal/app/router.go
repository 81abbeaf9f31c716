package app

import (
	"net/http"

	_ "github.com/avc/toyshop/docs"
	"github.com/avc/toyshop/internal/handlers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// setupRouter создает и настраивает роутер
func setupRouter(deps *dependencies, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Глобальные middleware
	setupMiddleware(r, logger)

	// Маршруты
	setupRoutes(r, deps, logger)

	return r
}

// setupMiddleware настраивает middleware для роутера
func setupMiddleware(r *chi.Mux, logger *zap.Logger) {
	r.Use(handlers.RequestIDMiddleware())
	r.Use(handlers.LoggingMiddleware(logger))
	r.Use(handlers.RecoveryMiddleware(logger))
	r.Use(middleware.Compress(5))
}

// setupRoutes настраивает маршруты приложения
func setupRoutes(r *chi.Mux, deps *dependencies, logger *zap.Logger) {
	h := deps.handlers

	// Служебные эндпоинты
	r.Get("/health", h.health.Health)
	r.Get("/ready", h.health.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.registry, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(logger),
	}))
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Публичные эндпоинты
	r.Post("/api/user/register", h.auth.Register)
	r.Post("/api/user/login", h.auth.Login)
	r.Get("/api/products", h.products.List)

	// Защищенные эндпоинты
	r.Group(func(r chi.Router) {
		r.Use(handlers.AuthMiddleware(deps.jwtManager))

		r.Route("/api/user", func(r chi.Router) {
			r.Get("/profile", h.auth.Profile)
			r.Get("/balance", h.account.GetBalance)
			r.Get("/ledger", h.account.GetLedger)
			r.Get("/orders", h.account.GetOrders)
			r.Get("/receipts", h.account.GetReceipts)
			r.Get("/notifications", h.account.GetNotifications)
			r.Post("/avatar", h.account.UploadAvatar)
			r.Post("/checkout/tocoin", h.checkout.CheckoutTocoin)
			r.Post("/checkout/card", h.checkout.CheckoutCard)
		})

		r.Get("/api/files/*", h.files.Get)

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(handlers.AdminOnly)
			r.Get("/receipts", h.admin.ListReceipts)
			r.Post("/receipts/{id}/confirm", h.admin.ConfirmReceipt)
			r.Post("/receipts/{id}/reject", h.admin.RejectReceipt)
			r.Post("/users/{id}/balance", h.admin.AdjustBalance)
			r.Post("/reconcile", h.admin.Reconcile)
			r.Post("/products", h.products.Add)
			r.Delete("/products/{id}", h.products.Delete)
		})
	})
}
