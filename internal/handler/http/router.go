package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/service"
	"github.com/RahulXTmCoding/desi-otaku-catalog/pkg/health"
	"github.com/RahulXTmCoding/desi-otaku-catalog/pkg/middleware"
)

// NewRouter creates a chi router with all catalog and inventory routes.
func NewRouter(
	catalogService *service.CatalogService,
	inventoryService *service.InventoryService,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("catalog"))
	r.Use(middleware.Tracing("catalog"))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	catalogHandler := NewCatalogHandler(catalogService, logger)
	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/products", catalogHandler.SearchProducts)
		r.Get("/products/{productId}", catalogHandler.GetProduct)
	})

	inventoryHandler := NewInventoryHandler(inventoryService, logger)
	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Get("/{productId}", inventoryHandler.GetStock)
		r.Get("/{productId}/sizes/{size}", inventoryHandler.GetSizeStock)

		r.Post("/check", inventoryHandler.CheckAvailability)
		r.Post("/reserve", inventoryHandler.ReserveStock)
		r.Post("/release", inventoryHandler.ReleaseReservation)
		r.Post("/confirm", inventoryHandler.ConfirmReservation)

		r.Post("/{productId}/sizes/{size}/decrease", inventoryHandler.DecreaseStock)
		r.Put("/{productId}/sizes/{size}", inventoryHandler.RestockSize)
	})

	return r
}
