package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"vendosync/internal/auth"
	"vendosync/internal/logger"
	"vendosync/internal/metrics"
)

// NewRouter собирает маршруты API. Операции по токену RFQ доступны без входа,
// остальное требует роль не ниже указанной.
func NewRouter(h *Handler, guard *auth.Guard, hub http.Handler, m *metrics.Metrics, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(log))
	r.Use(middleware.Recoverer)

	if m != nil {
		r.Use(m.Middleware)
		r.Handle("/metrics", m.Handler())
	}
	if hub != nil {
		r.Handle("/ws/changes", hub)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)

		// поставщик по ссылке из письма
		r.Get("/rfqs/view", h.ViewRFQHandler)
		r.Post("/rfqs/response", h.SubmitRFQResponseHandler)
		r.Post("/rfqs/order", h.PlaceOrderHandler)

		r.Group(func(r chi.Router) {
			r.Use(guard.Require(auth.Executive))

			r.Get("/rfqs", h.ListRFQsHandler)
			r.Post("/rfqs", h.CreateRFQHandler)

			r.Get("/procurements", h.ListProcurementsHandler)
			r.Post("/procurements", h.CreateProcurementHandler)
			r.Get("/procurements/{procurementId}/items", h.GetProcurementItemsHandler)
			r.Get("/procurements/suggested-vendors/{categoryId}", h.SuggestedVendorsHandler)

			r.Get("/vendors", h.ListVendorsHandler)
			r.Post("/vendors", h.UpsertVendorHandler)

			r.Get("/items", h.ListItemsHandler)
			r.Post("/items", h.UpsertItemHandler)
			r.Delete("/items/{itemId}", h.DeleteItemHandler)

			r.Get("/categories", h.ListCategoriesHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(guard.Require(auth.Manager))

			r.Delete("/vendors/{vendorId}", h.DeleteVendorHandler)
			r.Post("/vendors/{vendorId}/approve", h.ApproveVendorHandler)
			r.Post("/rfqs/{rfqId}/disable", h.DisableRFQHandler)
			r.Delete("/procurements/{procurementId}", h.DeleteProcurementHandler)
		})
	})

	return r
}
