package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"vendosync/internal/auth"
	"vendosync/internal/events"
	"vendosync/internal/logger"
	"vendosync/internal/photos"
	"vendosync/internal/procurement"
	"vendosync/internal/reputation"
	"vendosync/internal/rfq"
	"vendosync/models"
)

// RFQService жизненный цикл RFQ
type RFQService interface {
	Create(ctx context.Context, actorID string, req rfq.CreateRequest) ([]models.RFQ, error)
	SubmitResponse(ctx context.Context, token string, updates []rfq.ItemUpdate) error
	PlaceOrder(ctx context.Context, token string) error
	View(ctx context.Context, token string, internal bool) (*rfq.QuoteView, error)
	List(ctx context.Context) ([]models.RFQ, error)
	Disable(ctx context.Context, actorID, rfqID string) error
}

// ProcurementService закупки
type ProcurementService interface {
	Create(ctx context.Context, actorID string, lines []procurement.Line) (*models.Procurement, error)
	Items(ctx context.Context, id string) ([]models.ProcurementItem, error)
	List(ctx context.Context) ([]models.ProcurementSummary, error)
	Delete(ctx context.Context, actorID, id string) error
	SuggestVendors(ctx context.Context, categoryID int) ([]models.Vendor, error)
}

// Handler обработчики HTTP API
type Handler struct {
	Store        StorageInterface
	RFQs         RFQService
	Procurements ProcurementService
	Photos       photos.Store
	Reputation   reputation.Enqueuer
	Events       events.Publisher
}

// NewHandler создает новый Handler
func NewHandler(store StorageInterface, rfqs RFQService, procurements ProcurementService,
	photoStore photos.Store, rep reputation.Enqueuer, pub events.Publisher) *Handler {
	return &Handler{
		Store:        store,
		RFQs:         rfqs,
		Procurements: procurements,
		Photos:       photoStore,
		Reputation:   rep,
		Events:       pub,
	}
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// actorID идентификатор сотрудника, выполняющего запрос
func actorID(r *http.Request) string {
	actor, _ := auth.ActorFrom(r.Context())
	return actor.UID
}

// publish рассылает событие; ошибка только логируется
func (h *Handler) publish(r *http.Request, change events.ChangeType, resource string, payload any) {
	err := h.Events.Publish(r.Context(), events.Event{
		ActorID:      actorID(r),
		ChangeType:   change,
		ResourceType: resource,
		Payload:      payload,
	})
	if err != nil {
		logger.FromContext(r.Context()).Warn("Failed to publish change",
			zap.String("resource", resource),
			zap.String("change", string(change)),
			zap.Error(err),
		)
	}
}
