package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"vendosync/internal/logger"
	"vendosync/internal/rfq"
)

type createRFQRequest struct {
	ID      string   `json:"id"`
	Items   []string `json:"items"`
	Vendors []string `json:"vendors"`
}

type submitRFQRequest struct {
	Token string           `json:"token"`
	Items []rfq.ItemUpdate `json:"items"`
}

type placeOrderRequest struct {
	Token string `json:"token"`
}

// ListRFQsHandler возвращает все RFQ
func (h *Handler) ListRFQsHandler(w http.ResponseWriter, r *http.Request) {
	rfqs, err := h.RFQs.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rfqs)
}

// CreateRFQHandler обрабатывает POST /api/rfqs: по RFQ на каждого поставщика
func (h *Handler) CreateRFQHandler(w http.ResponseWriter, r *http.Request) {
	var req createRFQRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var missing []string
	if req.ID == "" {
		missing = append(missing, "id")
	}
	if len(req.Items) == 0 {
		missing = append(missing, "items")
	}
	if len(req.Vendors) == 0 {
		missing = append(missing, "vendors")
	}
	if len(missing) > 0 {
		writeError(w, r, missingFields(missing...))
		return
	}

	logger.FromContext(r.Context()).Debug("Add rfq",
		zap.String("procurement_id", req.ID),
		zap.Strings("items", req.Items),
		zap.Strings("vendors", req.Vendors),
	)

	rfqs, err := h.RFQs.Create(r.Context(), actorID(r), rfq.CreateRequest{
		ProcurementID: req.ID,
		ItemIDs:       req.Items,
		VendorIDs:     req.Vendors,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	ids := make([]string, 0, len(rfqs))
	for _, x := range rfqs {
		ids = append(ids, x.ID)
	}
	writeJSON(w, http.StatusCreated, Response{
		Code:    "crud/add",
		Message: "RFQs have been successfully created, and notification emails have been sent to the respective vendors.",
		Data:    ids,
	})
}

// ViewRFQHandler GET /api/rfqs/view?token=...&internal=true
func (h *Handler) ViewRFQHandler(w http.ResponseWriter, r *http.Request) {
	internal, _ := strconv.ParseBool(r.URL.Query().Get("internal"))

	view, err := h.RFQs.View(r.Context(), r.URL.Query().Get("token"), internal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SubmitRFQResponseHandler прием котировки поставщика по токену
func (h *Handler) SubmitRFQResponseHandler(w http.ResponseWriter, r *http.Request) {
	var req submitRFQRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	// пустой список допустим, отсутствующий ключ нет
	if req.Items == nil {
		writeError(w, r, missingFields("items"))
		return
	}

	if err := h.RFQs.SubmitResponse(r.Context(), req.Token, req.Items); err != nil {
		writeError(w, r, err)
		return
	}
	writeResponse(w, http.StatusOK, "success", "RFQ response submitted successfully.")
}

// PlaceOrderHandler размещение заказа по токену
func (h *Handler) PlaceOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.RFQs.PlaceOrder(r.Context(), req.Token); err != nil {
		writeError(w, r, err)
		return
	}
	writeResponse(w, http.StatusOK, "success", "RFQ status updated to 'ordered' successfully.")
}

// DisableRFQHandler отзыв RFQ (менеджер)
func (h *Handler) DisableRFQHandler(w http.ResponseWriter, r *http.Request) {
	rfqID := chi.URLParam(r, "rfqId")
	if rfqID == "" {
		writeError(w, r, missingFields("rfqId"))
		return
	}

	if err := h.RFQs.Disable(r.Context(), actorID(r), rfqID); err != nil {
		writeError(w, r, err)
		return
	}
	writeResponse(w, http.StatusOK, "crud/modify", "RFQ has been disabled successfully.")
}
