package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"vendosync/internal/procurement"
)

type createProcurementRequest struct {
	Items []procurement.Line `json:"items"`
}

// ListProcurementsHandler все закупки
func (h *Handler) ListProcurementsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.Procurements.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

// CreateProcurementHandler POST /api/procurements
func (h *Handler) CreateProcurementHandler(w http.ResponseWriter, r *http.Request) {
	var req createProcurementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Items) == 0 {
		writeError(w, r, missingFields("items"))
		return
	}

	p, err := h.Procurements.Create(r.Context(), actorID(r), req.Items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, Response{
		Code:    "crud/add",
		Message: "Procurement data saved successfully.",
		Data:    p,
	})
}

// GetProcurementItemsHandler текущие строки закупки
func (h *Handler) GetProcurementItemsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := h.Procurements.Items(r.Context(), chi.URLParam(r, "procurementId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items})
}

// DeleteProcurementHandler удаление закупки (менеджер)
func (h *Handler) DeleteProcurementHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Procurements.Delete(r.Context(), actorID(r), chi.URLParam(r, "procurementId")); err != nil {
		writeError(w, r, err)
		return
	}
	writeResponse(w, http.StatusOK, "crud/delete", "Procurement has been deleted successfully.")
}

// SuggestedVendorsHandler поставщики категории с положительной оценкой
func (h *Handler) SuggestedVendorsHandler(w http.ResponseWriter, r *http.Request) {
	categoryID, err := strconv.Atoi(chi.URLParam(r, "categoryId"))
	if err != nil || categoryID <= 0 {
		writeError(w, r, invalidData("invalid categoryId"))
		return
	}

	vendors, err := h.Procurements.SuggestVendors(r.Context(), categoryID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": vendors})
}
