package handlers

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vendosync/internal/events"
	"vendosync/internal/logger"
	"vendosync/internal/reputation"
	"vendosync/models"
)

type upsertVendorRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category []int  `json:"category"`
	Email    string `json:"email"`
	Address  string `json:"address"`
}

// ListVendorsHandler поставщики и справочник категорий
func (h *Handler) ListVendorsHandler(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.Store.ListVendors(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	categories, err := h.Store.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": vendors, "categories": categories})
}

// UpsertVendorHandler создает поставщика без id или изменяет существующего.
// Смена имени или адреса ставит пересчет оценки в очередь.
func (h *Handler) UpsertVendorHandler(w http.ResponseWriter, r *http.Request) {
	var req upsertVendorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validateVendorRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	vendor := &models.Vendor{ID: req.ID, Name: req.Name, Email: req.Email, Address: req.Address}

	var oldName, oldAddress string
	if req.ID != "" {
		old, err := h.Store.GetVendor(ctx, req.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		oldName, oldAddress = old.Name, old.Address

		if err := h.Store.UpdateVendor(ctx, vendor, req.Category); err != nil {
			writeError(w, r, err)
			return
		}
	} else {
		vendor.ID = uuid.NewString()
		if err := h.Store.CreateVendor(ctx, vendor, req.Category); err != nil {
			writeError(w, r, err)
			return
		}
	}

	if vendor.Name != oldName || vendor.Address != oldAddress {
		err := h.Reputation.Enqueue(ctx, reputation.Job{VendorID: vendor.ID, Name: vendor.Name, Address: vendor.Address})
		if err != nil {
			logger.FromContext(ctx).Warn("Failed to enqueue vendor assessment", zap.String("vendor_id", vendor.ID), zap.Error(err))
		}
	}

	saved, err := h.Store.GetVendor(ctx, vendor.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if req.ID != "" {
		h.publish(r, events.Modify, events.ResourceVendor, saved)
		writeResponse(w, http.StatusOK, "crud/modify", "Vendor has been modified successfully!")
		return
	}
	h.publish(r, events.Add, events.ResourceVendor, saved)
	writeResponse(w, http.StatusCreated, "crud/add", "Vendor has been added successfully!")
}

func (h *Handler) validateVendorRequest(r *http.Request, req *upsertVendorRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Address = strings.TrimSpace(req.Address)

	var missing []string
	if req.Name == "" {
		missing = append(missing, "name")
	}
	if len(req.Category) == 0 {
		missing = append(missing, "category")
	}
	if req.Email == "" {
		missing = append(missing, "email")
	}
	if req.Address == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return missingFields(missing...)
	}

	if len(req.Name) > 200 {
		return invalidData("name max length is 200")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return invalidData("invalid email address")
	}

	found, err := h.Store.ExistingCategoryIDs(r.Context(), req.Category)
	if err != nil {
		return err
	}
	if len(found) != len(uniqueInts(req.Category)) {
		return invalidData("unknown category")
	}
	return nil
}

// DeleteVendorHandler удаление поставщика (менеджер)
func (h *Handler) DeleteVendorHandler(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "vendorId")

	vendor, err := h.Store.GetVendor(r.Context(), vendorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Store.DeleteVendor(r.Context(), vendorID); err != nil {
		writeError(w, r, err)
		return
	}

	h.publish(r, events.Delete, events.ResourceVendor, vendor)
	writeResponse(w, http.StatusOK, "crud/delete", "Vendor has been deleted successfully.")
}

// ApproveVendorHandler одобрение поставщика (менеджер)
func (h *Handler) ApproveVendorHandler(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "vendorId")

	if err := h.Store.ApproveVendor(r.Context(), vendorID); err != nil {
		writeError(w, r, err)
		return
	}
	vendor, err := h.Store.GetVendor(r.Context(), vendorID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.publish(r, events.Modify, events.ResourceVendor, vendor)
	writeResponse(w, http.StatusOK, "crud/update", "Vendor has been approved successfully.")
}

func uniqueInts(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
