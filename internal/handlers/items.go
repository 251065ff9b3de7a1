package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vendosync/internal/events"
	"vendosync/internal/logger"
	"vendosync/internal/photos"
	"vendosync/models"
)

const maxUploadSize = 10 << 20

// ListItemsHandler товары и справочник категорий
func (h *Handler) ListItemsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.ListItems(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	categories, err := h.Store.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items, "categories": categories})
}

// ListCategoriesHandler справочник категорий
func (h *Handler) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Store.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// UpsertItemHandler multipart: id (пустой при создании), name, category, photo (необязательно)
func (h *Handler) UpsertItemHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, r, invalidData("invalid multipart form"))
		return
	}

	itemID := strings.TrimSpace(r.FormValue("id"))
	name := strings.TrimSpace(r.FormValue("name"))
	categoryStr := strings.TrimSpace(r.FormValue("category"))

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if categoryStr == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		writeError(w, r, missingFields(missing...))
		return
	}
	categoryID, err := strconv.Atoi(categoryStr)
	if err != nil {
		writeError(w, r, invalidData("invalid category"))
		return
	}

	photo, err := readPhoto(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if photo != nil {
		if _, _, err := photos.DetectImage(photo); err != nil {
			writeError(w, r, err)
			return
		}
	}

	ctx := r.Context()
	found, err := h.Store.ExistingCategoryIDs(ctx, []int{categoryID})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(found) == 0 {
		writeError(w, r, invalidData("unknown category"))
		return
	}

	item := &models.Item{ID: itemID, Name: name, CategoryID: categoryID}
	var oldPhoto *string
	if itemID != "" {
		old, err := h.Store.GetItem(ctx, itemID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		oldPhoto = old.Photo
		item.Photo = old.Photo
		if err := h.Store.UpdateItem(ctx, item); err != nil {
			writeError(w, r, err)
			return
		}
	} else {
		item.ID = uuid.NewString()
		if err := h.Store.CreateItem(ctx, item); err != nil {
			writeError(w, r, err)
			return
		}
	}

	if photo != nil {
		name, err := h.Photos.Upload(ctx, item.ID, photo)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := h.Store.SetItemPhoto(ctx, item.ID, &name); err != nil {
			writeError(w, r, err)
			return
		}
		item.Photo = &name
		if oldPhoto != nil {
			h.removePhoto(r, *oldPhoto)
		}
	}

	if itemID != "" {
		h.publish(r, events.Modify, events.ResourceItem, item)
		writeResponse(w, http.StatusOK, "crud/modify", "Item has been modified successfully!")
		return
	}
	h.publish(r, events.Add, events.ResourceItem, item)
	writeResponse(w, http.StatusCreated, "crud/add", "Item has been added successfully!")
}

// readPhoto содержимое поля photo или nil, если файл не передан
func readPhoto(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, invalidData("invalid photo")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, invalidData("failed to read photo")
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

// DeleteItemHandler удаление товара вместе с фото
func (h *Handler) DeleteItemHandler(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	item, err := h.Store.GetItem(r.Context(), itemID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Store.DeleteItem(r.Context(), itemID); err != nil {
		writeError(w, r, err)
		return
	}
	if item.Photo != nil {
		h.removePhoto(r, *item.Photo)
	}

	h.publish(r, events.Delete, events.ResourceItem, item)
	writeResponse(w, http.StatusOK, "crud/delete", "Item has been deleted successfully.")
}

func (h *Handler) removePhoto(r *http.Request, name string) {
	if err := h.Photos.Remove(r.Context(), name); err != nil {
		logger.FromContext(r.Context()).Warn("Failed to remove photo", zap.String("photo", name), zap.Error(err))
	}
}
