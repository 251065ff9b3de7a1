package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"vendosync/internal/logger"
	"vendosync/internal/photos"
	"vendosync/internal/procurement"
	"vendosync/internal/rfq"
	"vendosync/internal/token"
	"vendosync/models"
)

const maxBodySize = 1 << 20

// Response тело ответа с кодом результата
type Response struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

var (
	errMissingData = errors.New("missing data")
	errInvalidData = errors.New("invalid data")
)

func missingFields(fields ...string) error {
	return fmt.Errorf("%w: Missing field(s): %s", errMissingData, strings.Join(fields, ", "))
}

func invalidData(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInvalidData, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Response{Code: code, Message: message})
}

// decodeJSON читает тело запроса с ограничением размера
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return invalidData("failed to read request body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return invalidData("invalid JSON format")
	}
	return nil
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// сообщение пустое, если клиенту показывается текст самой ошибки
var errorMappings = []errorMapping{
	{token.ErrTokenMissing, http.StatusBadRequest, "error/missing_token", "Token is missing."},
	{token.ErrTokenExpired, http.StatusBadRequest, "error/expired_token", "Token has expired."},
	{token.ErrTokenInvalid, http.StatusBadRequest, "error/invalid_token", "Invalid token."},
	{rfq.ErrTokenRevoked, http.StatusBadRequest, "error/revoked_token", "This RFQ has been withdrawn."},
	{rfq.ErrRFQNotFound, http.StatusNotFound, "error/not_found", "RFQ not found."},
	{rfq.ErrVendorNotFound, http.StatusNotFound, "error/not_found", ""},
	{procurement.ErrProcurementNotFound, http.StatusNotFound, "error/not_found", "Procurement not found."},
	{models.ErrNotFound, http.StatusNotFound, "error/not_found", "Resource not found."},
	{rfq.ErrItemNotInRFQ, http.StatusBadRequest, "error/invalid_item", ""},
	{rfq.ErrVendorHasNotResponded, http.StatusBadRequest, "error/no_response", "The vendor has not yet replied to the RFQ."},
	{rfq.ErrInvalidProcurementReference, http.StatusBadRequest, "error/invalid_reference", ""},
	{procurement.ErrUnknownItem, http.StatusBadRequest, "error/invalid_reference", ""},
	{rfq.ErrRFQClosed, http.StatusBadRequest, "error/closed", "The order for this RFQ has already been placed."},
	{errMissingData, http.StatusBadRequest, "validate/missing-data", ""},
	{rfq.ErrIncompleteItem, http.StatusBadRequest, "validate/missing-data", ""},
	{rfq.ErrInvalidRequest, http.StatusBadRequest, "validate/invalid-data", ""},
	{procurement.ErrInvalidLines, http.StatusBadRequest, "validate/invalid-data", ""},
	{photos.ErrNotImage, http.StatusBadRequest, "validate/invalid-data", ""},
	{errInvalidData, http.StatusBadRequest, "validate/invalid-data", ""},
}

// writeError переводит ошибку в {code, message}; неизвестные ошибки логируются и скрываются
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = publicMessage(err, m.target)
			}
			writeResponse(w, m.status, m.code, msg)
			return
		}
	}

	logger.FromContext(r.Context()).Error("Unexpected error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeResponse(w, http.StatusInternalServerError, "error/unexpected", "An unexpected error occurred.")
}

// publicMessage текст ошибки без обертки sentinel'а валидации
func publicMessage(err, target error) string {
	msg := err.Error()
	if target == errMissingData || target == errInvalidData {
		msg = strings.TrimPrefix(msg, target.Error()+": ")
	}
	return msg
}
