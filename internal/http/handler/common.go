package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gradnja/stroski-api/internal/domain"
	"go.uber.org/zap"
)

var validate = validator.New()

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondValidationError sends a standardized validation error response with specific field messages
func respondValidationError(w http.ResponseWriter, err error) {
	fields := make(map[string]string)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[toJSONFieldName(fe.Field())] = formatValidationError(fe)
		}
	}

	respondJSON(w, http.StatusBadRequest, domain.APIError{
		Type:   domain.ErrorTypeValidation,
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
		Detail: "One or more fields failed validation",
		Errors: fields,
	})
}

// formatValidationError creates a human-readable validation error message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", toJSONFieldName(fe.Field()))
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", fe.Param())
	case "datetime":
		return fmt.Sprintf("Must match the format %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	default:
		return domain.GetValidationMessage(fe.Tag())
	}
}

// toJSONFieldName converts a Go struct field name to its JSON equivalent (camelCase)
func toJSONFieldName(field string) string {
	if len(field) == 0 {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// respondWithError sends a standardized JSON error response
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, domain.APIError{
		Type:   getErrorType(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: message,
	})
}

// getErrorType returns the appropriate error type for an HTTP status code
func getErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return domain.ErrorTypeBadRequest
	case http.StatusNotFound:
		return domain.ErrorTypeNotFound
	case http.StatusConflict:
		return domain.ErrorTypeConflict
	case http.StatusTooManyRequests:
		return domain.ErrorTypeTooMany
	default:
		return domain.ErrorTypeInternal
	}
}

// respondStoreError maps engine errors onto HTTP statuses. Validation
// reasons are user-facing and passed through; anything else is logged.
func respondStoreError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrConflict):
		respondJSON(w, http.StatusConflict, domain.APIError{
			Type:   domain.ErrorTypeConflict,
			Title:  http.StatusText(http.StatusConflict),
			Status: http.StatusConflict,
			Detail: err.Error(),
		})
	case errors.Is(err, domain.ErrValidation):
		respondJSON(w, http.StatusBadRequest, domain.APIError{
			Type:   domain.ErrorTypeValidation,
			Title:  "Validation Error",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
	case errors.Is(err, domain.ErrNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	default:
		logger.Error("store operation failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON decodes and validates a JSON body, writing the error response on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondValidationError(w, err)
		return false
	}
	return true
}

// parseMultipart limits the body to maxBytes and parses a multipart form
func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large: maximum size is %dMB", maxBytes>>20))
			return false
		}
		respondWithError(w, http.StatusBadRequest, "Invalid request body: expected multipart form")
		return false
	}
	return true
}

// readCSVBody returns the CSV text of a request: the "file" field of a
// multipart form, or the raw body otherwise
func readCSVBody(w http.ResponseWriter, r *http.Request, maxBytes int64) (string, bool) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if !parseMultipart(w, r, maxBytes) {
			return "", false
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid file upload: file field is required")
			return "", false
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Failed to read uploaded file")
			return "", false
		}
		return string(data), true
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large: maximum size is %dMB", maxBytes>>20))
		return "", false
	}
	return string(data), true
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

func queryInt(r *http.Request, key string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(key))
	return v
}

// attachmentDisposition builds a Content-Disposition header value
func attachmentDisposition(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}
