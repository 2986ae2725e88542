package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"tasklist/backend/internal/logger"
	"tasklist/backend/internal/models"
	"tasklist/backend/internal/monitoring"
	"tasklist/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Envelope is the body of every task API response.
type Envelope struct {
	Success bool         `json:"success"`
	Count   *int         `json:"count,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Message string       `json:"message,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const (
	msgServerError      = "Server error"
	msgTaskNotFound     = "Task not found"
	msgValidationFailed = "Validation failed"
	msgInvalidBody      = "Invalid request body"
	msgNotAuthenticated = "Not authorized, no token"
)

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: status < http.StatusBadRequest, Message: message})
}

func respondValidation(c *gin.Context, errs []FieldError) {
	c.JSON(http.StatusBadRequest, Envelope{Success: false, Message: msgValidationFailed, Errors: errs})
}

// respondError maps a service error onto a status code. Anything outside the
// known taxonomy is logged and answered with a fixed message.
func respondError(c *gin.Context, log *logger.Logger, action string, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		respondValidation(c, []FieldError{{Field: verr.Field, Message: verr.Message}})
	case errors.Is(err, services.ErrTaskNotFound):
		respondMessage(c, http.StatusNotFound, msgTaskNotFound)
	case errors.Is(err, services.ErrNotAuthorized):
		respondMessage(c, http.StatusUnauthorized, "Not authorized to "+action+" this task")
	default:
		log.Errorw("Task request failed",
			"error", err,
			"method", c.Request.Method,
			"path", c.FullPath(),
		)
		respondMessage(c, http.StatusInternalServerError, msgServerError)
	}
}

// respondBindError reports a request body that could not be decoded or
// failed tag validation.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		respondValidation(c, fields)
		return
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		respondValidation(c, []FieldError{{Field: typeErr.Field, Message: "Invalid value"}})
		return
	}

	respondMessage(c, http.StatusBadRequest, msgInvalidBody)
}

func outcomeOf(err error) string {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return monitoring.OutcomeInvalid
	case errors.Is(err, services.ErrTaskNotFound):
		return monitoring.OutcomeNotFound
	case errors.Is(err, services.ErrNotAuthorized):
		return monitoring.OutcomeUnauthorized
	default:
		return monitoring.OutcomeError
	}
}
