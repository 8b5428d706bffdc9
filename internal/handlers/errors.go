package handlers

import (
	"errors"
	"net/http"
	"strings"

	"booking-service/internal/dto"
	"booking-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// lockRetryAfter подсказывает клиенту паузу перед повтором, блокировка живёт доли секунды.
const lockRetryAfter = "1"

func (h *ReservationHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrLockContention):
		c.Header("Retry-After", lockRetryAfter)
		c.JSON(http.StatusConflict, dto.NewLockContentionError(service.ErrLockContention.Error()))
	case errors.Is(err, service.ErrBookingConflict):
		c.JSON(http.StatusConflict, dto.NewBookingConflictError(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.NewNotFoundError(err.Error()))
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, dto.NewInvalidTransitionError(err.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, dto.NewValidationError(err.Error(), nil))
	default:
		h.log.Error("Unhandled service error",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, dto.NewInternalError(""))
	}
}

func (h *ReservationHandler) writeBindError(c *gin.Context, err error) {
	h.log.Warn("Invalid request", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadRequest, dto.NewValidationError("invalid request", fieldErrors(err)))
}

func fieldErrors(err error) []dto.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]dto.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, dto.FieldError{
			Field:   toSnake(fe.Field()),
			Message: fieldMessage(fe),
			Tag:     fe.Tag(),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a UUID"
	case "email":
		return "must be a valid email"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	default:
		return "is invalid"
	}
}

// toSnake: PropertyID -> property_id, CheckIn -> check_in
func toSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
