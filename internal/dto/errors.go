package dto

// BaseError универсальный корневой формат ошибки
// Code: машинно-ориентированный код (snake_case)
// Message: краткое человеко-читаемое описание
// Fields: для валидационных ошибок (имя поля + текст)
type BaseError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Tag     string `json:"tag,omitempty"`
}

const (
	CodeValidation        = "validation_error"
	CodeNotFound          = "not_found"
	CodeLockContention    = "lock_contention"
	CodeBookingConflict   = "booking_conflict"
	CodeInvalidTransition = "invalid_transition"
	CodeInternal          = "internal_error"
)

// ValidationErrorResponse 400
type ValidationErrorResponse BaseError

// ConflictErrorResponse 409: lock_contention (можно повторить) или booking_conflict
type ConflictErrorResponse BaseError

// NotFoundErrorResponse 404
type NotFoundErrorResponse BaseError

// InvalidTransitionErrorResponse 400: переход статуса не разрешён таблицей
type InvalidTransitionErrorResponse BaseError

// InternalErrorResponse 500
type InternalErrorResponse BaseError

func NewValidationError(msg string, fields []FieldError) ValidationErrorResponse {
	return ValidationErrorResponse(BaseError{Code: CodeValidation, Message: msg, Fields: fields})
}
func NewLockContentionError(msg string) ConflictErrorResponse {
	return ConflictErrorResponse(BaseError{Code: CodeLockContention, Message: msg})
}
func NewBookingConflictError(msg string) ConflictErrorResponse {
	return ConflictErrorResponse(BaseError{Code: CodeBookingConflict, Message: msg})
}
func NewNotFoundError(msg string) NotFoundErrorResponse {
	return NotFoundErrorResponse(BaseError{Code: CodeNotFound, Message: msg})
}
func NewInvalidTransitionError(msg string) InvalidTransitionErrorResponse {
	return InvalidTransitionErrorResponse(BaseError{Code: CodeInvalidTransition, Message: msg})
}
func NewInternalError(details string) InternalErrorResponse {
	return InternalErrorResponse(BaseError{Code: CodeInternal, Message: "internal server error", Details: details})
}
