package httpapi

import "fmt"

type AppError struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func NotFoundError(entity, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s with id %s not found", entity, id),
	}
}

func ValidationError(msg string) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Status:  422,
		Message: msg,
	}
}

func ConflictError(msg string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Status:  409,
		Message: msg,
	}
}

func UnauthorizedError(msg string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Status:  401,
		Message: msg,
	}
}
