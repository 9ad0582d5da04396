// Пакет errors — конструкторы стандартных ошибок Balancer.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок.
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeDuplicateLogin      = "DUPLICATE_LOGIN"
	CodeNotFound            = "NOT_FOUND"
	CodeForbidden           = "FORBIDDEN"
	CodeNoStorageAvailable  = "NO_STORAGE_AVAILABLE"
	CodeBackendCreateFailed = "BACKEND_CREATE_FAILED"
	CodeInternalError       = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// DuplicateLogin — 400 login уже зарегистрирован.
func DuplicateLogin(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeDuplicateLogin, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Forbidden — 403 неизвестный login или неверный password.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// NoStorageAvailable — 500 нет доступных storage nodes.
func NoStorageAvailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeNoStorageAvailable, message)
}

// BackendCreateFailed — 500 storage node не создал клиента.
func BackendCreateFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeBackendCreateFailed, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
