// clients.go — обработчики POST /create и POST /login.
//
// Тело запроса разбирается как application/x-www-form-urlencoded
// независимо от Content-Type (terminal-клиент заголовок не выставляет).
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	apierrors "github.com/bigkaa/goartstore/balancer/internal/api/errors"
	"github.com/bigkaa/goartstore/balancer/internal/api/middleware"
	"github.com/bigkaa/goartstore/balancer/internal/domain/model"
	"github.com/bigkaa/goartstore/balancer/internal/service"
)

// maxFormBytes — максимальный размер тела формы.
const maxFormBytes = 64 << 10

// errBodyTooLarge — тело формы превышает maxFormBytes.
var errBodyTooLarge = errors.New("тело запроса слишком большое")

// clientResponse — ответ create и login.
type clientResponse struct {
	ClientID    string `json:"clientId"`
	RemoteUUID  string `json:"remoteUuid"`
	StorageHost string `json:"storageHost"`
	StoragePort int    `json:"storagePort"`
}

func newClientResponse(acc *model.ClientAccount) clientResponse {
	return clientResponse{
		ClientID:    acc.ClientID,
		RemoteUUID:  acc.RemoteUUID,
		StorageHost: acc.Storage.Host,
		StoragePort: acc.Storage.Port,
	}
}

// CreateClient — POST /create: регистрация клиента и назначение storage node.
func (h *APIHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	login, password, err := parseCredentials(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	middleware.SetLogin(r.Context(), login)

	acc, err := h.clients.Create(r.Context(), login, password)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newClientResponse(acc))
}

// Login — POST /login: проверка учётных данных зарегистрированного клиента.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	login, password, err := parseCredentials(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	middleware.SetLogin(r.Context(), login)

	acc, err := h.clients.Authenticate(login, password)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newClientResponse(acc))
}

// handleServiceError преобразует ошибки сервисного слоя в HTTP-ответы.
func (h *APIHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMissingCredentials):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrDuplicateLogin):
		apierrors.DuplicateLogin(w, err.Error())
	case errors.Is(err, service.ErrNoStorageAvailable):
		apierrors.NoStorageAvailable(w, err.Error())
	case errors.Is(err, service.ErrBackendCreateFailed):
		// Детали ошибки storage node клиенту не отдаются
		apierrors.BackendCreateFailed(w, service.ErrBackendCreateFailed.Error())
	case errors.Is(err, service.ErrUnknownLogin), errors.Is(err, service.ErrBadCredentials):
		// Одинаковый ответ, чтобы не раскрывать существование login
		apierrors.Forbidden(w, "неверный login или password")
	default:
		h.logger.Error("Необработанная ошибка сервиса", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка")
	}
}

// parseCredentials читает login и password из тела формы.
func parseCredentials(r *http.Request) (login, password string, err error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFormBytes+1))
	if err != nil {
		return "", "", fmt.Errorf("ошибка чтения тела запроса: %w", err)
	}
	if len(body) > maxFormBytes {
		return "", "", errBodyTooLarge
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return "", "", fmt.Errorf("некорректное тело формы: %w", err)
	}

	return values.Get("login"), values.Get("password"), nil
}
