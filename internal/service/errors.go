// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrMissingCredentials — пустой login или password.
	ErrMissingCredentials = errors.New("не заданы login и password")
	// ErrDuplicateLogin — login уже зарегистрирован.
	ErrDuplicateLogin = errors.New("login уже зарегистрирован")
	// ErrNoStorageAvailable — нет доступных storage nodes.
	ErrNoStorageAvailable = errors.New("нет доступных storage nodes")
	// ErrBackendCreateFailed — storage node не смог создать клиента.
	ErrBackendCreateFailed = errors.New("storage node не создал клиента")
	// ErrUnknownLogin — login не зарегистрирован.
	ErrUnknownLogin = errors.New("неизвестный login")
	// ErrBadCredentials — неверный password.
	ErrBadCredentials = errors.New("неверный password")
	// ErrBackendUnreachable — storage node не ответил на ping.
	// Не покидает HealthMonitor.
	ErrBackendUnreachable = errors.New("storage node недоступен")
)
