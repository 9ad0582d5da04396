package middleware

import (
	"context"
	"sync"
)

type requestInfoKey struct{}

// requestInfo — данные, которые обработчик сообщает логу запроса.
type requestInfo struct {
	mu    sync.Mutex
	login string
}

// withRequestInfo кладёт в контекст пустую requestInfo.
func withRequestInfo(ctx context.Context) (context.Context, *requestInfo) {
	info := &requestInfo{}
	return context.WithValue(ctx, requestInfoKey{}, info), info
}

// SetLogin сообщает RequestLogger login клиента из /create или /login.
// Без RequestLogger в цепочке вызов ничего не делает.
func SetLogin(ctx context.Context, login string) {
	info, ok := ctx.Value(requestInfoKey{}).(*requestInfo)
	if !ok {
		return
	}
	info.mu.Lock()
	info.login = login
	info.mu.Unlock()
}

func (i *requestInfo) loginValue() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.login
}
