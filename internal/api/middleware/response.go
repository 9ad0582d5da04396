package middleware

import "net/http"

// statusRecorder запоминает статус и размер ответа для логов и метрик.
// Один экземпляр на запрос, общий для RequestLogger и MetricsMiddleware.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

// recorderFor возвращает существующий statusRecorder, если w уже обёрнут,
// иначе создаёт новый.
func recorderFor(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// routeLabel сводит путь к известному маршруту dispatcher или storagestub.
// Неизвестные пути получают "other", чтобы произвольные URL
// не раздували кардинальность метрик и логов.
func routeLabel(path string) string {
	switch path {
	case "/", "/create", "/login", "/health/live", "/health/ready", "/metrics",
		"/ping", "/create_client":
		return path
	}
	return "other"
}
