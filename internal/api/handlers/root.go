package handlers

import "net/http"

// rootGreeting — ответ на GET /.
const rootGreeting = "Hello, this is a GET response!"

// Root — GET /: текстовая заглушка, подтверждающая работу dispatcher.
func (h *APIHandler) Root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rootGreeting))
}
