package seclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/balancer/internal/domain/model"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupMockSE создаёт mock HTTP-сервер storage node и возвращает его адрес.
func setupMockSE(t *testing.T, handler http.HandlerFunc) model.StorageAddress {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return addrOf(t, server.URL)
}

// addrOf извлекает host:port из URL тестового сервера.
func addrOf(t *testing.T, rawURL string) model.StorageAddress {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("Ошибка разбора URL: %v", err)
	}
	addr, err := model.ParseStorageAddress(u.Host)
	if err != nil {
		t.Fatalf("Ошибка разбора адреса: %v", err)
	}
	return addr
}

// newHTTPClient создаёт клиент storage nodes со схемой http.
func newHTTPClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{Scheme: "http"}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestClient_Ping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "pong", status: http.StatusOK, body: "pong"},
		{name: "pong с переводом строки", status: http.StatusOK, body: "pong\n"},
		{name: "неверное тело", status: http.StatusOK, body: "ping", wantErr: ErrUnexpectedBody},
		{name: "пустое тело", status: http.StatusOK, body: "", wantErr: ErrUnexpectedBody},
		{
			name:    "pong и мусор за пределами лимита",
			status:  http.StatusOK,
			body:    "pong" + strings.Repeat(" ", 60) + "GARBAGE-not-pong",
			wantErr: ErrUnexpectedBody,
		},
		{name: "pong с пробелами в пределах лимита", status: http.StatusOK, body: "pong" + strings.Repeat(" ", 60)},
		{name: "статус 503", status: http.StatusServiceUnavailable, body: "pong", wantErr: ErrUnexpectedStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := setupMockSE(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/ping" || r.Method != http.MethodGet {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := newHTTPClient(t).Ping(context.Background(), addr)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ожидался nil, получено %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ожидалась %v, получено %v", tt.wantErr, err)
			}
		})
	}
}

func TestClient_Ping_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := addrOf(t, server.URL)
	server.Close()

	if err := newHTTPClient(t).Ping(context.Background(), addr); err == nil {
		t.Fatal("ожидалась ошибка для закрытого сервера")
	}
}

func TestClient_Ping_Timeout(t *testing.T) {
	addr := setupMockSE(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte("pong"))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := newHTTPClient(t).Ping(ctx, addr); err == nil {
		t.Fatal("ожидалась ошибка по таймауту")
	}
}

func TestClient_Ping_TLS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong\n"))
	}))
	t.Cleanup(server.Close)

	client := NewWithHTTPClient(server.Client(), "https", testLogger())
	if err := client.Ping(context.Background(), addrOf(t, server.URL)); err != nil {
		t.Fatalf("Ошибка Ping по TLS: %v", err)
	}
}

func TestClient_CreateClient(t *testing.T) {
	addr := setupMockSE(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/create_client" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("ожидался Content-Type application/json, получен %q", ct)
		}

		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req["clientId"] != "alice" {
			t.Errorf("ожидался clientId=alice, получен %q", req["clientId"])
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"uuid": "a2c59f5c-6c9b-4800-afb8-282fc5e743cc"})
	})

	id, err := newHTTPClient(t).CreateClient(context.Background(), addr, "alice")
	if err != nil {
		t.Fatalf("Ошибка CreateClient: %v", err)
	}
	if id != "a2c59f5c-6c9b-4800-afb8-282fc5e743cc" {
		t.Errorf("неожиданный uuid %q", id)
	}
}

func TestClient_CreateClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "статус 500", status: http.StatusInternalServerError, body: `{"uuid":"x"}`, wantErr: ErrUnexpectedStatus},
		{name: "невалидный JSON", status: http.StatusOK, body: `not json`, wantErr: ErrUnexpectedBody},
		{name: "нет uuid", status: http.StatusOK, body: `{"id":"x"}`, wantErr: ErrUnexpectedBody},
		{name: "пустой uuid", status: http.StatusOK, body: `{"uuid":""}`, wantErr: ErrUnexpectedBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := setupMockSE(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := newHTTPClient(t).CreateClient(context.Background(), addr, "bob")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ожидалась %v, получено %v", tt.wantErr, err)
			}
		})
	}
}

func TestNew_InvalidCACert(t *testing.T) {
	_, err := New(Options{Scheme: "https", CACertPath: "/nonexistent/ca.pem"}, testLogger())
	if err == nil {
		t.Fatal("ожидалась ошибка для несуществующего CA-сертификата")
	}
}

func TestBaseURL(t *testing.T) {
	client, err := New(Options{}, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	got := client.BaseURL(model.StorageAddress{Host: "10.0.0.1", Port: 8443})
	if got != "https://10.0.0.1:8443" {
		t.Errorf("ожидался https://10.0.0.1:8443, получен %s", got)
	}
}
