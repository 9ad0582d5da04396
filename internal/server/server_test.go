package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/balancer/internal/api/handlers"
	"github.com/bigkaa/goartstore/balancer/internal/config"
	"github.com/bigkaa/goartstore/balancer/internal/domain/model"
	"github.com/bigkaa/goartstore/balancer/internal/domain/pool"
	"github.com/bigkaa/goartstore/balancer/internal/seclient"
	"github.com/bigkaa/goartstore/balancer/internal/service"
	"github.com/bigkaa/goartstore/balancer/internal/storagestub"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testEnv — dispatcher поверх двух storage nodes в памяти процесса.
type testEnv struct {
	dispatcher *httptest.Server
	client     *http.Client
	monitor    *service.HealthMonitor
	stubs      []*storagestub.Stub
	addrs      []model.StorageAddress
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{}
	for i := 0; i < 2; i++ {
		stub, addr := startStub(t)
		env.stubs = append(env.stubs, stub)
		env.addrs = append(env.addrs, addr)
	}
	env.startDispatcher(t)
	return env
}

// startStub запускает storagestub на свободном порту.
func startStub(t *testing.T) (*storagestub.Stub, model.StorageAddress) {
	t.Helper()
	stub := storagestub.New(testLogger())
	se := httptest.NewServer(stub.Handler())
	t.Cleanup(se.Close)
	return stub, hostAddr(t, se.URL)
}

func hostAddr(t *testing.T, rawURL string) model.StorageAddress {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	addr, err := model.ParseStorageAddress(u.Host)
	require.NoError(t, err)
	return addr
}

// startDispatcher поднимает dispatcher поверх env.addrs.
func (e *testEnv) startDispatcher(t *testing.T) {
	t.Helper()
	logger := testLogger()

	p, err := pool.New(e.addrs)
	require.NoError(t, err)

	se, err := seclient.New(seclient.Options{Scheme: "http"}, logger)
	require.NoError(t, err)

	e.monitor = service.NewHealthMonitor(p, se, time.Hour, time.Second, 4, logger)
	registry := service.NewClientRegistry(p, se, time.Second, logger)
	handler := handlers.NewAPIHandler(handlers.NewHealthHandler(p, nil), registry, logger)

	e.dispatcher = httptest.NewTLSServer(NewRouter(handler, logger))
	t.Cleanup(e.dispatcher.Close)
	e.client = e.dispatcher.Client()
}

type clientJSON struct {
	ClientID    string `json:"clientId"`
	RemoteUUID  string `json:"remoteUuid"`
	StorageHost string `json:"storageHost"`
	StoragePort int    `json:"storagePort"`
}

func (e *testEnv) post(t *testing.T, path, login, password string) (int, []byte) {
	t.Helper()
	form := url.Values{"login": {login}, "password": {password}}
	resp, err := e.client.Post(e.dispatcher.URL+path, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func (e *testEnv) create(t *testing.T, login, password string) clientJSON {
	t.Helper()
	status, body := e.post(t, "/create", login, password)
	require.Equal(t, http.StatusOK, status, string(body))

	var c clientJSON
	require.NoError(t, json.Unmarshal(body, &c))
	return c
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var e struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &e), string(body))
	return e.Error.Code
}

func storageOf(c clientJSON) model.StorageAddress {
	return model.StorageAddress{Host: c.StorageHost, Port: c.StoragePort}
}

func TestDispatcher_CreateAndLogin(t *testing.T) {
	env := setupEnv(t)
	env.monitor.Sweep(context.Background())

	alice := env.create(t, "alice", "secret")
	bob := env.create(t, "bob", "hunter2")
	carol := env.create(t, "carol", "pw")

	require.Equal(t, "alice", alice.ClientID)
	require.NotEmpty(t, alice.RemoteUUID)
	require.Equal(t, env.addrs[0], storageOf(alice))
	require.Equal(t, env.addrs[1], storageOf(bob))
	require.Equal(t, env.addrs[0], storageOf(carol))

	status, body := env.post(t, "/login", "alice", "secret")
	require.Equal(t, http.StatusOK, status)
	var logged clientJSON
	require.NoError(t, json.Unmarshal(body, &logged))
	require.Equal(t, alice, logged)

	status, body = env.post(t, "/login", "alice", "wrong")
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", errorCode(t, body))

	status, body = env.post(t, "/login", "mallory", "secret")
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", errorCode(t, body))

	status, body = env.post(t, "/create", "alice", "other")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "DUPLICATE_LOGIN", errorCode(t, body))

	status, body = env.post(t, "/create", "", "pw")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "VALIDATION_ERROR", errorCode(t, body))

	require.Equal(t, 2, env.stubs[0].ClientCount())
	require.Equal(t, 1, env.stubs[1].ClientCount())
}

func TestDispatcher_StorageFailover(t *testing.T) {
	env := setupEnv(t)

	env.stubs[1].SetHealthy(false)
	res := env.monitor.Sweep(context.Background())
	require.Equal(t, 1, res.Deactivated)

	for _, login := range []string{"u1", "u2", "u3"} {
		c := env.create(t, login, "pw")
		require.Equal(t, env.addrs[0], storageOf(c), "назначен недоступный storage node")
	}

	env.stubs[0].SetHealthy(false)
	env.monitor.Sweep(context.Background())

	status, body := env.post(t, "/create", "u4", "pw")
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "NO_STORAGE_AVAILABLE", errorCode(t, body))

	// Login не зависит от доступности storage nodes
	status, _ = env.post(t, "/login", "u1", "pw")
	require.Equal(t, http.StatusOK, status)

	resp, err := env.client.Get(env.dispatcher.URL + "/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	env.stubs[1].SetHealthy(true)
	res = env.monitor.Sweep(context.Background())
	require.Equal(t, 1, res.Activated)

	c := env.create(t, "u4", "pw")
	require.Equal(t, env.addrs[1], storageOf(c))
}

func TestDispatcher_StorageConnectionRefused(t *testing.T) {
	stubA, addrA := startStub(t)

	// Порт B занят и сразу освобождён: соединения отклоняются
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addrB := hostAddr(t, "http://"+l.Addr().String())
	require.NoError(t, l.Close())

	env := &testEnv{stubs: []*storagestub.Stub{stubA}, addrs: []model.StorageAddress{addrA, addrB}}
	env.startDispatcher(t)

	res := env.monitor.Sweep(context.Background())
	require.Equal(t, 1, res.Deactivated)

	for _, login := range []string{"u1", "u2", "u3"} {
		c := env.create(t, login, "pw")
		require.Equal(t, addrA, storageOf(c), "назначен storage node с закрытым портом")
	}

	status, body := env.post(t, "/create", "u1", "other")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "DUPLICATE_LOGIN", errorCode(t, body))

	status, _ = env.post(t, "/login", "u2", "pw")
	require.Equal(t, http.StatusOK, status)

	resp, err := env.client.Get(env.dispatcher.URL + "/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Storage node B поднимается на том же адресе
	stubB := storagestub.New(testLogger())
	relisten, err := net.Listen("tcp", addrB.String())
	require.NoError(t, err)
	se := httptest.NewUnstartedServer(stubB.Handler())
	se.Listener.Close()
	se.Listener = relisten
	se.Start()
	t.Cleanup(se.Close)

	res = env.monitor.Sweep(context.Background())
	require.Equal(t, 1, res.Activated)

	assigned := map[model.StorageAddress]int{}
	for _, login := range []string{"u4", "u5"} {
		assigned[storageOf(env.create(t, login, "pw"))]++
	}
	require.Equal(t, 1, assigned[addrB], "восстановленный storage node не получил клиента")
	require.Equal(t, 1, stubB.ClientCount())
	require.Equal(t, 4, stubA.ClientCount())
}

func TestDispatcher_BackendCreateFailed(t *testing.T) {
	env := setupEnv(t)

	// Storage node недоступен, но обход ещё не заметил этого
	env.stubs[0].SetHealthy(false)

	status, body := env.post(t, "/create", "alice", "pw")
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "BACKEND_CREATE_FAILED", errorCode(t, body))

	// Login свободен для повторной попытки
	c := env.create(t, "alice", "pw")
	require.Equal(t, env.addrs[1], storageOf(c))
}

func TestDispatcher_Routes(t *testing.T) {
	env := setupEnv(t)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "корень", method: http.MethodGet, path: "/", wantStatus: http.StatusOK},
		{name: "liveness", method: http.MethodGet, path: "/health/live", wantStatus: http.StatusOK},
		{name: "readiness", method: http.MethodGet, path: "/health/ready", wantStatus: http.StatusOK},
		{name: "метрики", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "неизвестный путь", method: http.MethodGet, path: "/unknown", wantStatus: http.StatusNotFound},
		{name: "неизвестный POST", method: http.MethodPost, path: "/logout", wantStatus: http.StatusNotFound},
		{name: "GET /create", method: http.MethodGet, path: "/create", wantStatus: http.StatusNotFound},
		{name: "DELETE /login", method: http.MethodDelete, path: "/login", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, env.dispatcher.URL+tt.path, nil)
			require.NoError(t, err)

			resp, err := env.client.Do(req)
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			require.NoError(t, err)

			require.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == http.StatusNotFound {
				require.Equal(t, "NOT_FOUND", errorCode(t, body))
			}
		})
	}
}

func TestNew_ServerSettings(t *testing.T) {
	cfg := &config.Config{
		Address:          "localhost",
		Port:             4443,
		HTTPReadTimeout:  3 * time.Second,
		HTTPWriteTimeout: 4 * time.Second,
		HTTPIdleTimeout:  5 * time.Second,
		ShutdownTimeout:  time.Second,
	}
	handler := handlers.NewAPIHandler(handlers.NewHealthHandler(nil, nil), nil, testLogger())

	srv := New(cfg, testLogger(), handler)

	require.Equal(t, "localhost:4443", srv.httpServer.Addr)
	require.Equal(t, 3*time.Second, srv.httpServer.ReadTimeout)
	require.Equal(t, 4*time.Second, srv.httpServer.WriteTimeout)
	require.Equal(t, 5*time.Second, srv.httpServer.IdleTimeout)
	require.NotNil(t, srv.httpServer.TLSConfig)
	require.Equal(t, uint16(tls.VersionTLS12), srv.httpServer.TLSConfig.MinVersion)
	require.NotNil(t, srv.httpServer.ErrorLog)

	// Shutdown незапущенного сервера завершается без ошибки
	require.NoError(t, srv.Shutdown())
}
