// Пакет seclient — HTTP-клиент для взаимодействия с storage nodes.
// Поддерживает TLS с кастомным CA (BL_STORAGE_CA_CERT) и self-signed сертификаты.
// Операции: Ping (GET /ping), CreateClient (POST /create_client).
package seclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/balancer/internal/domain/model"
)

// pongBody — ожидаемый ответ storage node на /ping.
const pongBody = "pong"

// maxPingBody — ограничение на чтение тела ответа /ping.
const maxPingBody = 64

var (
	// ErrUnexpectedStatus — storage node вернул статус, отличный от 200.
	ErrUnexpectedStatus = errors.New("неожиданный HTTP-статус storage node")
	// ErrUnexpectedBody — storage node вернул некорректное тело ответа.
	ErrUnexpectedBody = errors.New("некорректный ответ storage node")
)

// createClientRequest — тело запроса POST /create_client.
type createClientRequest struct {
	ClientID string `json:"clientId"`
}

// createClientResponse — ответ storage node на POST /create_client.
type createClientResponse struct {
	UUID string `json:"uuid"`
}

// Client — HTTP-клиент для storage nodes.
type Client struct {
	httpClient *http.Client
	scheme     string
	logger     *slog.Logger
}

// Options — параметры подключения к storage nodes.
type Options struct {
	// Scheme — https или http
	Scheme string
	// CACertPath — путь к CA-сертификату (пустая строка — системный пул)
	CACertPath string
	// TLSSkipVerify — не проверять сертификат storage node
	TLSSkipVerify bool
}

// New создаёт клиент storage nodes.
// Таймауты отдельных вызовов задаются через context вызывающей стороны.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	scheme := opts.Scheme
	if scheme == "" {
		scheme = "https"
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	if scheme == "https" && (opts.CACertPath != "" || opts.TLSSkipVerify) {
		tlsConfig, err := buildTLSConfig(opts.CACertPath, opts.TLSSkipVerify)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата storage nodes: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
		if opts.CACertPath != "" {
			logger.Info("CA-сертификат storage nodes добавлен в пул доверия",
				slog.String("ca_cert", opts.CACertPath),
			)
		}
	}

	return &Client{
		httpClient: httpClient,
		scheme:     scheme,
		logger:     logger.With(slog.String("component", "se_client")),
	}, nil
}

// NewWithHTTPClient создаёт клиент с готовым http.Client.
// Используется в тестах с httptest.NewTLSServer.
func NewWithHTTPClient(httpClient *http.Client, scheme string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		scheme:     scheme,
		logger:     logger.With(slog.String("component", "se_client")),
	}
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA.
func buildTLSConfig(caCertPath string, skipVerify bool) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: skipVerify, //nolint:gosec // Dev-среда: self-signed сертификаты
	}

	if caCertPath == "" {
		return cfg, nil
	}

	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("файл %s не содержит PEM-сертификатов", caCertPath)
	}
	cfg.RootCAs = caCertPool

	return cfg, nil
}

// BaseURL возвращает базовый URL storage node.
func (c *Client) BaseURL(addr model.StorageAddress) string {
	return c.scheme + "://" + addr.String()
}

// Ping проверяет доступность storage node (GET /ping).
// Возвращает nil только при статусе 200 и теле "pong".
func (c *Client) Ping(ctx context.Context, addr model.StorageAddress) error {
	reqURL := c.BaseURL(addr) + "/ping"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("создание запроса Ping: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос Ping к %s: %w", addr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPingBody+1))
	if err != nil {
		return fmt.Errorf("чтение ответа Ping от %s: %w", addr, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s вернул %d", ErrUnexpectedStatus, addr, resp.StatusCode)
	}

	if len(body) > maxPingBody {
		return fmt.Errorf("%w: %s ответил на ping длиннее %d байт", ErrUnexpectedBody, addr, maxPingBody)
	}

	if strings.TrimSpace(string(body)) != pongBody {
		return fmt.Errorf("%w: %s ответил на ping %q", ErrUnexpectedBody, addr, string(body))
	}

	return nil
}

// CreateClient регистрирует клиента на storage node (POST /create_client).
// Возвращает uuid, выданный storage node.
func (c *Client) CreateClient(ctx context.Context, addr model.StorageAddress, clientID string) (string, error) {
	reqURL := c.BaseURL(addr) + "/create_client"

	payload, err := json.Marshal(createClientRequest{ClientID: clientID})
	if err != nil {
		return "", fmt.Errorf("сериализация запроса CreateClient: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("создание запроса CreateClient: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("запрос CreateClient к %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%w: %s CreateClient вернул %d: %s",
			ErrUnexpectedStatus, addr, resp.StatusCode, string(body))
	}

	var created createClientResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("%w: декодирование CreateClient от %s: %w", ErrUnexpectedBody, addr, err)
	}

	if created.UUID == "" {
		return "", fmt.Errorf("%w: %s не вернул uuid", ErrUnexpectedBody, addr)
	}

	c.logger.Debug("Клиент создан на storage node",
		slog.String("storage", addr.String()),
		slog.String("client_id", clientID),
		slog.String("uuid", created.UUID),
	)

	return created.UUID, nil
}
