// dephealth_test.go — тесты интеграции с topologymetrics и нормализации имён storage nodes.
package service

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bigkaa/goartstore/balancer/internal/domain/model"
	"github.com/bigkaa/goartstore/balancer/internal/storagestub"
)

// stubEndpoint запускает storagestub и возвращает его как зависимость.
func stubEndpoint(t *testing.T, stub *storagestub.Stub) StorageEndpoint {
	t.Helper()
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("Ошибка разбора URL: %v", err)
	}
	addr, err := model.ParseStorageAddress(u.Host)
	if err != nil {
		t.Fatalf("Ошибка разбора адреса: %v", err)
	}
	return StorageEndpoint{Address: addr, BaseURL: srv.URL}
}

// depState ищет состояние зависимости по имени (ключ "имя:host:port").
func depState(health map[string]bool, name string) (ok, found bool) {
	for key, val := range health {
		if strings.HasPrefix(key, name+":") {
			return val, true
		}
	}
	return false, false
}

// healthKeys возвращает ключи карты health для вывода в сообщениях об ошибках.
func healthKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func TestNewDephealthService(t *testing.T) {
	ep := stubEndpoint(t, storagestub.New(testLogger()))

	ds, err := NewDephealthServiceWithRegisterer(
		"balancer-test-01", "cppfs", []StorageEndpoint{ep},
		5*time.Second, false, testLogger(), prometheus.NewRegistry(),
	)
	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}
	if ds == nil {
		t.Fatal("DephealthService nil")
	}
}

func TestDephealthService_StorageStates(t *testing.T) {
	healthy := storagestub.New(testLogger())
	failing := storagestub.New(testLogger())
	failing.SetHealthy(false)

	epOK := stubEndpoint(t, healthy)
	epFail := stubEndpoint(t, failing)

	ds, err := NewDephealthServiceWithRegisterer(
		"balancer-test-02", "cppfs", []StorageEndpoint{epOK, epFail},
		1*time.Second, false, testLogger(), prometheus.NewRegistry(),
	)
	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ds.Start(ctx); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}

	// Даём время на первую проверку (интервал 1s + запас)
	time.Sleep(3 * time.Second)

	health := ds.Health()
	if len(health) != 2 {
		t.Fatalf("ожидалось 2 зависимости, keys=%v", healthKeys(health))
	}

	okName := normalizeStorageDepName(epOK.Address.String())
	if ok, found := depState(health, okName); !found {
		t.Errorf("нет записи для %s в Health(), keys=%v", okName, healthKeys(health))
	} else if !ok {
		t.Errorf("%s: health = false, ожидалось true", okName)
	}

	failName := normalizeStorageDepName(epFail.Address.String())
	if ok, found := depState(health, failName); !found {
		t.Errorf("нет записи для %s в Health(), keys=%v", failName, healthKeys(health))
	} else if ok {
		t.Errorf("%s: health = true, ожидалось false (storage node отвечает 503)", failName)
	}

	// Stop не должен паниковать
	ds.Stop()
}

func TestNormalizeStorageDepName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "se-1.local:8443", want: "se-1-local-8443"},
		{input: "Storage.Example.COM:443", want: "storage-example-com-443"},
		{input: "10.0.0.1:8443", want: "se-10-0-0-1-8443"},
		{input: "[::1]:8443", want: "se-1-8443"},
		{input: "::", want: "unknown-se"},
		{input: "a--b__c:1", want: "a-b-c-1"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalizeStorageDepName(tt.input); got != tt.want {
				t.Errorf("normalizeStorageDepName(%q) = %q, ожидалось %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeStorageDepName_MaxLength(t *testing.T) {
	long := "storage-node-with-a-very-long-host-name-that-exceeds-the-label-limit.example.com:8443"
	got := normalizeStorageDepName(long)
	if len(got) > maxDepNameLen {
		t.Errorf("длина имени %d превышает %d", len(got), maxDepNameLen)
	}
	if got[len(got)-1] == '-' {
		t.Errorf("имя не должно заканчиваться дефисом: %q", got)
	}
}
