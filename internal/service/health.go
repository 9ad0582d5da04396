// health.go — фоновая проверка доступности storage nodes.
//
// Каждый обход (Sweep):
//  1. Снимает снимок всех storage nodes из пула
//  2. Выполняет ровно один ping для каждого (параллельно, с ограничением)
//  3. Переводит active → inactive при неудаче и inactive → active при успехе
//
// Ping выполняется вне мьютекса пула; каждый переход — отдельная короткая
// критическая секция. Обходы не пересекаются между собой.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/goartstore/balancer/internal/domain/model"
)

// Prometheus метрики health monitor
var (
	// healthSweepsTotal — количество обходов storage nodes.
	healthSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bl_health_sweeps_total",
		Help: "Общее количество обходов storage nodes",
	})

	// healthSweepDuration — длительность обхода.
	healthSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bl_health_sweep_duration_seconds",
		Help:    "Длительность обхода storage nodes в секундах",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	// storageTransitionsTotal — переходы между active и inactive.
	storageTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bl_storage_transitions_total",
		Help: "Количество переходов storage nodes между active и inactive",
	}, []string{"direction"})

	// storagesGauge — текущее число storage nodes по состоянию.
	storagesGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bl_storages",
		Help: "Текущее количество storage nodes по состоянию",
	}, []string{"state"})
)

// Prober — проверка доступности одного storage node.
type Prober interface {
	Ping(ctx context.Context, addr model.StorageAddress) error
}

// Partition — разбиение storage nodes, которым управляет HealthMonitor.
type Partition interface {
	Records() []model.StorageRecord
	SetReachable(addr model.StorageAddress, ok bool) bool
	Counts() (active, inactive int)
}

// SweepResult — результат одного обхода.
type SweepResult struct {
	// Probed — количество проверенных storage nodes
	Probed int
	// Activated — переведены inactive → active
	Activated int
	// Deactivated — переведены active → inactive
	Deactivated int
	// Duration — длительность обхода
	Duration time.Duration
}

// HealthMonitor — периодическая проверка доступности storage nodes.
type HealthMonitor struct {
	partition     Partition
	prober        Prober
	interval      time.Duration
	probeTimeout  time.Duration
	maxConcurrent int
	logger        *slog.Logger

	sweepMu sync.Mutex // обходы выполняются строго последовательно

	cancel context.CancelFunc
	done   chan struct{}
}

// NewHealthMonitor создаёт health monitor.
// maxConcurrent ограничивает число одновременных ping в одном обходе.
func NewHealthMonitor(
	partition Partition,
	prober Prober,
	interval time.Duration,
	probeTimeout time.Duration,
	maxConcurrent int,
	logger *slog.Logger,
) *HealthMonitor {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &HealthMonitor{
		partition:     partition,
		prober:        prober,
		interval:      interval,
		probeTimeout:  probeTimeout,
		maxConcurrent: maxConcurrent,
		logger:        logger.With(slog.String("component", "health_monitor")),
	}
}

// Start выполняет стартовый обход синхронно и запускает фоновую горутину
// с периодическим тикером. Вызывается один раз при старте приложения.
func (h *HealthMonitor) Start(ctx context.Context) {
	h.Sweep(ctx)

	monCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})

	go h.run(monCtx)

	h.logger.Info("Health monitor запущен",
		slog.String("interval", h.interval.String()),
		slog.String("probe_timeout", h.probeTimeout.String()),
	)
}

// Stop останавливает фоновый процесс и дожидается завершения текущего обхода.
func (h *HealthMonitor) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.done
	h.cancel = nil
	h.logger.Info("Health monitor остановлен")
}

// run — основной цикл фоновой горутины.
func (h *HealthMonitor) run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Sweep(ctx)
		}
	}
}

// Probe выполняет один ping с ограничением по времени.
// Любая ошибка (сеть, таймаут, статус, тело) означает недоступность.
func (h *HealthMonitor) Probe(ctx context.Context, addr model.StorageAddress) bool {
	probeCtx, cancel := context.WithTimeout(ctx, h.probeTimeout)
	defer cancel()

	if err := h.prober.Ping(probeCtx, addr); err != nil {
		h.logger.Debug("Ping неуспешен",
			slog.String("storage", addr.String()),
			slog.String("error", fmt.Errorf("%w: %w", ErrBackendUnreachable, err).Error()),
		)
		return false
	}
	return true
}

// Sweep выполняет один обход всех известных storage nodes.
// Каждый storage node проверяется ровно один раз, ошибка одного
// не прерывает обход остальных.
func (h *HealthMonitor) Sweep(ctx context.Context) *SweepResult {
	h.sweepMu.Lock()
	defer h.sweepMu.Unlock()

	start := time.Now()
	records := h.partition.Records()
	reachable := make([]bool, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.maxConcurrent)
	for i, rec := range records {
		g.Go(func() error {
			reachable[i] = h.Probe(gctx, rec.Address)
			return nil
		})
	}
	_ = g.Wait() // Probe не возвращает ошибок

	result := &SweepResult{Probed: len(records)}

	// Обход прерван остановкой: результаты ping недостоверны
	if ctx.Err() != nil {
		result.Duration = time.Since(start)
		return result
	}

	for i, rec := range records {
		if !h.partition.SetReachable(rec.Address, reachable[i]) {
			continue
		}
		if reachable[i] {
			result.Activated++
			storageTransitionsTotal.WithLabelValues("activated").Inc()
			h.logger.Info("Storage node снова доступен",
				slog.String("storage", rec.Address.String()),
			)
		} else {
			result.Deactivated++
			storageTransitionsTotal.WithLabelValues("deactivated").Inc()
			h.logger.Warn("Storage node недоступен, исключён из назначения",
				slog.String("storage", rec.Address.String()),
			)
		}
	}

	result.Duration = time.Since(start)

	active, inactive := h.partition.Counts()
	healthSweepsTotal.Inc()
	healthSweepDuration.Observe(result.Duration.Seconds())
	storagesGauge.WithLabelValues("active").Set(float64(active))
	storagesGauge.WithLabelValues("inactive").Set(float64(inactive))

	h.logger.Debug("Обход storage nodes завершён",
		slog.Int("probed", result.Probed),
		slog.Int("activated", result.Activated),
		slog.Int("deactivated", result.Deactivated),
		slog.Int("active", active),
		slog.Int("inactive", inactive),
		slog.Duration("duration", result.Duration),
	)

	return result
}
