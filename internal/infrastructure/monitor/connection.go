package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Probe reports whether a dependency is reachable.
type Probe func(ctx context.Context) error

// SizeFunc reports the current outbox backlog.
type SizeFunc func() (int, error)

type Monitor struct {
	probes map[string]Probe
	outbox SizeFunc

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		probes:   make(map[string]Probe),
		interval: interval,
		timeout:  3 * time.Second,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// Watch registers a named dependency. Register before Start.
func (m *Monitor) Watch(name string, probe Probe) *Monitor {
	if probe != nil {
		m.probes[name] = probe
	}
	return m
}

// WatchOutbox registers the backlog gauge reported alongside the probes.
func (m *Monitor) WatchOutbox(size SizeFunc) *Monitor {
	m.outbox = size
	return m
}

// PostgresProbe pings a pgx pool.
func PostgresProbe(pool *pgxpool.Pool) Probe {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}

// RedisProbe pings a redis client.
func RedisProbe(client *redislib.Client) Probe {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether every watched dependency answered the last check.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Healthy()
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.clone()
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh()
	for {
		select {
		case <-ticker.C:
			m.Refresh()
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every probe once and stores the result.
func (m *Monitor) Refresh() {
	names := make([]string, 0, len(m.probes))
	for name := range m.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	status := Status{
		Components: make(map[string]Component, len(names)),
		LastCheck:  time.Now().UTC(),
	}
	for _, name := range names {
		status.Components[name] = m.check(name, m.probes[name])
	}
	if m.outbox != nil {
		size, err := m.outbox()
		if err != nil {
			m.logger.Warn("outbox size check failed", zap.Error(err))
		}
		status.Outbox = &OutboxStatus{Online: err == nil, Size: size}
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *Monitor) check(name string, probe Probe) Component {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if err := probe(ctx); err != nil {
		m.logger.Warn("dependency unhealthy", zap.String("component", name), zap.Error(err))
		return Component{Online: false, Error: err.Error()}
	}
	return Component{Online: true}
}
