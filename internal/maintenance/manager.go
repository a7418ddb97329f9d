package maintenance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SessionPurger drops expired sessions.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// OrphanRelinker repairs posts missing from their owner's collection.
type OrphanRelinker interface {
	RelinkOrphans(ctx context.Context) (int, error)
}

// Manager runs periodic housekeeping in the background.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	// RunOnce performs a single housekeeping pass synchronously.
	RunOnce(ctx context.Context)
}

type Config struct {
	Interval time.Duration
	Logger   *logrus.Logger
}

type manager struct {
	cfg      Config
	sessions SessionPurger
	orphans  OrphanRelinker

	wg     sync.WaitGroup
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(cfg Config, sessions SessionPurger, orphans OrphanRelinker) Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &manager{
		cfg:      cfg,
		sessions: sessions,
		orphans:  orphans,
	}
}

func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return errors.New("maintenance manager already started")
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.loop()

	m.cfg.Logger.Infof("maintenance manager started, interval: %s", m.cfg.Interval)
	return nil
}

func (m *manager) Shutdown() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.cfg.Logger.Info("maintenance manager stopped")
}

func (m *manager) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.RunOnce(m.ctx)
		}
	}
}

func (m *manager) RunOnce(ctx context.Context) {
	logger := m.cfg.Logger.WithField("component", "maintenance")

	if m.sessions != nil {
		purged, err := m.sessions.PurgeExpired(ctx)
		switch {
		case err != nil:
			logger.Warnf("purge expired sessions: %v", err)
		case purged > 0:
			logger.WithField("count", purged).Info("expired sessions purged")
		}
	}

	if m.orphans != nil {
		relinked, err := m.orphans.RelinkOrphans(ctx)
		switch {
		case err != nil:
			logger.Warnf("relink orphan posts: %v", err)
		case relinked > 0:
			logger.WithField("count", relinked).Info("orphan posts relinked")
		}
	}
}
