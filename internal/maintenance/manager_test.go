package maintenance

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	return 3, p.err
}

type countingRelinker struct {
	calls atomic.Int32
}

func (r *countingRelinker) RelinkOrphans(context.Context) (int, error) {
	r.calls.Add(1)
	return 1, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestManager_RunOnce(t *testing.T) {
	purger := &countingPurger{err: errors.New("database is locked")}
	relinker := &countingRelinker{}
	m := NewManager(Config{Logger: quietLogger()}, purger, relinker)

	m.RunOnce(context.Background())

	assert.Equal(t, int32(1), purger.calls.Load())
	assert.Equal(t, int32(1), relinker.calls.Load(), "a purge failure does not skip relinking")
}

func TestManager_TicksUntilShutdown(t *testing.T) {
	purger := &countingPurger{}
	relinker := &countingRelinker{}
	m := NewManager(Config{Interval: 5 * time.Millisecond, Logger: quietLogger()}, purger, relinker)

	require.NoError(t, m.Start(context.Background()))
	require.Error(t, m.Start(context.Background()))

	require.Eventually(t, func() bool {
		return purger.calls.Load() >= 2 && relinker.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	m.Shutdown()
	stopped := purger.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, purger.calls.Load())
}

func TestManager_NilDependencies(t *testing.T) {
	m := NewManager(Config{Logger: quietLogger()}, nil, nil)
	assert.NotPanics(t, func() { m.RunOnce(context.Background()) })
	m.Shutdown()
}
