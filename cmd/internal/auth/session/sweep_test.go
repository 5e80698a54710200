package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Flugers27/Memory-book/cmd/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpirer struct {
	n     int64
	err   error
	calls int
}

func (f *fakeExpirer) DeleteExpired(context.Context) (int64, error) {
	f.calls++
	return f.n, f.err
}

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSweeper_SweepOnce(t *testing.T) {
	m := telemetry.NewMetrics()
	target := &fakeExpirer{n: 3}
	w, err := NewSweeper(target, "", quietLog(), m)
	require.NoError(t, err)

	n, err := w.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.InDelta(t, 3, testutil.ToFloat64(m.SessionsSwept), 0)

	target.err = errors.New("db down")
	_, err = w.SweepOnce(context.Background())
	assert.Error(t, err)
	assert.InDelta(t, 3, testutil.ToFloat64(m.SessionsSwept), 0)
}

func TestNewSweeper_BadSchedule(t *testing.T) {
	_, err := NewSweeper(&fakeExpirer{}, "every tuesday-ish", quietLog(), nil)
	assert.Error(t, err)
}

func TestSweeper_RunStopsWithContext(t *testing.T) {
	w, err := NewSweeper(&fakeExpirer{}, "@every 1h", quietLog(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
