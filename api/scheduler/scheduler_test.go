package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReconciler struct {
	calls  atomic.Int32
	err    error
	closed int
}

func (c *countingReconciler) Reconcile(ctx context.Context) (int, error) {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("sweep without deadline")
	}
	return c.closed, c.err
}

func TestStartRunsStartupScan(t *testing.T) {
	r := &countingReconciler{closed: 2}
	s := NewScheduler(r, "@every 1h")

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Equal(t, int32(1), r.calls.Load())
	assert.Len(t, s.cron.Entries(), 1)
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	r := &countingReconciler{}
	s := NewScheduler(r, "every now and then")

	err := s.Start()
	assert.ErrorContains(t, err, "failed to register idle sweep job")
	assert.Zero(t, r.calls.Load())
}

func TestSweepSurvivesReconcileErrors(t *testing.T) {
	r := &countingReconciler{err: errors.New("mongo unavailable")}
	s := NewScheduler(r, "@every 1h")

	s.sweep()
	s.sweep()

	assert.Equal(t, int32(2), r.calls.Load())
}
