package scheduler

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/booklog/internal/validation"
)

type fakeIntegrityService struct {
	mu          sync.Mutex
	report      *validation.IntegrityReport
	err         error
	checks      int
	checkpoints int
}

func (f *fakeIntegrityService) IntegrityReport(context.Context) (*validation.IntegrityReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.report, f.err
}

func (f *fakeIntegrityService) Checkpoint(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkpoints++
	return nil
}

type fakeSyncer struct {
	ids []int64
}

func (f *fakeSyncer) RequestItemsSync(_ context.Context, ids ...int64) error {
	f.ids = append(f.ids, ids...)
	return nil
}

func TestValidateCronSchedule(t *testing.T) {
	assert.NoError(t, ValidateCronSchedule("0 3 * * *"))
	assert.NoError(t, ValidateCronSchedule("*/15 * * * *"))
	assert.Error(t, ValidateCronSchedule("every night"))
	assert.Error(t, ValidateCronSchedule("0 0 3 * * *"))
}

func TestIntegrityScheduler_RunNowRequestsSync(t *testing.T) {
	svc := &fakeIntegrityService{report: &validation.IntegrityReport{MissingItems: []int64{3, 5}}}
	syncer := &fakeSyncer{}
	s := NewIntegrityScheduler(svc, syncer, "0 3 * * *")

	s.RunNow(context.Background())

	assert.Equal(t, []int64{3, 5}, syncer.ids)
	assert.Equal(t, 1, svc.checkpoints)
	report, err := s.LastReport()
	require.NoError(t, err)
	assert.Same(t, svc.report, report)
}

func TestIntegrityScheduler_RunNowRecordsError(t *testing.T) {
	svc := &fakeIntegrityService{err: errors.New("store unavailable")}
	s := NewIntegrityScheduler(svc, nil, "0 3 * * *")

	s.RunNow(context.Background())

	_, err := s.LastReport()
	assert.EqualError(t, err, "store unavailable")
	assert.Zero(t, svc.checkpoints)
}

func TestIntegrityScheduler_LogsWithComponent(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	s := NewIntegrityScheduler(&fakeIntegrityService{err: errors.New("store unavailable")}, nil, "0 3 * * *")
	s.RunNow(context.Background())

	assert.Contains(t, buf.String(), `"component":"integrity"`)
	assert.Contains(t, buf.String(), "integrity check failed")
}

func TestIntegrityScheduler_StartStop(t *testing.T) {
	s := NewIntegrityScheduler(&fakeIntegrityService{report: &validation.IntegrityReport{}}, nil, "0 3 * * *")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())
	next := s.NextRunTime()
	require.NotNil(t, next)
	assert.Equal(t, 3, next.Hour())
	assert.Equal(t, 0, next.Minute())

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.NextRunTime())
	s.Stop()
}

func TestIntegrityScheduler_StopsOnContextCancel(t *testing.T) {
	s := NewIntegrityScheduler(&fakeIntegrityService{report: &validation.IntegrityReport{}}, nil, "*/5 * * * *")
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return !s.IsRunning() }, 2*time.Second, 10*time.Millisecond)
}

func TestIntegrityScheduler_InvalidSchedule(t *testing.T) {
	s := NewIntegrityScheduler(&fakeIntegrityService{}, nil, "nonsense")

	assert.Error(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}
