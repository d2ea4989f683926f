package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/mrlokans/booklog/internal/logger"
	"github.com/mrlokans/booklog/internal/services"
	"github.com/mrlokans/booklog/internal/validation"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronSchedule checks a five-field cron expression.
func ValidateCronSchedule(schedule string) error {
	_, err := cronParser.Parse(schedule)
	return err
}

// IntegrityService is the part of services.DatabaseService the scheduler drives.
type IntegrityService interface {
	IntegrityReport(ctx context.Context) (*validation.IntegrityReport, error)
	Checkpoint(ctx context.Context) error
}

// IntegrityScheduler periodically compares both stores, requests an items
// sync for books missing their items row and checkpoints the WAL files.
type IntegrityScheduler struct {
	service  IntegrityService
	syncer   services.ItemsSyncer
	schedule string
	timeout  time.Duration
	log      zerolog.Logger

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isChecking bool
	lastReport *validation.IntegrityReport
	lastError  error
}

// NewIntegrityScheduler creates a scheduler. syncer may be nil, in which
// case missing items rows are only reported.
func NewIntegrityScheduler(service IntegrityService, syncer services.ItemsSyncer, schedule string) *IntegrityScheduler {
	return &IntegrityScheduler{
		service:  service,
		syncer:   syncer,
		schedule: schedule,
		timeout:  10 * time.Minute,
		log:      logger.WithComponent("integrity"),
		cron:     cron.New(cron.WithParser(cronParser)),
	}
}

// Start schedules the check. It stops on its own when ctx is cancelled.
func (s *IntegrityScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if err := ValidateCronSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.RunNow(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule integrity job: %w", err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.isRunning = true
	s.log.Info().Str("schedule", s.schedule).Time("next_run", s.cron.Entry(entryID).Next).Msg("integrity scheduler started")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop waits for a running check to finish.
func (s *IntegrityScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	entryID := s.entryID
	s.mu.Unlock()

	// A running job takes s.mu, so wait without holding it.
	<-s.cron.Stop().Done()
	s.cron.Remove(entryID)
	s.log.Info().Msg("integrity scheduler stopped")
}

// IsRunning returns whether the scheduler is active
func (s *IntegrityScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next check will occur, or nil when stopped.
func (s *IntegrityScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	next := s.cron.Entry(s.entryID).Next
	return &next
}

// LastReport returns the outcome of the most recent check.
func (s *IntegrityScheduler) LastReport() (*validation.IntegrityReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport, s.lastError
}

// RunNow runs one check synchronously. Overlapping runs are skipped.
func (s *IntegrityScheduler) RunNow(ctx context.Context) {
	s.mu.Lock()
	if s.isChecking {
		s.mu.Unlock()
		s.log.Info().Msg("integrity check skipped, already running")
		return
	}
	s.isChecking = true
	s.mu.Unlock()

	report, err := s.check(ctx)

	s.mu.Lock()
	s.isChecking = false
	s.lastReport, s.lastError = report, err
	s.mu.Unlock()
}

func (s *IntegrityScheduler) check(ctx context.Context) (*validation.IntegrityReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report, err := s.service.IntegrityReport(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("integrity check failed")
		return nil, err
	}

	if len(report.MissingItems) > 0 && s.syncer != nil {
		if err := s.syncer.RequestItemsSync(ctx, report.MissingItems...); err != nil {
			s.log.Error().Err(err).Msg("failed to request items sync after integrity check")
		}
	}

	if err := s.service.Checkpoint(ctx); err != nil {
		s.log.Warn().Err(err).Msg("wal checkpoint failed")
	}
	return report, nil
}
