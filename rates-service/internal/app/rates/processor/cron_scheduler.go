package processor

import (
	"context"
	"fmt"

	"currencyexchange/pkg/logger"

	"github.com/robfig/cron/v3"
)

// RatesUpdater запускает цикл обновления курсов
type RatesUpdater interface {
	UpdateRates(ctx context.Context) error
}

// CronScheduler выполняет первичное и периодическое обновление курсов
type CronScheduler struct {
	cron    *cron.Cron
	updater RatesUpdater
}

func NewCronScheduler(updater RatesUpdater) *CronScheduler {
	// SkipIfStillRunning: новый запуск пропускается, пока предыдущий цикл не завершился
	logAdapter := cronLogger{}
	c := cron.New(
		cron.WithLogger(logAdapter),
		cron.WithChain(cron.Recover(logAdapter), cron.SkipIfStillRunning(logAdapter)),
	)

	return &CronScheduler{
		cron:    c,
		updater: updater,
	}
}

// Start регистрирует задачу по расписанию и выполняет первичное обновление
func (s *CronScheduler) Start(ctx context.Context, schedule string) error {
	logger.Info().Str("schedule", schedule).Msg("Starting cron scheduler")

	_, err := s.cron.AddFunc(schedule, func() {
		logger.Debug().Msg("Cron job triggered: updating rates")
		s.update(ctx, "scheduled")
	})
	if err != nil {
		return fmt.Errorf("invalid update schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	logger.Info().Msg("Cron scheduler started")

	s.update(ctx, "initial")

	return nil
}

func (s *CronScheduler) update(ctx context.Context, trigger string) {
	if err := s.updater.UpdateRates(ctx); err != nil {
		logger.Warn().Err(err).Str("trigger", trigger).Msg("Rates update failed")
		return
	}
	logger.Info().Str("trigger", trigger).Msg("Rates update completed")
}

func (s *CronScheduler) Stop() {
	logger.Info().Msg("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info().Msg("Cron scheduler stopped")
}

func (s *CronScheduler) GetEntries() []cron.Entry {
	return s.cron.Entries()
}

// cronLogger направляет журнал cron в zerolog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
