package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/mosaichq/license-api/internal/config"
	"github.com/mosaichq/license-api/internal/service"
	"github.com/mosaichq/license-api/internal/tasks"
	"go.uber.org/zap"
)

// RunWorkers runs the asynq server and scheduler until ctx is canceled.
func RunWorkers(ctx context.Context, cfg *config.Config, stats *service.StatsService, logger *zap.Logger) error {
	redisConnOpts := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	srv := asynq.NewServer(
		redisConnOpts,
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Named("AsynqServerErrorHandler").Error("Asynq task processing failed",
					zap.String("task_type", task.Type()),
					zap.Error(err),
				)
			}),
			Logger: NewAsynqLoggerAdapter(logger.Named("AsynqServer")),
		},
	)

	mux := asynq.NewServeMux()

	statsHandler := tasks.NewStatsRefreshHandler(stats, logger)
	mux.HandleFunc(tasks.TypeStatsRefresh, statsHandler.ProcessTask)

	scheduler := asynq.NewScheduler(
		redisConnOpts,
		&asynq.SchedulerOpts{
			Logger: NewAsynqLoggerAdapter(logger.Named("AsynqScheduler")),
		},
	)

	statsTask, err := tasks.NewStatsRefreshTask()
	if err != nil {
		return fmt.Errorf("scheduler task creation error: %w", err)
	}

	entryID, err := scheduler.Register("@every 1h", statsTask)
	if err != nil {
		return fmt.Errorf("scheduler registration error: %w", err)
	}
	logger.Info("Registered periodic stats refresh", zap.String("entry_id", entryID), zap.String("schedule", "@every 1h"))

	errChan := make(chan error, 2)

	go func() {
		logger.Info("Starting Asynq Server...")
		if err := srv.Run(mux); err != nil {
			errChan <- fmt.Errorf("asynq server error: %w", err)
		}
	}()

	go func() {
		logger.Info("Starting Asynq Scheduler...")
		if err := scheduler.Run(); err != nil {
			errChan <- fmt.Errorf("asynq scheduler error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		scheduler.Shutdown()
		srv.Shutdown()
		return err
	case <-ctx.Done():
		logger.Info("Shutting down Asynq Scheduler and Server...")
		scheduler.Shutdown()
		srv.Shutdown()
		logger.Info("Asynq components stopped.")
		return nil
	}
}

type asynqLoggerAdapter struct {
	logger *zap.Logger
}

func NewAsynqLoggerAdapter(logger *zap.Logger) *asynqLoggerAdapter {
	return &asynqLoggerAdapter{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

func (l *asynqLoggerAdapter) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}
func (l *asynqLoggerAdapter) Fatal(args ...interface{}) {
	l.logger.Fatal(fmt.Sprint(args...))
}
