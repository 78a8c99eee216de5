package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/nano-midea/notifications/internal/models"
	"github.com/anonto42/nano-midea/notifications/pkg/config"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Handler routes a decoded event
type Handler interface {
	Handle(ctx context.Context, event models.Event) (models.Result, error)
}

// Server runs the job workers. Retries, backoff and acknowledgement belong to asynq.
type Server struct {
	srv *asynq.Server
	mux *asynq.ServeMux
	log zerolog.Logger
}

func NewServer(cfg config.JobsConfig, handler Handler, log zerolog.Logger) *Server {
	log = log.With().Str("component", "jobs_server").Logger()
	srv := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{QueueName: 1},
		Logger:      &asynqLogger{log: log},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Warn().Err(err).Str("task", task.Type()).Int("retry", retried).Int("max_retry", maxRetry).Msg("job failed")
		}),
	})
	return &Server{srv: srv, mux: NewServeMux(handler, log), log: log}
}

// NewServeMux registers one handler per known job name plus a fallback for
// unknown names under the notification prefix
func NewServeMux(handler Handler, log zerolog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	for _, t := range models.KnownEventTypes {
		mux.HandleFunc(TaskName(t), eventHandler(handler))
	}
	mux.HandleFunc(TaskPrefix, func(ctx context.Context, task *asynq.Task) error {
		log.Warn().Str("task", task.Type()).Msg("no handler for job, dropping")
		return nil
	})
	return mux
}

func eventHandler(handler Handler) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		event, err := decodeEvent(task)
		if err != nil {
			return err
		}
		res, err := handler.Handle(ctx, event)
		if errors.Is(err, models.ErrInvalidEvent) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		if err != nil {
			return err
		}
		if !res.OK() {
			return fmt.Errorf("%s produced no result", task.Type())
		}
		return nil
	}
}

func (s *Server) Start() error {
	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("failed to start job server: %w", err)
	}
	s.log.Info().Msg("job server started")
	return nil
}

func (s *Server) Shutdown() {
	s.srv.Shutdown()
	s.log.Info().Msg("job server stopped")
}

// asynqLogger adapts zerolog to asynq.Logger
type asynqLogger struct {
	log zerolog.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
