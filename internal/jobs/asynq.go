package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

const taskTimeout = 3 * time.Hour

// AsynqQueue enqueues runs in Redis and serves them in-process.
type AsynqQueue struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	logger zerolog.Logger
}

func NewAsynqQueue(redisAddr string, concurrency int, runner *Runner, logger zerolog.Logger) *AsynqQueue {
	if concurrency <= 0 {
		concurrency = 1
	}
	logger = logger.With().Str("component", "asynq").Logger()
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Logger:      asynqLogger{logger},
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskGenerateClips, runner)
	return &AsynqQueue{
		client: asynq.NewClient(redisOpt),
		server: server,
		mux:    mux,
		logger: logger,
	}
}

func newGenerateTask(p GeneratePayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TaskGenerateClips, data,
		asynq.TaskID(p.RunID),
		asynq.MaxRetry(0),
		asynq.Timeout(taskTimeout),
	), nil
}

func (q *AsynqQueue) Dispatch(ctx context.Context, p GeneratePayload) error {
	task, err := newGenerateTask(p)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	q.logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Msg("task enqueued")
	return nil
}

func (q *AsynqQueue) Start(context.Context) error {
	q.logger.Info().Msg("job queue worker starting")
	return q.server.Start(q.mux)
}

func (q *AsynqQueue) Stop() {
	q.server.Shutdown()
	if err := q.client.Close(); err != nil {
		q.logger.Warn().Err(err).Msg("close asynq client")
	}
}

// asynqLogger routes asynq's logs through zerolog.
type asynqLogger struct{ l zerolog.Logger }

func (a asynqLogger) Debug(args ...any) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...any) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal().Msg(fmt.Sprint(args...)) }

var (
	_ Dispatcher    = (*AsynqQueue)(nil)
	_ Dispatcher    = (*LocalQueue)(nil)
	_ asynq.Handler = (*Runner)(nil)
)
