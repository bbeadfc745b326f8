package scheduler

import (
	"context"
	"fmt"

	"backoffice_backend/internal/events"
	"backoffice_backend/internal/pipeline/domain"
	"backoffice_backend/internal/pipeline/repository"
	"backoffice_backend/platform/apperr"
	"backoffice_backend/platform/config"
	"backoffice_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// PipelineReader loads a pipeline with its stage entities.
type PipelineReader interface {
	GetPipeline(ctx context.Context, id uuid.UUID) (repository.Pipeline, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	store  PipelineReader
	bus    events.Bus
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, store PipelineReader, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		store:  store,
		bus:    bus,
		log:    log,
	}

	mux.HandleFunc(TaskDueReminder, w.handleDueReminder)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleDueReminder emits PipelineDueDateReached when the entity is still
// referenced by the pipeline and still carries the scheduled due date.
// Regressed, replaced or rescheduled entities are skipped.
func (w *Worker) handleDueReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDueReminderPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	pipelineID, err := uuid.Parse(payload.PipelineID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	entityID, err := uuid.Parse(payload.EntityID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	stage, ok := domain.ParseStage(payload.Stage)
	if !ok {
		return fmt.Errorf("%w: unknown stage %q", asynq.SkipRetry, payload.Stage)
	}

	p, err := w.store.GetPipeline(ctx, pipelineID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}

	ref := p.Refs.Get(stage)
	if ref == nil || *ref != entityID {
		w.log.Debug("due reminder skipped, entity no longer referenced", "pipelineId", pipelineID, "stage", stage)
		return nil
	}
	due := currentDueDate(p, stage)
	if due == nil || !due.Equal(payload.DueAt) {
		w.log.Debug("due reminder skipped, due date changed", "pipelineId", pipelineID, "stage", stage)
		return nil
	}

	if w.bus == nil {
		return nil
	}

	regNumber := ""
	if p.RegNumber != nil {
		regNumber = *p.RegNumber
	}
	return w.bus.PublishSync(ctx, events.PipelineDueDateReached{
		BaseEvent:  events.NewBaseEvent(),
		PipelineID: pipelineID,
		Stage:      string(stage),
		EntityID:   entityID,
		RegNumber:  regNumber,
		DueAt:      payload.DueAt,
	})
}
