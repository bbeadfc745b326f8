package scheduler

import (
	"context"
	"time"

	"backoffice_backend/internal/events"
	"backoffice_backend/internal/pipeline/domain"
	"backoffice_backend/internal/pipeline/repository"
	"backoffice_backend/platform/logger"

	"github.com/google/uuid"
)

// DueReminders turns pipeline events into scheduled due-date reminders.
type DueReminders struct {
	scheduler ReminderScheduler
	log       *logger.Logger
	now       func() time.Time
}

func NewDueReminders(scheduler ReminderScheduler, log *logger.Logger) *DueReminders {
	return &DueReminders{scheduler: scheduler, log: log, now: time.Now}
}

// RegisterHandlers subscribes to the pipeline events that carry due dates,
// plus a log line for every reminder that fires.
func (d *DueReminders) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.NamePipelineCreated, events.HandlerFunc(d.handle))
	bus.Subscribe(events.NamePipelineUpdated, events.HandlerFunc(d.handle))
	bus.Subscribe(events.NamePipelineStageChanged, events.HandlerFunc(d.handle))
	bus.Subscribe(events.NamePipelineDueDateReached, events.HandlerFunc(d.logReached))
}

func (d *DueReminders) handle(ctx context.Context, event events.Event) error {
	if d.scheduler == nil {
		return nil
	}

	var (
		pipelineID uuid.UUID
		dueDates   []events.DueDate
	)
	switch e := event.(type) {
	case events.PipelineCreated:
		pipelineID, dueDates = e.PipelineID, e.DueDates
	case events.PipelineUpdated:
		pipelineID, dueDates = e.PipelineID, e.DueDates
	case events.PipelineStageChanged:
		pipelineID, dueDates = e.PipelineID, e.DueDates
	default:
		return nil
	}

	now := d.now()
	for _, due := range dueDates {
		if !due.DueAt.After(now) {
			continue
		}
		payload := DueReminderPayload{
			PipelineID: pipelineID.String(),
			Stage:      due.Stage,
			EntityID:   due.EntityID.String(),
			DueAt:      due.DueAt,
		}
		if err := d.scheduler.ScheduleDueReminder(ctx, payload, due.DueAt); err != nil {
			d.log.Error("failed to schedule due reminder", "error", err, "pipelineId", pipelineID, "stage", due.Stage)
			return err
		}
	}
	return nil
}

func (d *DueReminders) logReached(_ context.Context, event events.Event) error {
	e, ok := event.(events.PipelineDueDateReached)
	if !ok {
		return nil
	}
	d.log.Info("pipeline due date reached",
		"pipelineId", e.PipelineID,
		"regNumber", e.RegNumber,
		"stage", e.Stage,
		"entityId", e.EntityID,
		"dueAt", e.DueAt,
	)
	return nil
}

func currentDueDate(p repository.Pipeline, stage domain.Stage) *time.Time {
	switch stage {
	case domain.StageLead:
		if p.Lead != nil {
			return p.Lead.DueDate
		}
	case domain.StageOpportunity:
		if p.Opportunity != nil {
			return p.Opportunity.DueDate
		}
	case domain.StageQuote:
		if p.Quote != nil {
			return p.Quote.DueDate
		}
	}
	return nil
}
