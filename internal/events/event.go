// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"backoffice_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewBaseEventAt = events.NewBaseEventAt
)

const (
	NamePipelineCreated        = "pipeline.created"
	NamePipelineUpdated        = "pipeline.updated"
	NamePipelineStageChanged   = "pipeline.stage_changed"
	NamePipelineDueDateReached = "pipeline.due_date_reached"
)

// DueDate is a deadline carried by a stage entity referenced from a pipeline.
type DueDate struct {
	Stage    string    `json:"stage"`
	EntityID uuid.UUID `json:"entityId"`
	DueAt    time.Time `json:"dueAt"`
}

// =============================================================================
// Pipeline Domain Events
// =============================================================================

// PipelineCreated is published after a pipeline and its stage entities are committed.
type PipelineCreated struct {
	BaseEvent
	PipelineID   uuid.UUID `json:"pipelineId"`
	RegNumber    string    `json:"regNumber"`
	Category     string    `json:"category"`
	CurrentStage string    `json:"currentStage,omitempty"`
	ActorID      uuid.UUID `json:"actorId"`
	DueDates     []DueDate `json:"dueDates,omitempty"`
}

func (e PipelineCreated) EventName() string { return NamePipelineCreated }

// PipelineUpdated is published after a non-transition update is committed.
type PipelineUpdated struct {
	BaseEvent
	PipelineID   uuid.UUID `json:"pipelineId"`
	Mode         string    `json:"mode,omitempty"`
	CurrentStage string    `json:"currentStage,omitempty"`
	ActorID      uuid.UUID `json:"actorId"`
	DueDates     []DueDate `json:"dueDates,omitempty"`
}

func (e PipelineUpdated) EventName() string { return NamePipelineUpdated }

// PipelineStageChanged is published after a PROGRESS or REGRESS is committed.
type PipelineStageChanged struct {
	BaseEvent
	PipelineID uuid.UUID `json:"pipelineId"`
	Action     string    `json:"action"`
	FromStage  string    `json:"fromStage,omitempty"`
	ToStage    string    `json:"toStage,omitempty"`
	ActorID    uuid.UUID `json:"actorId"`
	DueDates   []DueDate `json:"dueDates,omitempty"`
}

func (e PipelineStageChanged) EventName() string { return NamePipelineStageChanged }

// PipelineDueDateReached is published by the scheduler worker when a stage
// entity that is still referenced by its pipeline hits its due date.
type PipelineDueDateReached struct {
	BaseEvent
	PipelineID uuid.UUID `json:"pipelineId"`
	Stage      string    `json:"stage"`
	EntityID   uuid.UUID `json:"entityId"`
	RegNumber  string    `json:"regNumber"`
	DueAt      time.Time `json:"dueAt"`
}

func (e PipelineDueDateReached) EventName() string { return NamePipelineDueDateReached }
