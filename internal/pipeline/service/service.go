// Package service orchestrates the pipeline stage engine: it validates
// progression, runs the entity handlers, resolves transitions and shapes
// the responses.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backoffice_backend/internal/events"
	"backoffice_backend/internal/pipeline/domain"
	"backoffice_backend/internal/pipeline/repository"
	"backoffice_backend/internal/pipeline/transport"
	"backoffice_backend/internal/regnumber"
	"backoffice_backend/platform/apperr"
	"backoffice_backend/platform/logger"
	"backoffice_backend/platform/validator"

	"github.com/google/uuid"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service provides pipeline business operations.
type Service struct {
	store repository.Store
	regs  regnumber.Generator
	bus   events.Bus
	val   *validator.Validator
	log   *logger.Logger
	now   func() time.Time
}

// New creates a pipeline service. regs and bus may be nil.
func New(store repository.Store, regs regnumber.Generator, bus events.Bus, val *validator.Validator, log *logger.Logger) *Service {
	return &Service{
		store: store,
		regs:  regs,
		bus:   bus,
		val:   val,
		log:   log,
		now:   time.Now,
	}
}

// Create builds a pipeline together with the stage entities supplied in req.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, req transport.CreatePipelineRequest) (transport.PipelineResponse, error) {
	if err := s.validate(req); err != nil {
		return transport.PipelineResponse{}, err
	}

	payloads := Payloads{Lead: req.Lead, Opportunity: req.Opportunity, Quote: req.Quote, Contract: req.Contract}
	if err := ValidateProgression(nil, payloads); err != nil {
		return transport.PipelineResponse{}, err
	}
	if err := RequireCategory(req.Category); err != nil {
		return transport.PipelineResponse{}, err
	}

	var created repository.Pipeline
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		first, err := tx.FirstStageType(ctx, domain.PipelineModel)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.Validation("No initial stage type found for pipeline")
			}
			return err
		}

		refs, actions, err := s.runChain(ctx, tx, payloads, domain.Refs{})
		if err != nil {
			return err
		}
		if err := checkChain(refs); err != nil {
			return err
		}

		regNumber, err := regnumber.Apply(ctx, s.regs, regnumber.KindPipeline, req.RegNumber)
		if err != nil {
			return err
		}

		stageTypeID := first.ID
		comment := creationComment(actions)
		if req.Stage != nil {
			stageTypeID = req.Stage.StageTypeID
			if req.Stage.Comment != nil && *req.Stage.Comment != "" {
				comment = *req.Stage.Comment
			}
		}

		id, err := tx.CreatePipeline(ctx, repository.CreatePipelineParams{
			RegNumber:   regNumber,
			Category:    strings.TrimSpace(*req.Category),
			Refs:        refs,
			AssigneeID:  req.AssigneeID,
			MemberIDs:   uniqueIDs(req.MemberIDs),
			CreatedByID: actorID,
			StageTypeID: stageTypeID,
			Comment:     &comment,
		})
		if err != nil {
			return err
		}

		created, err = tx.GetPipeline(ctx, id)
		return err
	})
	if err != nil {
		return transport.PipelineResponse{}, err
	}

	current := currentStage(created.Refs)
	s.log.WithContext(ctx).Info("pipeline created", "pipelineId", created.ID, "stage", current)
	s.publish(ctx, events.PipelineCreated{
		BaseEvent:    events.NewBaseEventAt(s.now()),
		PipelineID:   created.ID,
		RegNumber:    deref(created.RegNumber),
		Category:     created.Category,
		CurrentStage: string(current),
		ActorID:      actorID,
		DueDates:     dueDates(created),
	})

	return ToResponse(created), nil
}

// Update edits a pipeline. With a transition it moves the pipeline along the
// stage chain; with a mode it runs only that stage's handler; otherwise it
// runs every handler in stage order.
func (s *Service) Update(ctx context.Context, actorID, id uuid.UUID, req transport.UpdatePipelineRequest) (transport.PipelineResponse, error) {
	if err := s.validate(req); err != nil {
		return transport.PipelineResponse{}, err
	}
	if req.Transition != nil {
		return s.transition(ctx, actorID, id, req)
	}

	payloads := payloadsOfUpdate(req)
	var updated repository.Pipeline
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		existing, err := tx.LockPipeline(ctx, id)
		if err != nil {
			return err
		}
		if err := ValidateProgression(&existing.Refs, payloads); err != nil {
			return err
		}

		var refs domain.Refs
		if req.Mode != nil {
			refs, err = s.runSingle(ctx, tx, domain.Stage(*req.Mode), payloads, existing.Refs)
		} else {
			refs, _, err = s.runChain(ctx, tx, payloads, existing.Refs)
		}
		if err != nil {
			return err
		}
		if err := checkChain(refs); err != nil {
			return err
		}

		params := repository.UpdatePipelineParams{ID: id, Refs: refs, UpdatedByID: actorID}
		if req.Category != nil && strings.TrimSpace(*req.Category) != "" {
			category := strings.TrimSpace(*req.Category)
			params.Category = &category
		}
		if req.AssigneeID.Set {
			params.AssigneeSet = true
			params.AssigneeID = req.AssigneeID.Value
		}
		if req.MemberIDs != nil {
			params.MemberIDs = uniqueIDs(req.MemberIDs)
		}
		if err := tx.UpdatePipeline(ctx, params); err != nil {
			return err
		}

		if req.Stage != nil {
			if err := tx.AppendStage(ctx, repository.AppendStageParams{
				PipelineID:  id,
				StageTypeID: req.Stage.StageTypeID,
				Comment:     req.Stage.Comment,
				CreatedByID: actorID,
			}); err != nil {
				return err
			}
		}

		updated, err = tx.GetPipeline(ctx, id)
		return err
	})
	if err != nil {
		return transport.PipelineResponse{}, err
	}

	current := currentStage(updated.Refs)
	mode := ""
	if req.Mode != nil {
		mode = *req.Mode
	}
	s.log.WithContext(ctx).Info("pipeline updated", "pipelineId", id, "mode", mode, "stage", current)
	s.publish(ctx, events.PipelineUpdated{
		BaseEvent:    events.NewBaseEventAt(s.now()),
		PipelineID:   id,
		Mode:         mode,
		CurrentStage: string(current),
		ActorID:      actorID,
		DueDates:     dueDates(updated),
	})

	return ToResponse(updated), nil
}

func (s *Service) transition(ctx context.Context, actorID, id uuid.UUID, req transport.UpdatePipelineRequest) (transport.PipelineResponse, error) {
	var (
		resolved EnrichedUpdate
		updated  repository.Pipeline
	)
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		existing, err := tx.LockPipeline(ctx, id)
		if err != nil {
			return err
		}

		resolved, err = ResolveTransition(existing, req, s.now())
		if err != nil {
			return err
		}
		if _, err := s.applyEnrichedUpdate(ctx, tx, existing, resolved, actorID, req.Stage); err != nil {
			return err
		}

		updated, err = tx.GetPipeline(ctx, id)
		return err
	})
	if err != nil {
		return transport.PipelineResponse{}, err
	}

	to := currentStage(updated.Refs)
	s.log.WithContext(ctx).StageTransition(id.String(), string(resolved.Action), string(resolved.From), string(to))
	if resolved.Changed() {
		s.publish(ctx, events.PipelineStageChanged{
			BaseEvent:  events.NewBaseEventAt(s.now()),
			PipelineID: id,
			Action:     string(resolved.Action),
			FromStage:  string(resolved.From),
			ToStage:    string(to),
			ActorID:    actorID,
			DueDates:   dueDates(updated),
		})
	}

	return ToResponse(updated), nil
}

// GetByID returns the detail projection of a pipeline.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.PipelineResponse, error) {
	p, err := s.store.GetPipeline(ctx, id)
	if err != nil {
		return transport.PipelineResponse{}, err
	}
	return ToResponse(p), nil
}

// List returns a page of pipelines in the list projection.
func (s *Service) List(ctx context.Context, req transport.ListPipelinesRequest) (transport.PipelineListResponse, error) {
	if err := s.validate(req); err != nil {
		return transport.PipelineListResponse{}, err
	}

	page := req.Page
	if page < 1 {
		page = defaultPage
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	params := repository.ListParams{
		Category:  req.Category,
		Stage:     req.Stage,
		Search:    req.Search,
		Offset:    (page - 1) * pageSize,
		Limit:     pageSize,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	if req.AssigneeID != "" {
		id, err := uuid.Parse(req.AssigneeID)
		if err != nil {
			return transport.PipelineListResponse{}, apperr.BadRequest("invalid assigneeId")
		}
		params.AssigneeID = &id
	}
	if req.MemberID != "" {
		id, err := uuid.Parse(req.MemberID)
		if err != nil {
			return transport.PipelineListResponse{}, apperr.BadRequest("invalid memberId")
		}
		params.MemberID = &id
	}

	pipelines, total, err := s.store.ListPipelines(ctx, params)
	if err != nil {
		return transport.PipelineListResponse{}, err
	}

	items := make([]transport.PipelineListItem, 0, len(pipelines))
	for _, p := range pipelines {
		items = append(items, ToListItem(p))
	}

	totalPages := (total + pageSize - 1) / pageSize
	return transport.PipelineListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func (s *Service) validate(req interface{}) error {
	if s.val == nil {
		return nil
	}
	if err := s.val.Struct(req); err != nil {
		return apperr.Validation("validation failed").WithDetails(validator.FieldErrors(err))
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}

func payloadsOfUpdate(req transport.UpdatePipelineRequest) Payloads {
	return Payloads{Lead: req.Lead, Opportunity: req.Opportunity, Quote: req.Quote, Contract: req.Contract}
}

// creationComment summarizes what a create did, e.g.
// "Pipeline created - Lead created, Opportunity created".
func creationComment(actions []stageAction) string {
	if len(actions) == 0 {
		return "Pipeline created"
	}
	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		parts = append(parts, fmt.Sprintf("%s %s", a.Stage.Label(), a.Action))
	}
	return "Pipeline created - " + strings.Join(parts, ", ")
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// dueDates collects the due dates of the referenced entities.
func dueDates(p repository.Pipeline) []events.DueDate {
	var out []events.DueDate
	if p.Lead != nil && p.Lead.DueDate != nil {
		out = append(out, events.DueDate{Stage: string(domain.StageLead), EntityID: p.Lead.ID, DueAt: *p.Lead.DueDate})
	}
	if p.Opportunity != nil && p.Opportunity.DueDate != nil {
		out = append(out, events.DueDate{Stage: string(domain.StageOpportunity), EntityID: p.Opportunity.ID, DueAt: *p.Opportunity.DueDate})
	}
	if p.Quote != nil && p.Quote.DueDate != nil {
		out = append(out, events.DueDate{Stage: string(domain.StageQuote), EntityID: p.Quote.ID, DueAt: *p.Quote.DueDate})
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
