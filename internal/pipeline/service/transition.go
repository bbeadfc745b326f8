package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backoffice_backend/internal/pipeline/domain"
	"backoffice_backend/internal/pipeline/repository"
	"backoffice_backend/internal/pipeline/transport"
	"backoffice_backend/platform/apperr"

	"github.com/google/uuid"
)

const draftDueIn = 30 * 24 * time.Hour

// StageDraft is a stage payload synthesized from the predecessor entity.
// It is one of OpportunityDraft, QuoteDraft or ContractDraft.
type StageDraft interface {
	Stage() domain.Stage
	isDraft()
}

// OpportunityDraft is an opportunity built from the pipeline's lead.
type OpportunityDraft struct{ Input transport.OpportunityInput }

// QuoteDraft is a quote built from the pipeline's opportunity.
type QuoteDraft struct{ Input transport.QuoteInput }

// ContractDraft is a contract built from the pipeline's quote.
type ContractDraft struct{ Input transport.ContractInput }

func (OpportunityDraft) Stage() domain.Stage { return domain.StageOpportunity }
func (QuoteDraft) Stage() domain.Stage       { return domain.StageQuote }
func (ContractDraft) Stage() domain.Stage    { return domain.StageContract }

func (OpportunityDraft) isDraft() {}
func (QuoteDraft) isDraft()       {}
func (ContractDraft) isDraft()    {}

// EnrichedUpdate is a resolved transition, ready to be applied.
type EnrichedUpdate struct {
	Action domain.Action
	Target domain.Stage
	From   domain.Stage

	// Payloads go through the entity handlers on PROGRESS. A draft, when
	// present, is already folded in.
	Payloads Payloads
	Draft    StageDraft

	// Refs are the references to write on REGRESS.
	Refs domain.Refs

	Comment string
}

// Changed reports whether the transition moves the pipeline. A PROGRESS to
// a stage that already exists only runs the remaining payloads.
func (u EnrichedUpdate) Changed() bool {
	return u.Action == domain.ActionRegress || u.Draft != nil
}

// ResolveTransition checks a transition against the pipeline and computes
// what it changes. It does not touch storage.
func ResolveTransition(existing repository.Pipeline, req transport.UpdatePipelineRequest, now time.Time) (EnrichedUpdate, error) {
	if req.Transition == nil {
		return EnrichedUpdate{}, apperr.Validation("transition is required")
	}
	target, ok := domain.ParseStage(req.Transition.TargetStage)
	if !ok {
		return EnrichedUpdate{}, apperr.Validation(fmt.Sprintf("unknown target stage %q", req.Transition.TargetStage))
	}
	from := currentStage(existing.Refs)

	switch domain.Action(req.Transition.Action) {
	case domain.ActionProgress:
		return resolveProgress(existing, req, target, from, now)
	case domain.ActionRegress:
		return resolveRegress(existing, target, from)
	default:
		return EnrichedUpdate{}, apperr.Validation(fmt.Sprintf("unknown transition action %q", req.Transition.Action))
	}
}

func resolveProgress(existing repository.Pipeline, req transport.UpdatePipelineRequest, target, from domain.Stage, now time.Time) (EnrichedUpdate, error) {
	update := EnrichedUpdate{
		Action:   domain.ActionProgress,
		Target:   target,
		From:     from,
		Payloads: payloadsOfUpdate(req),
	}

	if target == domain.StageLead {
		return EnrichedUpdate{}, apperr.IllegalTransition("Cannot progress to Lead - it's the first stage")
	}
	if existing.Refs.Has(target) {
		update.Payloads = update.Payloads.without(target)
		return update, nil
	}

	prev, _ := target.Previous()
	if !existing.Refs.Has(prev) {
		return EnrichedUpdate{}, apperr.IllegalTransition(
			fmt.Sprintf("Cannot progress to %s without %s", target.Label(), prev.WithArticle()))
	}

	draft, err := draftFor(existing, target, now)
	if err != nil {
		return EnrichedUpdate{}, err
	}
	update.Draft = draft
	update.Payloads = withDraft(update.Payloads, draft)
	update.Comment = "Progressed to " + target.Label()
	return update, nil
}

func resolveRegress(existing repository.Pipeline, target, from domain.Stage) (EnrichedUpdate, error) {
	if target == domain.StageContract {
		return EnrichedUpdate{}, apperr.IllegalTransition("Cannot regress to Contract - it's the last stage")
	}
	if existing.Refs.Count() <= 1 {
		return EnrichedUpdate{}, apperr.IllegalTransition("Cannot regress - pipeline has only one stage entity")
	}

	next, _ := target.Next()
	if !existing.Refs.Has(next) {
		return EnrichedUpdate{}, apperr.IllegalTransition(
			fmt.Sprintf("Cannot regress to %s - no %s exists", target.Label(), next.Label()))
	}

	return EnrichedUpdate{
		Action:  domain.ActionRegress,
		Target:  target,
		From:    from,
		Refs:    existing.Refs.ClearAfter(target),
		Comment: "Regressed to " + target.Label(),
	}, nil
}

func draftFor(existing repository.Pipeline, target domain.Stage, now time.Time) (StageDraft, error) {
	due := now.Add(draftDueIn)

	switch target {
	case domain.StageOpportunity:
		lead := existing.Lead
		if lead == nil {
			return nil, apperr.IllegalTransition("Cannot progress to Opportunity without a Lead")
		}
		return OpportunityDraft{Input: transport.OpportunityInput{
			Title:      opportunityTitle(lead),
			Remarks:    lead.Remarks,
			DueDate:    &due,
			ClientID:   lead.ClientID,
			ProductIDs: productIDs(lead.Products),
		}}, nil

	case domain.StageQuote:
		opp := existing.Opportunity
		if opp == nil {
			return nil, apperr.IllegalTransition("Cannot progress to Quote without an Opportunity")
		}
		return QuoteDraft{Input: transport.QuoteInput{
			Title:        titleOr(opp.Title, "Quote"),
			Currency:     opp.Currency,
			BaseAmount:   opp.BaseAmount,
			ExchangeRate: opp.ExchangeRate,
			Amount:       opp.Amount,
			Remarks:      opp.Remarks,
			DueDate:      &due,
			ClientID:     opp.ClientID,
			ProductIDs:   productIDs(opp.Products),
		}}, nil

	case domain.StageContract:
		quote := existing.Quote
		if quote == nil {
			return nil, apperr.IllegalTransition("Cannot progress to Contract without a Quote")
		}
		return ContractDraft{Input: transport.ContractInput{
			Title:        titleOr(quote.Title, "Contract"),
			Currency:     quote.Currency,
			BaseAmount:   quote.BaseAmount,
			ExchangeRate: quote.ExchangeRate,
			Amount:       quote.Amount,
			Remarks:      quote.Remarks,
			ClientID:     quote.ClientID,
			ProductIDs:   productIDs(quote.Products),
		}}, nil
	}
	return nil, apperr.IllegalTransition(fmt.Sprintf("Cannot progress to %s", target.Label()))
}

func withDraft(p Payloads, draft StageDraft) Payloads {
	switch d := draft.(type) {
	case OpportunityDraft:
		in := d.Input
		p.Opportunity = &in
	case QuoteDraft:
		in := d.Input
		p.Quote = &in
	case ContractDraft:
		in := d.Input
		p.Contract = &in
	}
	return p
}

// opportunityTitle is the lead's client name. The lead's own name is a
// contact person and never becomes a deal title.
func opportunityTitle(lead *repository.Lead) string {
	if lead.Client != nil && strings.TrimSpace(lead.Client.Name) != "" {
		return lead.Client.Name
	}
	return "New Opportunity"
}

func titleOr(title *string, fallback string) string {
	if title != nil && strings.TrimSpace(*title) != "" {
		return *title
	}
	return fallback
}

func productIDs(products []repository.ProductRef) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

// applyEnrichedUpdate writes a resolved transition inside tx and returns the
// references that were written.
func (s *Service) applyEnrichedUpdate(ctx context.Context, tx repository.Tx, existing repository.Pipeline, update EnrichedUpdate, actorID uuid.UUID, stage *transport.StageInput) (domain.Refs, error) {
	refs := update.Refs
	if update.Action == domain.ActionProgress {
		if err := ValidateProgression(&existing.Refs, update.Payloads); err != nil {
			return domain.Refs{}, err
		}
		var err error
		refs, _, err = s.runChain(ctx, tx, update.Payloads, existing.Refs)
		if err != nil {
			return domain.Refs{}, err
		}
	}
	if err := checkChain(refs); err != nil {
		return domain.Refs{}, err
	}

	if err := tx.UpdatePipeline(ctx, repository.UpdatePipelineParams{
		ID:          existing.ID,
		Refs:        refs,
		UpdatedByID: actorID,
	}); err != nil {
		return domain.Refs{}, err
	}

	if stage != nil {
		return refs, tx.AppendStage(ctx, repository.AppendStageParams{
			PipelineID:  existing.ID,
			StageTypeID: stage.StageTypeID,
			Comment:     stage.Comment,
			CreatedByID: actorID,
		})
	}
	if !update.Changed() {
		return refs, nil
	}

	stageType, err := tx.FindStageType(ctx, domain.PipelineModel, string(update.Target))
	if err != nil {
		return domain.Refs{}, err
	}
	if stageType == nil {
		return refs, nil
	}
	comment := update.Comment
	return refs, tx.AppendStage(ctx, repository.AppendStageParams{
		PipelineID:  existing.ID,
		StageTypeID: stageType.ID,
		Comment:     &comment,
		CreatedByID: actorID,
	})
}
