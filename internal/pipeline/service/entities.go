package service

import (
	"context"
	"fmt"

	"backoffice_backend/internal/pipeline/domain"
	"backoffice_backend/internal/pipeline/repository"
	"backoffice_backend/internal/pipeline/transport"
	"backoffice_backend/internal/regnumber"
	"backoffice_backend/platform/phone"
	"backoffice_backend/platform/sanitize"

	"github.com/google/uuid"
)

// HandleAction reports what an entity handler did.
type HandleAction string

const (
	ActionNone    HandleAction = ""
	ActionCreated HandleAction = "created"
	ActionUpdated HandleAction = "updated"
)

// HandleResult is the outcome of one entity handler.
type HandleResult struct {
	ID     *uuid.UUID
	Action HandleAction
}

type stageAction struct {
	Stage  domain.Stage
	Action HandleAction
}

// runChain runs every entity handler in stage order. Each handler gets the
// id produced by the previous one as its parent.
func (s *Service) runChain(ctx context.Context, tx repository.Tx, in Payloads, existing domain.Refs) (domain.Refs, []stageAction, error) {
	var refs domain.Refs
	var parent *uuid.UUID
	actions := make([]stageAction, 0, len(domain.Stages))

	for _, stage := range domain.Stages {
		res, err := s.handleStage(ctx, tx, stage, in, existing.Get(stage), parent)
		if err != nil {
			return domain.Refs{}, nil, err
		}
		refs.Set(stage, res.ID)
		if res.Action != ActionNone {
			actions = append(actions, stageAction{Stage: stage, Action: res.Action})
		}
		parent = res.ID
	}
	return refs, actions, nil
}

// runSingle runs only the handler for stage; its parent is the pipeline's
// existing reference to the previous stage.
func (s *Service) runSingle(ctx context.Context, tx repository.Tx, stage domain.Stage, in Payloads, existing domain.Refs) (domain.Refs, error) {
	var parent *uuid.UUID
	if prev, ok := stage.Previous(); ok {
		parent = existing.Get(prev)
	}

	res, err := s.handleStage(ctx, tx, stage, in, existing.Get(stage), parent)
	if err != nil {
		return domain.Refs{}, err
	}
	refs := existing
	refs.Set(stage, res.ID)
	return refs, nil
}

func (s *Service) handleStage(ctx context.Context, tx repository.Tx, stage domain.Stage, in Payloads, existingID, parentID *uuid.UUID) (HandleResult, error) {
	switch stage {
	case domain.StageLead:
		return s.handleLead(ctx, tx, in.Lead, existingID)
	case domain.StageOpportunity:
		return s.handleOpportunity(ctx, tx, in.Opportunity, existingID, parentID)
	case domain.StageQuote:
		return s.handleQuote(ctx, tx, in.Quote, existingID, parentID)
	case domain.StageContract:
		return s.handleContract(ctx, tx, in.Contract, existingID, parentID)
	default:
		return HandleResult{}, fmt.Errorf("unknown stage %q", stage)
	}
}

func (s *Service) handleLead(ctx context.Context, tx repository.Tx, in *transport.LeadInput, existingID *uuid.UUID) (HandleResult, error) {
	if in == nil {
		return HandleResult{ID: existingID}, nil
	}

	fields := leadFields(in)
	if existingID != nil {
		if err := tx.UpdateLead(ctx, repository.UpdateLeadParams{ID: *existingID, Fields: fields, ProductIDs: in.ProductIDs}); err != nil {
			return HandleResult{}, err
		}
		return HandleResult{ID: existingID, Action: ActionUpdated}, nil
	}

	regNumber, err := regnumber.Apply(ctx, s.regs, regnumber.KindLead, in.RegNumber)
	if err != nil {
		return HandleResult{}, err
	}
	id, err := tx.CreateLead(ctx, repository.CreateLeadParams{RegNumber: regNumber, Fields: fields, ProductIDs: in.ProductIDs})
	if err != nil {
		return HandleResult{}, err
	}
	return HandleResult{ID: &id, Action: ActionCreated}, nil
}

func (s *Service) handleOpportunity(ctx context.Context, tx repository.Tx, in *transport.OpportunityInput, existingID, leadID *uuid.UUID) (HandleResult, error) {
	if in == nil {
		return HandleResult{ID: existingID}, nil
	}

	fields := opportunityFields(in)
	if existingID != nil {
		if err := tx.UpdateOpportunity(ctx, repository.UpdateOpportunityParams{ID: *existingID, Fields: fields, ProductIDs: in.ProductIDs}); err != nil {
			return HandleResult{}, err
		}
		return HandleResult{ID: existingID, Action: ActionUpdated}, nil
	}

	regNumber, err := regnumber.Apply(ctx, s.regs, regnumber.KindOpportunity, in.RegNumber)
	if err != nil {
		return HandleResult{}, err
	}
	id, err := tx.CreateOpportunity(ctx, repository.CreateOpportunityParams{
		RegNumber:  regNumber,
		Fields:     fields,
		LeadID:     leadID,
		ProductIDs: in.ProductIDs,
	})
	if err != nil {
		return HandleResult{}, err
	}
	return HandleResult{ID: &id, Action: ActionCreated}, nil
}

func (s *Service) handleQuote(ctx context.Context, tx repository.Tx, in *transport.QuoteInput, existingID, opportunityID *uuid.UUID) (HandleResult, error) {
	if in == nil {
		return HandleResult{ID: existingID}, nil
	}

	fields := quoteFields(in)
	if existingID != nil {
		if err := tx.UpdateQuote(ctx, repository.UpdateQuoteParams{ID: *existingID, Fields: fields, ProductIDs: in.ProductIDs}); err != nil {
			return HandleResult{}, err
		}
		return HandleResult{ID: existingID, Action: ActionUpdated}, nil
	}

	regNumber, err := regnumber.Apply(ctx, s.regs, regnumber.KindQuote, in.RegNumber)
	if err != nil {
		return HandleResult{}, err
	}
	id, err := tx.CreateQuote(ctx, repository.CreateQuoteParams{
		RegNumber:     regNumber,
		Fields:        fields,
		OpportunityID: opportunityID,
		ProductIDs:    in.ProductIDs,
	})
	if err != nil {
		return HandleResult{}, err
	}
	return HandleResult{ID: &id, Action: ActionCreated}, nil
}

func (s *Service) handleContract(ctx context.Context, tx repository.Tx, in *transport.ContractInput, existingID, quoteID *uuid.UUID) (HandleResult, error) {
	if in == nil {
		return HandleResult{ID: existingID}, nil
	}

	fields := contractFields(in)
	if existingID != nil {
		if err := tx.UpdateContract(ctx, repository.UpdateContractParams{ID: *existingID, Fields: fields, ProductIDs: in.ProductIDs}); err != nil {
			return HandleResult{}, err
		}
		return HandleResult{ID: existingID, Action: ActionUpdated}, nil
	}

	regNumber, err := regnumber.Apply(ctx, s.regs, regnumber.KindContract, in.RegNumber)
	if err != nil {
		return HandleResult{}, err
	}
	id, err := tx.CreateContract(ctx, repository.CreateContractParams{
		RegNumber:  regNumber,
		Fields:     fields,
		QuoteID:    quoteID,
		ProductIDs: in.ProductIDs,
	})
	if err != nil {
		return HandleResult{}, err
	}
	return HandleResult{ID: &id, Action: ActionCreated}, nil
}

func leadFields(in *transport.LeadInput) repository.LeadFields {
	f := repository.LeadFields{
		Name:             in.Name,
		Role:             in.Role,
		Email:            in.Email,
		LeadSource:       in.LeadSource,
		LeadDate:         in.LeadDate,
		LeadAddress:      in.LeadAddress,
		ProspectLocation: in.ProspectLocation,
		Remarks:          sanitize.TextPtr(in.Remarks),
		DueDate:          in.DueDate,
		ApprovedDate:     in.ApprovedDate,
		ClientID:         in.ClientID,
	}
	if in.Phone != nil {
		normalized := phone.NormalizeE164(*in.Phone)
		f.Phone = &normalized
	}
	return f
}

func opportunityFields(in *transport.OpportunityInput) repository.OpportunityFields {
	title := sanitize.Text(in.Title)
	return repository.OpportunityFields{
		Title:        &title,
		Currency:     in.Currency,
		BaseAmount:   in.BaseAmount,
		ExchangeRate: in.ExchangeRate,
		Amount:       in.Amount,
		Remarks:      sanitize.TextPtr(in.Remarks),
		DueDate:      in.DueDate,
		ApprovedDate: in.ApprovedDate,
		ClientID:     in.ClientID,
	}
}

func quoteFields(in *transport.QuoteInput) repository.QuoteFields {
	title := sanitize.Text(in.Title)
	return repository.QuoteFields{
		Title:        &title,
		Currency:     in.Currency,
		BaseAmount:   in.BaseAmount,
		ExchangeRate: in.ExchangeRate,
		Amount:       in.Amount,
		Remarks:      sanitize.TextPtr(in.Remarks),
		DueDate:      in.DueDate,
		ReleasedDate: in.ReleasedDate,
		ApprovedDate: in.ApprovedDate,
		ExpiredDate:  in.ExpiredDate,
		ClientID:     in.ClientID,
	}
}

func contractFields(in *transport.ContractInput) repository.ContractFields {
	title := sanitize.Text(in.Title)
	return repository.ContractFields{
		Title:         &title,
		Currency:      in.Currency,
		BaseAmount:    in.BaseAmount,
		ExchangeRate:  in.ExchangeRate,
		Amount:        in.Amount,
		Remarks:       sanitize.TextPtr(in.Remarks),
		SignedDate:    in.SignedDate,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		Penalty:       in.Penalty,
		ClientPicName: in.ClientPicName,
		ClientID:      in.ClientID,
	}
}
