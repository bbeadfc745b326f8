package service

import (
	"strings"

	"backoffice_backend/internal/pipeline/domain"
	"backoffice_backend/internal/pipeline/transport"
	"backoffice_backend/platform/apperr"
)

// Payloads are the stage-entity inputs of one request.
type Payloads struct {
	Lead        *transport.LeadInput
	Opportunity *transport.OpportunityInput
	Quote       *transport.QuoteInput
	Contract    *transport.ContractInput
}

// Has reports whether a payload was supplied for stage.
func (p Payloads) Has(stage domain.Stage) bool {
	switch stage {
	case domain.StageLead:
		return p.Lead != nil
	case domain.StageOpportunity:
		return p.Opportunity != nil
	case domain.StageQuote:
		return p.Quote != nil
	case domain.StageContract:
		return p.Contract != nil
	default:
		return false
	}
}

// without returns a copy with the payload for stage removed.
func (p Payloads) without(stage domain.Stage) Payloads {
	switch stage {
	case domain.StageLead:
		p.Lead = nil
	case domain.StageOpportunity:
		p.Opportunity = nil
	case domain.StageQuote:
		p.Quote = nil
	case domain.StageContract:
		p.Contract = nil
	}
	return p
}

// ValidateProgression rejects payloads whose prerequisite stage is neither
// referenced by the pipeline nor supplied alongside. existing is nil for a
// pipeline that does not exist yet.
func ValidateProgression(existing *domain.Refs, in Payloads) error {
	var refs domain.Refs
	if existing != nil {
		refs = *existing
	}

	if in.Contract != nil && !refs.Has(domain.StageQuote) && in.Quote == nil {
		return apperr.Validation("Contract requires a Quote to exist")
	}
	if in.Quote != nil && !refs.Has(domain.StageOpportunity) && in.Opportunity == nil {
		return apperr.Validation("Quote requires an Opportunity to exist")
	}
	return nil
}

// RequireCategory fails when a new pipeline has no category.
func RequireCategory(category *string) error {
	if category == nil || strings.TrimSpace(*category) == "" {
		return apperr.MissingField("category", "Category is required when creating a pipeline")
	}
	return nil
}

// checkChain re-verifies the reference chain before it is written.
func checkChain(refs domain.Refs) error {
	if err := domain.CheckChain(refs); err != nil {
		return apperr.Validation(err.Error())
	}
	return nil
}
