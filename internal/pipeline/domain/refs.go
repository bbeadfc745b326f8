package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Refs holds the four optional stage-entity references of a pipeline.
type Refs struct {
	LeadID        *uuid.UUID
	OpportunityID *uuid.UUID
	QuoteID       *uuid.UUID
	ContractID    *uuid.UUID
}

// Get returns the reference held for stage.
func (r Refs) Get(stage Stage) *uuid.UUID {
	switch stage {
	case StageLead:
		return r.LeadID
	case StageOpportunity:
		return r.OpportunityID
	case StageQuote:
		return r.QuoteID
	case StageContract:
		return r.ContractID
	default:
		return nil
	}
}

// Set replaces the reference held for stage.
func (r *Refs) Set(stage Stage, id *uuid.UUID) {
	switch stage {
	case StageLead:
		r.LeadID = id
	case StageOpportunity:
		r.OpportunityID = id
	case StageQuote:
		r.QuoteID = id
	case StageContract:
		r.ContractID = id
	}
}

// Has reports whether stage is referenced.
func (r Refs) Has(stage Stage) bool {
	return r.Get(stage) != nil
}

// Count returns how many stages are referenced.
func (r Refs) Count() int {
	n := 0
	for _, stage := range Stages {
		if r.Has(stage) {
			n++
		}
	}
	return n
}

// ClearAfter returns a copy with every stage after target unset.
func (r Refs) ClearAfter(target Stage) Refs {
	out := r
	for _, stage := range Stages[target.Index()+1:] {
		out.Set(stage, nil)
	}
	return out
}

// CurrentStage returns the furthest stage referenced. ok is false when no
// stage is referenced.
func CurrentStage(r Refs) (stage Stage, ok bool) {
	for i := len(Stages) - 1; i >= 0; i-- {
		if r.Has(Stages[i]) {
			return Stages[i], true
		}
	}
	return "", false
}

// ChainError reports a reference that is set while its prerequisite is not.
type ChainError struct {
	Stage    Stage
	Requires Stage
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("%s requires %s to exist", e.Stage.Label(), e.Requires.WithArticle())
}

// CheckChain verifies contract implies quote and quote implies opportunity.
// An opportunity does not require a lead.
func CheckChain(r Refs) error {
	if r.ContractID != nil && r.QuoteID == nil {
		return &ChainError{Stage: StageContract, Requires: StageQuote}
	}
	if r.QuoteID != nil && r.OpportunityID == nil {
		return &ChainError{Stage: StageQuote, Requires: StageOpportunity}
	}
	return nil
}
