package repository

import (
	"context"

	"github.com/google/uuid"
)

// StageTypeReader resolves stage types.
type StageTypeReader interface {
	// FirstStageType returns the stage type with order 1 for model.
	// Returns a not found error when none is seeded.
	FirstStageType(ctx context.Context, model string) (StageType, error)
	// FindStageType returns the stage type for (model, value), or nil.
	FindStageType(ctx context.Context, model, value string) (*StageType, error)
}

// EntityWriter creates and updates stage entities.
type EntityWriter interface {
	CreateLead(ctx context.Context, params CreateLeadParams) (uuid.UUID, error)
	UpdateLead(ctx context.Context, params UpdateLeadParams) error
	CreateOpportunity(ctx context.Context, params CreateOpportunityParams) (uuid.UUID, error)
	UpdateOpportunity(ctx context.Context, params UpdateOpportunityParams) error
	CreateQuote(ctx context.Context, params CreateQuoteParams) (uuid.UUID, error)
	UpdateQuote(ctx context.Context, params UpdateQuoteParams) error
	CreateContract(ctx context.Context, params CreateContractParams) (uuid.UUID, error)
	UpdateContract(ctx context.Context, params UpdateContractParams) error
}

// PipelineWriter writes the pipeline row, its members and its history.
type PipelineWriter interface {
	CreatePipeline(ctx context.Context, params CreatePipelineParams) (uuid.UUID, error)
	UpdatePipeline(ctx context.Context, params UpdatePipelineParams) error
	AppendStage(ctx context.Context, params AppendStageParams) error
}

// Tx is the unit of work handed to Store.WithinTx. Nothing it writes is
// visible outside the transaction until the callback returns nil.
type Tx interface {
	StageTypeReader
	EntityWriter
	PipelineWriter
	// LockPipeline loads the pipeline with its relations and holds a row lock
	// on it until the transaction ends.
	LockPipeline(ctx context.Context, id uuid.UUID) (Pipeline, error)
	// GetPipeline loads the pipeline with its relations.
	GetPipeline(ctx context.Context, id uuid.UUID) (Pipeline, error)
}

// Store provides transactional writes and non-transactional reads.
type Store interface {
	// WithinTx runs fn in one transaction, committing when fn returns nil
	// and rolling back otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	GetPipeline(ctx context.Context, id uuid.UUID) (Pipeline, error)
	ListPipelines(ctx context.Context, params ListParams) ([]Pipeline, int, error)
}
