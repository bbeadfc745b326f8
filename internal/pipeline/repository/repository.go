package repository

import (
	"context"
	"errors"
	"fmt"

	"backoffice_backend/platform/apperr"
	"backoffice_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pipelineNotFoundMessage  = "pipeline not found"
	stageTypeNotFoundMessage = "no initial stage type found for pipeline"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo implements the Store interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new pipeline repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Store.
var _ Store = (*Repo)(nil)

// WithinTx runs fn inside one read-committed transaction.
func (r *Repo) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&txRepo{q: tx})
	})
}

// GetPipeline loads a pipeline with its relations outside any transaction.
func (r *Repo) GetPipeline(ctx context.Context, id uuid.UUID) (Pipeline, error) {
	return loadPipeline(ctx, r.pool, id, false)
}

// txRepo implements Tx on top of a pgx transaction.
type txRepo struct {
	q querier
}

var _ Tx = (*txRepo)(nil)

func (t *txRepo) LockPipeline(ctx context.Context, id uuid.UUID) (Pipeline, error) {
	return loadPipeline(ctx, t.q, id, true)
}

func (t *txRepo) GetPipeline(ctx context.Context, id uuid.UUID) (Pipeline, error) {
	return loadPipeline(ctx, t.q, id, false)
}

func (t *txRepo) FirstStageType(ctx context.Context, model string) (StageType, error) {
	var st StageType
	err := t.q.QueryRow(ctx, `
		SELECT id, model, sort_order, value
		FROM stage_types
		WHERE model = $1 AND sort_order = 1`, model,
	).Scan(&st.ID, &st.Model, &st.Order, &st.Value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StageType{}, apperr.NotFound(stageTypeNotFoundMessage)
		}
		return StageType{}, fmt.Errorf("get first stage type: %w", err)
	}
	return st, nil
}

func (t *txRepo) FindStageType(ctx context.Context, model, value string) (*StageType, error) {
	var st StageType
	err := t.q.QueryRow(ctx, `
		SELECT id, model, sort_order, value
		FROM stage_types
		WHERE model = $1 AND value = $2`, model, value,
	).Scan(&st.ID, &st.Model, &st.Order, &st.Value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find stage type: %w", err)
	}
	return &st, nil
}

func (t *txRepo) CreatePipeline(ctx context.Context, params CreatePipelineParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := t.q.QueryRow(ctx, `
		INSERT INTO pipelines (reg_number, category, lead_id, opportunity_id, quote_id, contract_id, assignee_id, created_by_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		params.RegNumber, params.Category,
		params.Refs.LeadID, params.Refs.OpportunityID, params.Refs.QuoteID, params.Refs.ContractID,
		params.AssigneeID, params.CreatedByID,
	).Scan(&id)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("create pipeline: %w", err)
	}

	if err := addMembers(ctx, t.q, id, params.MemberIDs); err != nil {
		return uuid.UUID{}, err
	}

	if err := t.AppendStage(ctx, AppendStageParams{
		PipelineID:  id,
		StageTypeID: params.StageTypeID,
		Comment:     params.Comment,
		CreatedByID: params.CreatedByID,
	}); err != nil {
		return uuid.UUID{}, err
	}

	return id, nil
}

func (t *txRepo) UpdatePipeline(ctx context.Context, params UpdatePipelineParams) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE pipelines SET
			lead_id = $2,
			opportunity_id = $3,
			quote_id = $4,
			contract_id = $5,
			category = COALESCE($6, category),
			assignee_id = CASE WHEN $7::boolean THEN $8::uuid ELSE assignee_id END,
			updated_by_id = $9,
			updated_at = now()
		WHERE id = $1`,
		params.ID,
		params.Refs.LeadID, params.Refs.OpportunityID, params.Refs.QuoteID, params.Refs.ContractID,
		params.Category, params.AssigneeSet, params.AssigneeID, params.UpdatedByID,
	)
	if err != nil {
		return fmt.Errorf("update pipeline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(pipelineNotFoundMessage)
	}

	if params.MemberIDs == nil {
		return nil
	}
	if _, err := t.q.Exec(ctx, `DELETE FROM pipeline_members WHERE pipeline_id = $1`, params.ID); err != nil {
		return fmt.Errorf("clear pipeline members: %w", err)
	}
	return addMembers(ctx, t.q, params.ID, params.MemberIDs)
}

func (t *txRepo) AppendStage(ctx context.Context, params AppendStageParams) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO stages (pipeline_id, stage_type_id, comment, created_by_id)
		VALUES ($1, $2, $3, $4)`,
		params.PipelineID, params.StageTypeID, params.Comment, params.CreatedByID,
	)
	if err != nil {
		return fmt.Errorf("append stage: %w", err)
	}
	return nil
}

func addMembers(ctx context.Context, q querier, pipelineID uuid.UUID, memberIDs []uuid.UUID) error {
	if len(memberIDs) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
		INSERT INTO pipeline_members (pipeline_id, user_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING`, pipelineID, memberIDs)
	if err != nil {
		return fmt.Errorf("add pipeline members: %w", err)
	}
	return nil
}
