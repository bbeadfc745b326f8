package repository

import (
	"context"
	"fmt"

	"backoffice_backend/platform/apperr"

	"golang.org/x/sync/errgroup"
)

// hydrateConcurrency bounds the pool connections used to load one page.
const hydrateConcurrency = 4

const listWhere = `
	WHERE ($1::text IS NULL OR p.category = $1)
		AND ($2::uuid IS NULL OR p.assignee_id = $2)
		AND ($3::uuid IS NULL OR EXISTS (
			SELECT 1 FROM pipeline_members m WHERE m.pipeline_id = p.id AND m.user_id = $3))
		AND ($4::text IS NULL
			OR ($4 = 'contract' AND p.contract_id IS NOT NULL)
			OR ($4 = 'quote' AND p.contract_id IS NULL AND p.quote_id IS NOT NULL)
			OR ($4 = 'opportunity' AND p.contract_id IS NULL AND p.quote_id IS NULL AND p.opportunity_id IS NOT NULL)
			OR ($4 = 'lead' AND p.contract_id IS NULL AND p.quote_id IS NULL AND p.opportunity_id IS NULL))
		AND ($5::text IS NULL OR p.reg_number ILIKE $5 OR p.category ILIKE $5)`

// ListPipelines retrieves pipelines with filters, pagination and sorting.
// The current-stage filter follows the derived stage: a pipeline without any
// stage entity counts as a lead.
func (r *Repo) ListPipelines(ctx context.Context, params ListParams) ([]Pipeline, int, error) {
	sortBy := "createdAt"
	if params.SortBy != "" {
		switch params.SortBy {
		case "regNumber", "category", "createdAt", "updatedAt":
			sortBy = params.SortBy
		default:
			return nil, 0, apperr.BadRequest("invalid sort field")
		}
	}

	sortOrder := "desc"
	if params.SortOrder != "" {
		switch params.SortOrder {
		case "asc", "desc":
			sortOrder = params.SortOrder
		default:
			return nil, 0, apperr.BadRequest("invalid sort order")
		}
	}

	args := []interface{}{
		nullableText(params.Category),
		params.AssigneeID,
		params.MemberID,
		nullableText(params.Stage),
		nil,
	}
	if params.Search != "" {
		args[4] = "%" + params.Search + "%"
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pipelines p`+listWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pipelines: %w", err)
	}

	query := pipelineSelect + listWhere + `
		ORDER BY
			CASE WHEN $6 = 'regNumber' AND $7 = 'asc' THEN p.reg_number END ASC,
			CASE WHEN $6 = 'regNumber' AND $7 = 'desc' THEN p.reg_number END DESC,
			CASE WHEN $6 = 'category' AND $7 = 'asc' THEN p.category END ASC,
			CASE WHEN $6 = 'category' AND $7 = 'desc' THEN p.category END DESC,
			CASE WHEN $6 = 'createdAt' AND $7 = 'asc' THEN p.created_at END ASC,
			CASE WHEN $6 = 'createdAt' AND $7 = 'desc' THEN p.created_at END DESC,
			CASE WHEN $6 = 'updatedAt' AND $7 = 'asc' THEN p.updated_at END ASC,
			CASE WHEN $6 = 'updatedAt' AND $7 = 'desc' THEN p.updated_at END DESC,
			p.created_at DESC
		LIMIT $8 OFFSET $9`

	args = append(args, sortBy, sortOrder, params.Limit, params.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	items := make([]Pipeline, 0)
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan pipeline: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list pipelines: %w", err)
	}
	rows.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hydrateConcurrency)
	for i := range items {
		item := &items[i]
		g.Go(func() error {
			return hydrate(gctx, r.pool, item)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func nullableText(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
