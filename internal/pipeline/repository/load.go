package repository

import (
	"context"
	"errors"
	"fmt"

	"backoffice_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const pipelineSelect = `
	SELECT p.id, p.reg_number, p.category, p.lead_id, p.opportunity_id, p.quote_id, p.contract_id,
		p.assignee_id, ua.username, p.created_by_id, uc.username, p.updated_by_id, uu.username,
		p.created_at, p.updated_at
	FROM pipelines p
	LEFT JOIN users ua ON ua.id = p.assignee_id
	LEFT JOIN users uc ON uc.id = p.created_by_id
	LEFT JOIN users uu ON uu.id = p.updated_by_id`

func loadPipeline(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (Pipeline, error) {
	query := pipelineSelect + ` WHERE p.id = $1`
	if forUpdate {
		query += ` FOR UPDATE OF p`
	}

	p, err := scanPipeline(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Pipeline{}, apperr.NotFound(pipelineNotFoundMessage)
		}
		return Pipeline{}, fmt.Errorf("get pipeline: %w", err)
	}

	if err := hydrate(ctx, q, &p); err != nil {
		return Pipeline{}, err
	}
	return p, nil
}

func scanPipeline(row pgx.Row) (Pipeline, error) {
	var p Pipeline
	var assigneeName, createdByName, updatedByName *string
	err := row.Scan(
		&p.ID, &p.RegNumber, &p.Category,
		&p.Refs.LeadID, &p.Refs.OpportunityID, &p.Refs.QuoteID, &p.Refs.ContractID,
		&p.AssigneeID, &assigneeName, &p.CreatedByID, &createdByName, &p.UpdatedByID, &updatedByName,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Pipeline{}, err
	}
	p.Assignee = userRef(p.AssigneeID, assigneeName)
	p.CreatedBy = userRef(p.CreatedByID, createdByName)
	p.UpdatedBy = userRef(p.UpdatedByID, updatedByName)
	return p, nil
}

// hydrate loads members, stage history and the referenced stage entities.
func hydrate(ctx context.Context, q querier, p *Pipeline) error {
	var err error
	if p.Members, err = loadMembers(ctx, q, p.ID); err != nil {
		return err
	}
	if p.Stages, err = loadStages(ctx, q, p.ID); err != nil {
		return err
	}
	if id := p.Refs.LeadID; id != nil {
		if p.Lead, err = loadLead(ctx, q, *id); err != nil {
			return err
		}
	}
	if id := p.Refs.OpportunityID; id != nil {
		if p.Opportunity, err = loadOpportunity(ctx, q, *id); err != nil {
			return err
		}
	}
	if id := p.Refs.QuoteID; id != nil {
		if p.Quote, err = loadQuote(ctx, q, *id); err != nil {
			return err
		}
	}
	if id := p.Refs.ContractID; id != nil {
		if p.Contract, err = loadContract(ctx, q, *id); err != nil {
			return err
		}
	}
	return nil
}

func loadMembers(ctx context.Context, q querier, pipelineID uuid.UUID) ([]UserRef, error) {
	rows, err := q.Query(ctx, `
		SELECT u.id, u.username
		FROM pipeline_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.pipeline_id = $1
		ORDER BY u.username`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("load pipeline members: %w", err)
	}
	defer rows.Close()

	members := make([]UserRef, 0)
	for rows.Next() {
		var u UserRef
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, fmt.Errorf("scan pipeline member: %w", err)
		}
		members = append(members, u)
	}
	return members, rows.Err()
}

func loadStages(ctx context.Context, q querier, pipelineID uuid.UUID) ([]Stage, error) {
	rows, err := q.Query(ctx, `
		SELECT s.id, s.stage_type_id, st.model, st.sort_order, st.value, s.comment,
			s.created_by_id, u.username, s.created_at
		FROM stages s
		JOIN stage_types st ON st.id = s.stage_type_id
		LEFT JOIN users u ON u.id = s.created_by_id
		WHERE s.pipeline_id = $1
		ORDER BY s.created_at DESC`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("load stages: %w", err)
	}
	defer rows.Close()

	stages := make([]Stage, 0)
	for rows.Next() {
		var s Stage
		var st StageType
		var createdByID *uuid.UUID
		var createdByName *string
		if err := rows.Scan(&s.ID, &s.StageTypeID, &st.Model, &st.Order, &st.Value, &s.Comment,
			&createdByID, &createdByName, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		st.ID = s.StageTypeID
		s.Type = &st
		s.CreatedBy = userRef(createdByID, createdByName)
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

func loadLead(ctx context.Context, q querier, id uuid.UUID) (*Lead, error) {
	var l Lead
	var clientName *string
	err := q.QueryRow(ctx, `
		SELECT l.id, l.reg_number, l.name, l.role, l.email, l.phone, l.lead_source, l.lead_date,
			l.lead_address, l.prospect_location, l.remarks, l.due_date, l.approved_date,
			l.client_id, c.name, l.created_at, l.updated_at
		FROM leads l
		LEFT JOIN clients c ON c.id = l.client_id
		WHERE l.id = $1`, id,
	).Scan(&l.ID, &l.RegNumber, &l.Name, &l.Role, &l.Email, &l.Phone, &l.LeadSource, &l.LeadDate,
		&l.LeadAddress, &l.ProspectLocation, &l.Remarks, &l.DueDate, &l.ApprovedDate,
		&l.ClientID, &clientName, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("load lead: %w", err)
	}
	l.Client = clientRef(l.ClientID, clientName)
	if l.Products, err = loadProducts(ctx, q, leadProducts, id); err != nil {
		return nil, err
	}
	return &l, nil
}

func loadOpportunity(ctx context.Context, q querier, id uuid.UUID) (*Opportunity, error) {
	var o Opportunity
	var clientName *string
	err := q.QueryRow(ctx, `
		SELECT o.id, o.reg_number, o.title, o.currency, o.base_amount, o.exchange_rate, o.amount,
			o.remarks, o.due_date, o.approved_date, o.client_id, c.name, o.lead_id,
			o.created_at, o.updated_at
		FROM opportunities o
		LEFT JOIN clients c ON c.id = o.client_id
		WHERE o.id = $1`, id,
	).Scan(&o.ID, &o.RegNumber, &o.Title, &o.Currency, &o.BaseAmount, &o.ExchangeRate, &o.Amount,
		&o.Remarks, &o.DueDate, &o.ApprovedDate, &o.ClientID, &clientName, &o.LeadID,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("load opportunity: %w", err)
	}
	o.Client = clientRef(o.ClientID, clientName)
	if o.Products, err = loadProducts(ctx, q, opportunityProducts, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func loadQuote(ctx context.Context, q querier, id uuid.UUID) (*Quote, error) {
	var qt Quote
	var clientName *string
	err := q.QueryRow(ctx, `
		SELECT q.id, q.reg_number, q.title, q.currency, q.base_amount, q.exchange_rate, q.amount,
			q.remarks, q.due_date, q.released_date, q.approved_date, q.expired_date,
			q.client_id, c.name, q.opportunity_id, q.created_at, q.updated_at
		FROM quotes q
		LEFT JOIN clients c ON c.id = q.client_id
		WHERE q.id = $1`, id,
	).Scan(&qt.ID, &qt.RegNumber, &qt.Title, &qt.Currency, &qt.BaseAmount, &qt.ExchangeRate, &qt.Amount,
		&qt.Remarks, &qt.DueDate, &qt.ReleasedDate, &qt.ApprovedDate, &qt.ExpiredDate,
		&qt.ClientID, &clientName, &qt.OpportunityID, &qt.CreatedAt, &qt.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("load quote: %w", err)
	}
	qt.Client = clientRef(qt.ClientID, clientName)
	if qt.Products, err = loadProducts(ctx, q, quoteProducts, id); err != nil {
		return nil, err
	}
	return &qt, nil
}

func loadContract(ctx context.Context, q querier, id uuid.UUID) (*Contract, error) {
	var ct Contract
	var clientName *string
	err := q.QueryRow(ctx, `
		SELECT ct.id, ct.reg_number, ct.title, ct.currency, ct.base_amount, ct.exchange_rate, ct.amount,
			ct.remarks, ct.signed_date, ct.start_date, ct.end_date, ct.penalty, ct.client_pic_name,
			ct.client_id, c.name, ct.quote_id, ct.created_at, ct.updated_at
		FROM contracts ct
		LEFT JOIN clients c ON c.id = ct.client_id
		WHERE ct.id = $1`, id,
	).Scan(&ct.ID, &ct.RegNumber, &ct.Title, &ct.Currency, &ct.BaseAmount, &ct.ExchangeRate, &ct.Amount,
		&ct.Remarks, &ct.SignedDate, &ct.StartDate, &ct.EndDate, &ct.Penalty, &ct.ClientPicName,
		&ct.ClientID, &clientName, &ct.QuoteID, &ct.CreatedAt, &ct.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("load contract: %w", err)
	}
	ct.Client = clientRef(ct.ClientID, clientName)
	if ct.Products, err = loadProducts(ctx, q, contractProducts, id); err != nil {
		return nil, err
	}
	return &ct, nil
}

func loadProducts(ctx context.Context, q querier, link productLink, ownerID uuid.UUID) ([]ProductRef, error) {
	query := fmt.Sprintf(`
		SELECT p.id, p.name
		FROM %s lp
		JOIN products p ON p.id = lp.product_id
		WHERE lp.%s = $1
		ORDER BY p.name`, link.table, link.column)
	rows, err := q.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", link.table, err)
	}
	defer rows.Close()

	products := make([]ProductRef, 0)
	for rows.Next() {
		var p ProductRef
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("scan %s: %w", link.table, err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func userRef(id *uuid.UUID, username *string) *UserRef {
	if id == nil || username == nil {
		return nil
	}
	return &UserRef{ID: *id, Username: *username}
}

func clientRef(id *uuid.UUID, name *string) *ClientRef {
	if id == nil || name == nil {
		return nil
	}
	return &ClientRef{ID: *id, Name: *name}
}
