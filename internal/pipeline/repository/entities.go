package repository

import (
	"context"
	"fmt"

	"backoffice_backend/platform/apperr"

	"github.com/google/uuid"
)

// productLink names a stage entity's product join table.
type productLink struct {
	table  string
	column string
}

var (
	leadProducts        = productLink{table: "lead_products", column: "lead_id"}
	opportunityProducts = productLink{table: "opportunity_products", column: "opportunity_id"}
	quoteProducts       = productLink{table: "quote_products", column: "quote_id"}
	contractProducts    = productLink{table: "contract_products", column: "contract_id"}
)

func (t *txRepo) CreateLead(ctx context.Context, params CreateLeadParams) (uuid.UUID, error) {
	f := params.Fields
	var id uuid.UUID
	err := t.q.QueryRow(ctx, `
		INSERT INTO leads (reg_number, name, role, email, phone, lead_source, lead_date, lead_address,
			prospect_location, remarks, due_date, approved_date, client_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		params.RegNumber, f.Name, f.Role, f.Email, f.Phone, f.LeadSource, f.LeadDate, f.LeadAddress,
		f.ProspectLocation, f.Remarks, f.DueDate, f.ApprovedDate, f.ClientID,
	).Scan(&id)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("create lead: %w", err)
	}
	return id, connectProducts(ctx, t.q, leadProducts, id, params.ProductIDs)
}

func (t *txRepo) UpdateLead(ctx context.Context, params UpdateLeadParams) error {
	f := params.Fields
	tag, err := t.q.Exec(ctx, `
		UPDATE leads SET
			name = COALESCE($2, name),
			role = COALESCE($3, role),
			email = COALESCE($4, email),
			phone = COALESCE($5, phone),
			lead_source = COALESCE($6, lead_source),
			lead_date = COALESCE($7, lead_date),
			lead_address = COALESCE($8, lead_address),
			prospect_location = COALESCE($9, prospect_location),
			remarks = COALESCE($10, remarks),
			due_date = COALESCE($11, due_date),
			approved_date = COALESCE($12, approved_date),
			client_id = COALESCE($13, client_id),
			updated_at = now()
		WHERE id = $1`,
		params.ID, f.Name, f.Role, f.Email, f.Phone, f.LeadSource, f.LeadDate, f.LeadAddress,
		f.ProspectLocation, f.Remarks, f.DueDate, f.ApprovedDate, f.ClientID,
	)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("lead not found")
	}
	return replaceProducts(ctx, t.q, leadProducts, params.ID, params.ProductIDs)
}

func (t *txRepo) CreateOpportunity(ctx context.Context, params CreateOpportunityParams) (uuid.UUID, error) {
	f := params.Fields
	var id uuid.UUID
	err := t.q.QueryRow(ctx, `
		INSERT INTO opportunities (reg_number, title, currency, base_amount, exchange_rate, amount, remarks,
			due_date, approved_date, client_id, lead_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		params.RegNumber, f.Title, f.Currency, f.BaseAmount, f.ExchangeRate, f.Amount, f.Remarks,
		f.DueDate, f.ApprovedDate, f.ClientID, params.LeadID,
	).Scan(&id)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("create opportunity: %w", err)
	}
	return id, connectProducts(ctx, t.q, opportunityProducts, id, params.ProductIDs)
}

func (t *txRepo) UpdateOpportunity(ctx context.Context, params UpdateOpportunityParams) error {
	f := params.Fields
	tag, err := t.q.Exec(ctx, `
		UPDATE opportunities SET
			title = COALESCE($2, title),
			currency = COALESCE($3, currency),
			base_amount = COALESCE($4, base_amount),
			exchange_rate = COALESCE($5, exchange_rate),
			amount = COALESCE($6, amount),
			remarks = COALESCE($7, remarks),
			due_date = COALESCE($8, due_date),
			approved_date = COALESCE($9, approved_date),
			client_id = COALESCE($10, client_id),
			updated_at = now()
		WHERE id = $1`,
		params.ID, f.Title, f.Currency, f.BaseAmount, f.ExchangeRate, f.Amount, f.Remarks,
		f.DueDate, f.ApprovedDate, f.ClientID,
	)
	if err != nil {
		return fmt.Errorf("update opportunity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("opportunity not found")
	}
	return replaceProducts(ctx, t.q, opportunityProducts, params.ID, params.ProductIDs)
}

func (t *txRepo) CreateQuote(ctx context.Context, params CreateQuoteParams) (uuid.UUID, error) {
	f := params.Fields
	var id uuid.UUID
	err := t.q.QueryRow(ctx, `
		INSERT INTO quotes (reg_number, title, currency, base_amount, exchange_rate, amount, remarks,
			due_date, released_date, approved_date, expired_date, client_id, opportunity_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		params.RegNumber, f.Title, f.Currency, f.BaseAmount, f.ExchangeRate, f.Amount, f.Remarks,
		f.DueDate, f.ReleasedDate, f.ApprovedDate, f.ExpiredDate, f.ClientID, params.OpportunityID,
	).Scan(&id)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("create quote: %w", err)
	}
	return id, connectProducts(ctx, t.q, quoteProducts, id, params.ProductIDs)
}

func (t *txRepo) UpdateQuote(ctx context.Context, params UpdateQuoteParams) error {
	f := params.Fields
	tag, err := t.q.Exec(ctx, `
		UPDATE quotes SET
			title = COALESCE($2, title),
			currency = COALESCE($3, currency),
			base_amount = COALESCE($4, base_amount),
			exchange_rate = COALESCE($5, exchange_rate),
			amount = COALESCE($6, amount),
			remarks = COALESCE($7, remarks),
			due_date = COALESCE($8, due_date),
			released_date = COALESCE($9, released_date),
			approved_date = COALESCE($10, approved_date),
			expired_date = COALESCE($11, expired_date),
			client_id = COALESCE($12, client_id),
			updated_at = now()
		WHERE id = $1`,
		params.ID, f.Title, f.Currency, f.BaseAmount, f.ExchangeRate, f.Amount, f.Remarks,
		f.DueDate, f.ReleasedDate, f.ApprovedDate, f.ExpiredDate, f.ClientID,
	)
	if err != nil {
		return fmt.Errorf("update quote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("quote not found")
	}
	return replaceProducts(ctx, t.q, quoteProducts, params.ID, params.ProductIDs)
}

func (t *txRepo) CreateContract(ctx context.Context, params CreateContractParams) (uuid.UUID, error) {
	f := params.Fields
	var id uuid.UUID
	err := t.q.QueryRow(ctx, `
		INSERT INTO contracts (reg_number, title, currency, base_amount, exchange_rate, amount, remarks,
			signed_date, start_date, end_date, penalty, client_pic_name, client_id, quote_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		params.RegNumber, f.Title, f.Currency, f.BaseAmount, f.ExchangeRate, f.Amount, f.Remarks,
		f.SignedDate, f.StartDate, f.EndDate, f.Penalty, f.ClientPicName, f.ClientID, params.QuoteID,
	).Scan(&id)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("create contract: %w", err)
	}
	return id, connectProducts(ctx, t.q, contractProducts, id, params.ProductIDs)
}

func (t *txRepo) UpdateContract(ctx context.Context, params UpdateContractParams) error {
	f := params.Fields
	tag, err := t.q.Exec(ctx, `
		UPDATE contracts SET
			title = COALESCE($2, title),
			currency = COALESCE($3, currency),
			base_amount = COALESCE($4, base_amount),
			exchange_rate = COALESCE($5, exchange_rate),
			amount = COALESCE($6, amount),
			remarks = COALESCE($7, remarks),
			signed_date = COALESCE($8, signed_date),
			start_date = COALESCE($9, start_date),
			end_date = COALESCE($10, end_date),
			penalty = COALESCE($11, penalty),
			client_pic_name = COALESCE($12, client_pic_name),
			client_id = COALESCE($13, client_id),
			updated_at = now()
		WHERE id = $1`,
		params.ID, f.Title, f.Currency, f.BaseAmount, f.ExchangeRate, f.Amount, f.Remarks,
		f.SignedDate, f.StartDate, f.EndDate, f.Penalty, f.ClientPicName, f.ClientID,
	)
	if err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("contract not found")
	}
	return replaceProducts(ctx, t.q, contractProducts, params.ID, params.ProductIDs)
}

func connectProducts(ctx context.Context, q querier, link productLink, ownerID uuid.UUID, productIDs []uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, product_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING`, link.table, link.column)
	if _, err := q.Exec(ctx, query, ownerID, productIDs); err != nil {
		return fmt.Errorf("connect %s: %w", link.table, err)
	}
	return nil
}

// replaceProducts swaps the product set. A nil slice leaves it untouched.
func replaceProducts(ctx context.Context, q querier, link productLink, ownerID uuid.UUID, productIDs []uuid.UUID) error {
	if productIDs == nil {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, link.table, link.column)
	if _, err := q.Exec(ctx, query, ownerID); err != nil {
		return fmt.Errorf("clear %s: %w", link.table, err)
	}
	return connectProducts(ctx, q, link, ownerID, productIDs)
}
