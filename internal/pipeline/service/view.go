package service

import (
	"cmp"
	"slices"
	"strings"

	"backoffice_backend/internal/pipeline/domain"
	"backoffice_backend/internal/pipeline/repository"
	"backoffice_backend/internal/pipeline/transport"

	"github.com/google/uuid"
)

// ToResponse builds the detail projection of a pipeline.
func ToResponse(p repository.Pipeline) transport.PipelineResponse {
	return transport.PipelineResponse{
		PipelineView:  toView(p),
		LeadID:        p.Refs.LeadID,
		OpportunityID: p.Refs.OpportunityID,
		QuoteID:       p.Refs.QuoteID,
		ContractID:    p.Refs.ContractID,
	}
}

// ToListItem builds the list projection: only the current stage entity is
// kept and the stage reference ids are left out.
func ToListItem(p repository.Pipeline) transport.PipelineListItem {
	view := toView(p)
	current := currentStage(p.Refs)

	switch current {
	case domain.StageContract:
		view.Lead, view.Opportunity, view.Quote = nil, nil, nil
	case domain.StageQuote:
		view.Lead, view.Opportunity = nil, nil
	case domain.StageOpportunity:
		view.Lead = nil
	}

	return transport.PipelineListItem{PipelineView: view, CurrentStage: string(current)}
}

// currentStage is the furthest referenced stage; a pipeline without any
// stage entity counts as a lead.
func currentStage(refs domain.Refs) domain.Stage {
	if stage, ok := domain.CurrentStage(refs); ok {
		return stage
	}
	return domain.StageLead
}

func toView(p repository.Pipeline) transport.PipelineView {
	view := transport.PipelineView{
		ID:          p.ID,
		RegNumber:   p.RegNumber,
		Category:    p.Category,
		AssigneeID:  p.AssigneeID,
		CreatedByID: p.CreatedByID,
		UpdatedByID: p.UpdatedByID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		MemberIDs:   make([]uuid.UUID, 0, len(p.Members)),
		StageList:   make([]transport.StageView, 0, len(p.Stages)),
	}
	view.AssigneeName = username(p.Assignee)
	view.CreatedByName = username(p.CreatedBy)
	view.UpdatedByName = username(p.UpdatedBy)

	names := make([]string, 0, len(p.Members))
	for _, m := range p.Members {
		view.MemberIDs = append(view.MemberIDs, m.ID)
		names = append(names, m.Username)
	}
	view.Members = strings.Join(names, ", ")

	stages := slices.Clone(p.Stages)
	slices.SortStableFunc(stages, func(a, b repository.Stage) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	for _, st := range stages {
		view.StageList = append(view.StageList, transport.StageView{
			ID:            st.ID,
			StageName:     stageName(st),
			Comment:       deref(st.Comment),
			CreatedByName: deref(username(st.CreatedBy)),
			CreatedAt:     st.CreatedAt,
		})
	}
	if len(stages) > 0 {
		latest := stages[0]
		typeID := latest.StageTypeID
		name := stageName(latest)
		view.StageTypeID = &typeID
		view.StageName = &name
		view.StageComment = latest.Comment
	}

	if p.Lead != nil {
		view.Lead = leadView(p.Lead)
		view.LeadNumber = nonEmpty(p.Lead.RegNumber)
	}
	if p.Opportunity != nil {
		view.Opportunity = opportunityView(p.Opportunity)
		view.OpportunityNumber = nonEmpty(p.Opportunity.RegNumber)
	}
	if p.Quote != nil {
		view.Quote = quoteView(p.Quote)
		view.QuoteNumber = nonEmpty(p.Quote.RegNumber)
	}
	if p.Contract != nil {
		view.Contract = contractView(p.Contract)
		view.ContractNumber = nonEmpty(p.Contract.RegNumber)
	}

	view.HasLead = p.Refs.Has(domain.StageLead)
	view.HasOpportunity = p.Refs.Has(domain.StageOpportunity)
	view.HasQuote = p.Refs.Has(domain.StageQuote)
	view.HasContract = p.Refs.Has(domain.StageContract)
	return view
}

func leadView(l *repository.Lead) *transport.LeadView {
	names, ids := products(l.Products)
	return &transport.LeadView{
		ID:               l.ID,
		RegNumber:        l.RegNumber,
		Name:             l.Name,
		Role:             l.Role,
		Email:            l.Email,
		Phone:            l.Phone,
		LeadSource:       l.LeadSource,
		LeadDate:         l.LeadDate,
		LeadAddress:      l.LeadAddress,
		ProspectLocation: l.ProspectLocation,
		Remarks:          l.Remarks,
		DueDate:          l.DueDate,
		ApprovedDate:     l.ApprovedDate,
		ClientID:         l.ClientID,
		ClientName:       clientName(l.Client),
		ProductNames:     names,
		ProductIDs:       ids,
		CreatedAt:        l.CreatedAt,
		UpdatedAt:        l.UpdatedAt,
	}
}

func opportunityView(o *repository.Opportunity) *transport.OpportunityView {
	names, ids := products(o.Products)
	return &transport.OpportunityView{
		ID:           o.ID,
		RegNumber:    o.RegNumber,
		Title:        deref(o.Title),
		Currency:     o.Currency,
		BaseAmount:   o.BaseAmount,
		ExchangeRate: o.ExchangeRate,
		Amount:       o.Amount,
		Remarks:      o.Remarks,
		DueDate:      o.DueDate,
		ApprovedDate: o.ApprovedDate,
		ClientID:     o.ClientID,
		LeadID:       o.LeadID,
		ClientName:   clientName(o.Client),
		ProductNames: names,
		ProductIDs:   ids,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func quoteView(q *repository.Quote) *transport.QuoteView {
	names, ids := products(q.Products)
	return &transport.QuoteView{
		ID:            q.ID,
		RegNumber:     q.RegNumber,
		Title:         deref(q.Title),
		Currency:      q.Currency,
		BaseAmount:    q.BaseAmount,
		ExchangeRate:  q.ExchangeRate,
		Amount:        q.Amount,
		Remarks:       q.Remarks,
		DueDate:       q.DueDate,
		ReleasedDate:  q.ReleasedDate,
		ApprovedDate:  q.ApprovedDate,
		ExpiredDate:   q.ExpiredDate,
		ClientID:      q.ClientID,
		OpportunityID: q.OpportunityID,
		ClientName:    clientName(q.Client),
		ProductNames:  names,
		ProductIDs:    ids,
		CreatedAt:     q.CreatedAt,
		UpdatedAt:     q.UpdatedAt,
	}
}

func contractView(c *repository.Contract) *transport.ContractView {
	names, ids := products(c.Products)
	return &transport.ContractView{
		ID:            c.ID,
		RegNumber:     c.RegNumber,
		Title:         deref(c.Title),
		Currency:      c.Currency,
		BaseAmount:    c.BaseAmount,
		ExchangeRate:  c.ExchangeRate,
		Amount:        c.Amount,
		Remarks:       c.Remarks,
		SignedDate:    c.SignedDate,
		StartDate:     c.StartDate,
		EndDate:       c.EndDate,
		Penalty:       c.Penalty,
		ClientPicName: c.ClientPicName,
		ClientID:      c.ClientID,
		QuoteID:       c.QuoteID,
		ClientName:    clientName(c.Client),
		ProductNames:  names,
		ProductIDs:    ids,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func products(refs []repository.ProductRef) (string, []uuid.UUID) {
	names := make([]string, 0, len(refs))
	ids := make([]uuid.UUID, 0, len(refs))
	for _, p := range refs {
		names = append(names, p.Name)
		ids = append(ids, p.ID)
	}
	return strings.Join(names, ", "), ids
}

func clientName(c *repository.ClientRef) string {
	if c == nil {
		return ""
	}
	return c.Name
}

func username(u *repository.UserRef) *string {
	if u == nil {
		return nil
	}
	name := u.Username
	return &name
}

func stageName(st repository.Stage) string {
	if st.Type == nil {
		return ""
	}
	return st.Type.Value
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
