package repository

import (
	"time"

	"backoffice_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

// ClientRef is the client relation of a stage entity.
type ClientRef struct {
	ID   uuid.UUID
	Name string
}

// ProductRef is one product linked to a stage entity.
type ProductRef struct {
	ID   uuid.UUID
	Name string
}

// UserRef identifies a user by id and username.
type UserRef struct {
	ID       uuid.UUID
	Username string
}

// Lead is the entry stage entity.
type Lead struct {
	ID        uuid.UUID
	RegNumber *string
	LeadFields
	Client    *ClientRef
	Products  []ProductRef
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Opportunity is the second stage entity.
type Opportunity struct {
	ID        uuid.UUID
	RegNumber *string
	OpportunityFields
	LeadID    *uuid.UUID
	Client    *ClientRef
	Products  []ProductRef
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Quote is the third stage entity.
type Quote struct {
	ID        uuid.UUID
	RegNumber *string
	QuoteFields
	OpportunityID *uuid.UUID
	Client        *ClientRef
	Products      []ProductRef
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Contract is the terminal stage entity.
type Contract struct {
	ID        uuid.UUID
	RegNumber *string
	ContractFields
	QuoteID   *uuid.UUID
	Client    *ClientRef
	Products  []ProductRef
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StageType names a stage of a model.
type StageType struct {
	ID    uuid.UUID
	Model string
	Order int
	Value string
}

// Stage is an append-only history entry of a pipeline.
type Stage struct {
	ID          uuid.UUID
	StageTypeID uuid.UUID
	Type        *StageType
	Comment     *string
	CreatedBy   *UserRef
	CreatedAt   time.Time
}

// Pipeline is the aggregate root with its relations loaded.
type Pipeline struct {
	ID          uuid.UUID
	RegNumber   *string
	Category    string
	Refs        domain.Refs
	AssigneeID  *uuid.UUID
	Assignee    *UserRef
	Members     []UserRef
	CreatedByID *uuid.UUID
	CreatedBy   *UserRef
	UpdatedByID *uuid.UUID
	UpdatedBy   *UserRef
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Stages      []Stage

	Lead        *Lead
	Opportunity *Opportunity
	Quote       *Quote
	Contract    *Contract
}

// LeadFields are the writable lead columns. Nil leaves a column unchanged on update.
type LeadFields struct {
	Name             *string
	Role             *string
	Email            *string
	Phone            *string
	LeadSource       *string
	LeadDate         *time.Time
	LeadAddress      *string
	ProspectLocation *string
	Remarks          *string
	DueDate          *time.Time
	ApprovedDate     *time.Time
	ClientID         *uuid.UUID
}

// OpportunityFields are the writable opportunity columns.
type OpportunityFields struct {
	Title        *string
	Currency     *string
	BaseAmount   *float64
	ExchangeRate *float64
	Amount       *float64
	Remarks      *string
	DueDate      *time.Time
	ApprovedDate *time.Time
	ClientID     *uuid.UUID
}

// QuoteFields are the writable quote columns.
type QuoteFields struct {
	Title        *string
	Currency     *string
	BaseAmount   *float64
	ExchangeRate *float64
	Amount       *float64
	Remarks      *string
	DueDate      *time.Time
	ReleasedDate *time.Time
	ApprovedDate *time.Time
	ExpiredDate  *time.Time
	ClientID     *uuid.UUID
}

// ContractFields are the writable contract columns.
type ContractFields struct {
	Title         *string
	Currency      *string
	BaseAmount    *float64
	ExchangeRate  *float64
	Amount        *float64
	Remarks       *string
	SignedDate    *time.Time
	StartDate     *time.Time
	EndDate       *time.Time
	Penalty       *bool
	ClientPicName *string
	ClientID      *uuid.UUID
}

// CreateLeadParams contains parameters for creating a lead.
type CreateLeadParams struct {
	RegNumber  *string
	Fields     LeadFields
	ProductIDs []uuid.UUID
}

// UpdateLeadParams contains parameters for updating a lead.
// ProductIDs nil leaves products untouched; empty clears them.
type UpdateLeadParams struct {
	ID         uuid.UUID
	Fields     LeadFields
	ProductIDs []uuid.UUID
}

// CreateOpportunityParams contains parameters for creating an opportunity.
type CreateOpportunityParams struct {
	RegNumber  *string
	Fields     OpportunityFields
	LeadID     *uuid.UUID
	ProductIDs []uuid.UUID
}

// UpdateOpportunityParams contains parameters for updating an opportunity.
type UpdateOpportunityParams struct {
	ID         uuid.UUID
	Fields     OpportunityFields
	ProductIDs []uuid.UUID
}

// CreateQuoteParams contains parameters for creating a quote.
type CreateQuoteParams struct {
	RegNumber     *string
	Fields        QuoteFields
	OpportunityID *uuid.UUID
	ProductIDs    []uuid.UUID
}

// UpdateQuoteParams contains parameters for updating a quote.
type UpdateQuoteParams struct {
	ID         uuid.UUID
	Fields     QuoteFields
	ProductIDs []uuid.UUID
}

// CreateContractParams contains parameters for creating a contract.
type CreateContractParams struct {
	RegNumber  *string
	Fields     ContractFields
	QuoteID    *uuid.UUID
	ProductIDs []uuid.UUID
}

// UpdateContractParams contains parameters for updating a contract.
type UpdateContractParams struct {
	ID         uuid.UUID
	Fields     ContractFields
	ProductIDs []uuid.UUID
}

// CreatePipelineParams contains parameters for creating a pipeline together
// with its first history entry.
type CreatePipelineParams struct {
	RegNumber   *string
	Category    string
	Refs        domain.Refs
	AssigneeID  *uuid.UUID
	MemberIDs   []uuid.UUID
	CreatedByID uuid.UUID
	StageTypeID uuid.UUID
	Comment     *string
}

// UpdatePipelineParams contains parameters for updating a pipeline row.
// Refs are always written. Category nil, AssigneeSet false and MemberIDs nil
// leave the respective values untouched.
type UpdatePipelineParams struct {
	ID          uuid.UUID
	Refs        domain.Refs
	Category    *string
	AssigneeSet bool
	AssigneeID  *uuid.UUID
	MemberIDs   []uuid.UUID
	UpdatedByID uuid.UUID
}

// AppendStageParams contains parameters for a new history entry.
type AppendStageParams struct {
	PipelineID  uuid.UUID
	StageTypeID uuid.UUID
	Comment     *string
	CreatedByID uuid.UUID
}

// ListParams contains list filters, pagination and sorting.
type ListParams struct {
	Category   string
	AssigneeID *uuid.UUID
	MemberID   *uuid.UUID
	Stage      string
	Search     string
	Offset     int
	Limit      int
	SortBy     string
	SortOrder  string
}
