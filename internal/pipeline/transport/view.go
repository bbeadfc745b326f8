package transport

import (
	"time"

	"github.com/google/uuid"
)

// LeadView is a lead with its client and products flattened.
type LeadView struct {
	ID               uuid.UUID   `json:"id"`
	RegNumber        *string     `json:"regNumber"`
	Name             *string     `json:"name"`
	Role             *string     `json:"role"`
	Email            *string     `json:"email"`
	Phone            *string     `json:"phone"`
	LeadSource       *string     `json:"leadSource"`
	LeadDate         *time.Time  `json:"leadDate"`
	LeadAddress      *string     `json:"leadAddress"`
	ProspectLocation *string     `json:"prospectLocation"`
	Remarks          *string     `json:"remarks"`
	DueDate          *time.Time  `json:"dueDate"`
	ApprovedDate     *time.Time  `json:"approvedDate"`
	ClientID         *uuid.UUID  `json:"clientId"`
	ClientName       string      `json:"clientName"`
	ProductNames     string      `json:"productNames"`
	ProductIDs       []uuid.UUID `json:"productIds"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// OpportunityView is an opportunity with its client and products flattened.
type OpportunityView struct {
	ID           uuid.UUID   `json:"id"`
	RegNumber    *string     `json:"regNumber"`
	Title        string      `json:"title"`
	Currency     *string     `json:"currency"`
	BaseAmount   *float64    `json:"baseAmount"`
	ExchangeRate *float64    `json:"exchangeRate"`
	Amount       *float64    `json:"amount"`
	Remarks      *string     `json:"remarks"`
	DueDate      *time.Time  `json:"dueDate"`
	ApprovedDate *time.Time  `json:"approvedDate"`
	ClientID     *uuid.UUID  `json:"clientId"`
	LeadID       *uuid.UUID  `json:"leadId"`
	ClientName   string      `json:"clientName"`
	ProductNames string      `json:"productNames"`
	ProductIDs   []uuid.UUID `json:"productIds"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// QuoteView is a quote with its client and products flattened.
type QuoteView struct {
	ID            uuid.UUID   `json:"id"`
	RegNumber     *string     `json:"regNumber"`
	Title         string      `json:"title"`
	Currency      *string     `json:"currency"`
	BaseAmount    *float64    `json:"baseAmount"`
	ExchangeRate  *float64    `json:"exchangeRate"`
	Amount        *float64    `json:"amount"`
	Remarks       *string     `json:"remarks"`
	DueDate       *time.Time  `json:"dueDate"`
	ReleasedDate  *time.Time  `json:"releasedDate"`
	ApprovedDate  *time.Time  `json:"approvedDate"`
	ExpiredDate   *time.Time  `json:"expiredDate"`
	ClientID      *uuid.UUID  `json:"clientId"`
	OpportunityID *uuid.UUID  `json:"opportunityId"`
	ClientName    string      `json:"clientName"`
	ProductNames  string      `json:"productNames"`
	ProductIDs    []uuid.UUID `json:"productIds"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// ContractView is a contract with its client and products flattened.
type ContractView struct {
	ID            uuid.UUID   `json:"id"`
	RegNumber     *string     `json:"regNumber"`
	Title         string      `json:"title"`
	Currency      *string     `json:"currency"`
	BaseAmount    *float64    `json:"baseAmount"`
	ExchangeRate  *float64    `json:"exchangeRate"`
	Amount        *float64    `json:"amount"`
	Remarks       *string     `json:"remarks"`
	SignedDate    *time.Time  `json:"signedDate"`
	StartDate     *time.Time  `json:"startDate"`
	EndDate       *time.Time  `json:"endDate"`
	Penalty       *bool       `json:"penalty"`
	ClientPicName *string     `json:"clientPicName"`
	ClientID      *uuid.UUID  `json:"clientId"`
	QuoteID       *uuid.UUID  `json:"quoteId"`
	ClientName    string      `json:"clientName"`
	ProductNames  string      `json:"productNames"`
	ProductIDs    []uuid.UUID `json:"productIds"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// StageView is one stage history entry.
type StageView struct {
	ID            uuid.UUID `json:"id"`
	StageName     string    `json:"stageName"`
	Comment       string    `json:"comment"`
	CreatedByName string    `json:"createdByName"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PipelineView holds the fields shared by the detail and list projections.
type PipelineView struct {
	ID            uuid.UUID   `json:"id"`
	RegNumber     *string     `json:"regNumber"`
	Category      string      `json:"category"`
	AssigneeID    *uuid.UUID  `json:"assigneeId"`
	AssigneeName  *string     `json:"assigneeName,omitempty"`
	CreatedByID   *uuid.UUID  `json:"createdById"`
	CreatedByName *string     `json:"createdByName,omitempty"`
	UpdatedByID   *uuid.UUID  `json:"updatedById"`
	UpdatedByName *string     `json:"updatedByName,omitempty"`
	Members       string      `json:"members"`
	MemberIDs     []uuid.UUID `json:"memberIds"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`

	StageList    []StageView `json:"stageList"`
	StageTypeID  *uuid.UUID  `json:"stageTypeId"`
	StageName    *string     `json:"stageName"`
	StageComment *string     `json:"stageComment"`

	Lead        *LeadView        `json:"lead,omitempty"`
	Opportunity *OpportunityView `json:"opportunity,omitempty"`
	Quote       *QuoteView       `json:"quote,omitempty"`
	Contract    *ContractView    `json:"contract,omitempty"`

	HasLead           bool    `json:"hasLead"`
	HasOpportunity    bool    `json:"hasOpportunity"`
	HasQuote          bool    `json:"hasQuote"`
	HasContract       bool    `json:"hasContract"`
	LeadNumber        *string `json:"leadNumber"`
	OpportunityNumber *string `json:"opportunityNumber"`
	QuoteNumber       *string `json:"quoteNumber"`
	ContractNumber    *string `json:"contractNumber"`
}

// PipelineResponse is the detail projection returned by create, update and get.
type PipelineResponse struct {
	PipelineView
	LeadID        *uuid.UUID `json:"leadId"`
	OpportunityID *uuid.UUID `json:"opportunityId"`
	QuoteID       *uuid.UUID `json:"quoteId"`
	ContractID    *uuid.UUID `json:"contractId"`
}

// PipelineListItem is the list projection: superseded stage entities and the
// stage reference ids are left out, the current stage is spelled out.
type PipelineListItem struct {
	PipelineView
	CurrentStage string `json:"currentStage"`
}

// PipelineListResponse wraps a page of pipelines.
type PipelineListResponse struct {
	Items      []PipelineListItem `json:"items"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"pageSize"`
	TotalPages int                `json:"totalPages"`
}
