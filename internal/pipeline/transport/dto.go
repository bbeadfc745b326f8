package transport

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LeadInput carries lead fields. A nil ProductIDs leaves associations
// untouched on update, an empty one clears them.
type LeadInput struct {
	RegNumber        *string     `json:"regNumber,omitempty" validate:"omitempty,max=50"`
	Name             *string     `json:"name,omitempty" validate:"omitempty,max=200"`
	Role             *string     `json:"role,omitempty" validate:"omitempty,max=100"`
	Email            *string     `json:"email,omitempty" validate:"omitempty,email"`
	Phone            *string     `json:"phone,omitempty" validate:"omitempty,max=50"`
	LeadSource       *string     `json:"leadSource,omitempty" validate:"omitempty,max=100"`
	LeadDate         *time.Time  `json:"leadDate,omitempty"`
	LeadAddress      *string     `json:"leadAddress,omitempty" validate:"omitempty,max=500"`
	ProspectLocation *string     `json:"prospectLocation,omitempty" validate:"omitempty,max=200"`
	Remarks          *string     `json:"remarks,omitempty"`
	DueDate          *time.Time  `json:"dueDate,omitempty"`
	ApprovedDate     *time.Time  `json:"approvedDate,omitempty"`
	ClientID         *uuid.UUID  `json:"clientId,omitempty"`
	ProductIDs       []uuid.UUID `json:"productIds,omitempty"`
}

// OpportunityInput carries opportunity fields.
type OpportunityInput struct {
	RegNumber    *string     `json:"regNumber,omitempty" validate:"omitempty,max=50"`
	Title        string      `json:"title" validate:"required,min=1,max=200"`
	Currency     *string     `json:"currency,omitempty" validate:"omitempty,max=10"`
	BaseAmount   *float64    `json:"baseAmount,omitempty"`
	ExchangeRate *float64    `json:"exchangeRate,omitempty"`
	Amount       *float64    `json:"amount,omitempty"`
	Remarks      *string     `json:"remarks,omitempty"`
	DueDate      *time.Time  `json:"dueDate,omitempty"`
	ApprovedDate *time.Time  `json:"approvedDate,omitempty"`
	ClientID     *uuid.UUID  `json:"clientId,omitempty"`
	ProductIDs   []uuid.UUID `json:"productIds,omitempty"`
}

// QuoteInput carries quote fields.
type QuoteInput struct {
	RegNumber    *string     `json:"regNumber,omitempty" validate:"omitempty,max=50"`
	Title        string      `json:"title" validate:"required,min=1,max=200"`
	Currency     *string     `json:"currency,omitempty" validate:"omitempty,max=10"`
	BaseAmount   *float64    `json:"baseAmount,omitempty"`
	ExchangeRate *float64    `json:"exchangeRate,omitempty"`
	Amount       *float64    `json:"amount,omitempty"`
	Remarks      *string     `json:"remarks,omitempty"`
	DueDate      *time.Time  `json:"dueDate,omitempty"`
	ReleasedDate *time.Time  `json:"releasedDate,omitempty"`
	ApprovedDate *time.Time  `json:"approvedDate,omitempty"`
	ExpiredDate  *time.Time  `json:"expiredDate,omitempty"`
	ClientID     *uuid.UUID  `json:"clientId,omitempty"`
	ProductIDs   []uuid.UUID `json:"productIds,omitempty"`
}

// ContractInput carries contract fields.
type ContractInput struct {
	RegNumber     *string     `json:"regNumber,omitempty" validate:"omitempty,max=50"`
	Title         string      `json:"title" validate:"required,min=1,max=200"`
	Currency      *string     `json:"currency,omitempty" validate:"omitempty,max=10"`
	BaseAmount    *float64    `json:"baseAmount,omitempty"`
	ExchangeRate  *float64    `json:"exchangeRate,omitempty"`
	Amount        *float64    `json:"amount,omitempty"`
	Remarks       *string     `json:"remarks,omitempty"`
	SignedDate    *time.Time  `json:"signedDate,omitempty"`
	StartDate     *time.Time  `json:"startDate,omitempty"`
	EndDate       *time.Time  `json:"endDate,omitempty"`
	Penalty       *bool       `json:"penalty,omitempty"`
	ClientPicName *string     `json:"clientPicName,omitempty" validate:"omitempty,max=200"`
	ClientID      *uuid.UUID  `json:"clientId,omitempty"`
	ProductIDs    []uuid.UUID `json:"productIds,omitempty"`
}

// StageInput is a caller-supplied stage history entry.
type StageInput struct {
	StageTypeID uuid.UUID `json:"stageTypeId" validate:"required"`
	Comment     *string   `json:"comment,omitempty" validate:"omitempty,max=1000"`
}

// TransitionInput asks for a PROGRESS or REGRESS along the stage chain.
type TransitionInput struct {
	Action      string `json:"action" validate:"required,oneof=PROGRESS REGRESS"`
	TargetStage string `json:"targetStage" validate:"required,oneof=lead opportunity quote contract"`
}

// CreatePipelineRequest contains data for creating a pipeline.
// Category is checked by the service so its absence reports a missing field.
type CreatePipelineRequest struct {
	RegNumber   *string           `json:"regNumber,omitempty" validate:"omitempty,max=50"`
	Category    *string           `json:"category,omitempty" validate:"omitempty,max=100"`
	AssigneeID  *uuid.UUID        `json:"assigneeId,omitempty"`
	MemberIDs   []uuid.UUID       `json:"memberIds,omitempty" validate:"omitempty,dive,required"`
	Lead        *LeadInput        `json:"lead,omitempty"`
	Opportunity *OpportunityInput `json:"opportunity,omitempty"`
	Quote       *QuoteInput       `json:"quote,omitempty"`
	Contract    *ContractInput    `json:"contract,omitempty"`
	Stage       *StageInput       `json:"stage,omitempty"`
}

// UpdatePipelineRequest contains data for updating a pipeline or moving it
// along the stage chain.
type UpdatePipelineRequest struct {
	Category    *string           `json:"category,omitempty" validate:"omitempty,max=100"`
	AssigneeID  OptionalUUID      `json:"assigneeId"`
	MemberIDs   []uuid.UUID       `json:"memberIds,omitempty" validate:"omitempty,dive,required"`
	Mode        *string           `json:"mode,omitempty" validate:"omitempty,oneof=lead opportunity quote contract"`
	Lead        *LeadInput        `json:"lead,omitempty"`
	Opportunity *OpportunityInput `json:"opportunity,omitempty"`
	Quote       *QuoteInput       `json:"quote,omitempty"`
	Contract    *ContractInput    `json:"contract,omitempty"`
	Stage       *StageInput       `json:"stage,omitempty"`
	Transition  *TransitionInput  `json:"transition,omitempty"`
}

// OptionalUUID distinguishes an absent JSON field from an explicit null.
type OptionalUUID struct {
	Set   bool
	Value *uuid.UUID
}

// SetUUID returns an OptionalUUID that is present with value id (nil clears).
func SetUUID(id *uuid.UUID) OptionalUUID {
	return OptionalUUID{Set: true, Value: id}
}

// UnmarshalJSON marks the field as present and decodes null as a clear.
func (o *OptionalUUID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	o.Value = &id
	return nil
}

// MarshalJSON writes the value or null.
func (o OptionalUUID) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// ListPipelinesRequest contains list filters, pagination and sorting.
type ListPipelinesRequest struct {
	Category   string `form:"category" validate:"omitempty,max=100"`
	AssigneeID string `form:"assigneeId" validate:"omitempty,uuid"`
	MemberID   string `form:"memberId" validate:"omitempty,uuid"`
	Stage      string `form:"stage" validate:"omitempty,oneof=lead opportunity quote contract"`
	Search     string `form:"search" validate:"omitempty,max=100"`
	Page       int    `form:"page" validate:"omitempty,min=1,max=100000"`
	PageSize   int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
	SortBy     string `form:"sortBy" validate:"omitempty,oneof=regNumber category createdAt updatedAt"`
	SortOrder  string `form:"sortOrder" validate:"omitempty,oneof=asc desc"`
}
