package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"backoffice_backend/internal/events"
	"backoffice_backend/internal/pipeline/domain"
	"backoffice_backend/internal/pipeline/transport"
	"backoffice_backend/internal/regnumber"
	"backoffice_backend/platform/apperr"
	"backoffice_backend/platform/logger"
	"backoffice_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seqGen struct{ n int }

func (g *seqGen) Next(_ context.Context, kind regnumber.Kind) (string, error) {
	g.n++
	return regnumber.Format(kind, 2026, g.n), nil
}

type fixture struct {
	store      *memStore
	bus        *events.InMemoryBus
	svc        *Service
	actor      uuid.UUID
	stageTypes map[domain.Stage]uuid.UUID
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	bus := events.NewInMemoryBus(logger.Discard())
	f := &fixture{
		store:      store,
		bus:        bus,
		actor:      store.addUser("dewi"),
		stageTypes: store.seedStageTypes(),
		now:        time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC),
	}
	f.svc = New(store, &seqGen{}, bus, validator.New(), logger.Discard())
	f.svc.now = func() time.Time { return f.now }
	t.Cleanup(bus.Wait)
	return f
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) create(t *testing.T, req transport.CreatePipelineRequest) transport.PipelineResponse {
	t.Helper()
	if req.Category == nil {
		req.Category = ptr("enterprise")
	}
	resp, err := f.svc.Create(context.Background(), f.actor, req)
	require.NoError(t, err)
	return resp
}

func (f *fixture) update(t *testing.T, id uuid.UUID, req transport.UpdatePipelineRequest) (transport.PipelineResponse, error) {
	t.Helper()
	return f.svc.Update(context.Background(), f.actor, id, req)
}

func (f *fixture) fullChain(t *testing.T) transport.PipelineResponse {
	t.Helper()
	return f.create(t, transport.CreatePipelineRequest{
		Lead:        &transport.LeadInput{Name: ptr("Budi")},
		Opportunity: &transport.OpportunityInput{Title: "Fleet renewal"},
		Quote:       &transport.QuoteInput{Title: "Fleet renewal Q1"},
		Contract:    &transport.ContractInput{Title: "Fleet renewal 2026"},
	})
}

func transitionReq(action domain.Action, target domain.Stage) transport.UpdatePipelineRequest {
	return transport.UpdatePipelineRequest{
		Transition: &transport.TransitionInput{Action: string(action), TargetStage: string(target)},
	}
}

func requireKind(t *testing.T, err error, kind apperr.Kind, message string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok, "expected a typed error, got %v", err)
	assert.Equal(t, kind, appErr.Kind)
	if message != "" {
		assert.Equal(t, message, appErr.Message)
	}
}

func TestCreateWithLeadRecordsInitialStage(t *testing.T) {
	f := newFixture(t)

	resp := f.create(t, transport.CreatePipelineRequest{
		Lead: &transport.LeadInput{Name: ptr("Budi"), Phone: ptr("+31 20 123 4567")},
	})

	require.NotNil(t, resp.LeadID)
	assert.Nil(t, resp.OpportunityID)
	assert.True(t, resp.HasLead)
	assert.False(t, resp.HasOpportunity)
	require.NotNil(t, resp.Lead)
	assert.Equal(t, "+31201234567", *resp.Lead.Phone)
	require.NotNil(t, resp.LeadNumber)
	assert.True(t, strings.HasPrefix(*resp.LeadNumber, "LEA-2026-"))
	require.NotNil(t, resp.RegNumber)
	assert.True(t, strings.HasPrefix(*resp.RegNumber, "PIP-2026-"))

	require.Len(t, resp.StageList, 1)
	assert.Equal(t, "lead", resp.StageList[0].StageName)
	assert.Equal(t, "Pipeline created - Lead created", resp.StageList[0].Comment)
	assert.Equal(t, "dewi", resp.StageList[0].CreatedByName)
	require.NotNil(t, resp.StageTypeID)
	assert.Equal(t, f.stageTypes[domain.StageLead], *resp.StageTypeID)
}

func TestCreateWithoutEntities(t *testing.T) {
	f := newFixture(t)

	resp := f.create(t, transport.CreatePipelineRequest{})

	assert.Nil(t, resp.LeadID)
	require.Len(t, resp.StageList, 1)
	assert.Equal(t, "Pipeline created", resp.StageList[0].Comment)
}

func TestCreateFullChainLinksParents(t *testing.T) {
	f := newFixture(t)

	resp := f.fullChain(t)

	require.NotNil(t, resp.Opportunity)
	require.NotNil(t, resp.Quote)
	require.NotNil(t, resp.Contract)
	assert.Equal(t, resp.LeadID, resp.Opportunity.LeadID)
	assert.Equal(t, resp.OpportunityID, resp.Quote.OpportunityID)
	assert.Equal(t, resp.QuoteID, resp.Contract.QuoteID)
	assert.Equal(t,
		"Pipeline created - Lead created, Opportunity created, Quote created, Contract created",
		resp.StageList[0].Comment)
}

func TestCreateRequiresCategory(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.actor, transport.CreatePipelineRequest{
		Category: ptr("  "),
		Lead:     &transport.LeadInput{Name: ptr("Budi")},
	})

	requireKind(t, err, apperr.KindMissingField, "Category is required when creating a pipeline")
	assert.Zero(t, f.store.countLeads())
	assert.Zero(t, f.store.countPipelines())
}

func TestCreateRejectsBrokenChains(t *testing.T) {
	tests := []struct {
		name    string
		req     transport.CreatePipelineRequest
		message string
	}{
		{
			name:    "quote without opportunity",
			req:     transport.CreatePipelineRequest{Quote: &transport.QuoteInput{Title: "Q"}},
			message: "Quote requires an Opportunity to exist",
		},
		{
			name: "contract without quote",
			req: transport.CreatePipelineRequest{
				Opportunity: &transport.OpportunityInput{Title: "O"},
				Contract:    &transport.ContractInput{Title: "C"},
			},
			message: "Contract requires a Quote to exist",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.req.Category = ptr("enterprise")

			_, err := f.svc.Create(context.Background(), f.actor, tc.req)

			requireKind(t, err, apperr.KindValidation, tc.message)
			assert.Zero(t, f.store.countOpportunities())
			assert.Zero(t, f.store.countQuotes())
			assert.Zero(t, f.store.countPipelines())
		})
	}
}

func TestCreateOpportunityWithoutLeadIsAllowed(t *testing.T) {
	f := newFixture(t)

	resp := f.create(t, transport.CreatePipelineRequest{
		Opportunity: &transport.OpportunityInput{Title: "Walk-in"},
	})

	assert.Nil(t, resp.LeadID)
	require.NotNil(t, resp.Opportunity)
	assert.Nil(t, resp.Opportunity.LeadID)
}

func TestCreateSanitizesFreeText(t *testing.T) {
	f := newFixture(t)

	resp := f.create(t, transport.CreatePipelineRequest{
		Opportunity: &transport.OpportunityInput{
			Title:   "<b>Rooftop</b>   solar",
			Remarks: ptr("call <script>x</script>after  5"),
		},
	})

	require.NotNil(t, resp.Opportunity)
	assert.Equal(t, "Rooftop solar", resp.Opportunity.Title)
	require.NotNil(t, resp.Opportunity.Remarks)
	assert.Equal(t, "call xafter 5", *resp.Opportunity.Remarks)
}

func TestCreateWithoutStageTypesFails(t *testing.T) {
	f := newFixture(t)
	f.store.stageTypes = nil

	_, err := f.svc.Create(context.Background(), f.actor, transport.CreatePipelineRequest{
		Category: ptr("enterprise"),
		Lead:     &transport.LeadInput{Name: ptr("Budi")},
	})

	requireKind(t, err, apperr.KindValidation, "No initial stage type found for pipeline")
	assert.Zero(t, f.store.countLeads())
}

func TestCreateRollsBackWhenHistoryWriteFails(t *testing.T) {
	f := newFixture(t)
	f.store.failAppendStage = errors.New("disk full")

	_, err := f.svc.Create(context.Background(), f.actor, transport.CreatePipelineRequest{
		Category:    ptr("enterprise"),
		Lead:        &transport.LeadInput{Name: ptr("Budi")},
		Opportunity: &transport.OpportunityInput{Title: "O"},
	})

	require.Error(t, err)
	assert.Zero(t, f.store.countLeads())
	assert.Zero(t, f.store.countOpportunities())
	assert.Zero(t, f.store.countPipelines())
}

func TestCreateUsesSuppliedStage(t *testing.T) {
	f := newFixture(t)
	quoteStage := f.stageTypes[domain.StageQuote]

	resp := f.create(t, transport.CreatePipelineRequest{
		Lead:  &transport.LeadInput{Name: ptr("Budi")},
		Stage: &transport.StageInput{StageTypeID: quoteStage, Comment: ptr("imported")},
	})

	require.Len(t, resp.StageList, 1)
	assert.Equal(t, "quote", resp.StageList[0].StageName)
	assert.Equal(t, "imported", resp.StageList[0].Comment)
}

func TestCreateDeduplicatesMembers(t *testing.T) {
	f := newFixture(t)
	ana := f.store.addUser("ana")
	rio := f.store.addUser("rio")

	resp := f.create(t, transport.CreatePipelineRequest{MemberIDs: []uuid.UUID{ana, rio, ana}})

	assert.Equal(t, []uuid.UUID{ana, rio}, resp.MemberIDs)
	assert.Equal(t, "ana, rio", resp.Members)
}

func TestCreateValidatesShape(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.actor, transport.CreatePipelineRequest{
		Category:    ptr("enterprise"),
		Opportunity: &transport.OpportunityInput{},
	})

	requireKind(t, err, apperr.KindValidation, "validation failed")
}

func TestUpdateUpdatesExistingAndCreatesMissing(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, transport.CreatePipelineRequest{Lead: &transport.LeadInput{Name: ptr("Budi")}})

	resp, err := f.update(t, created.ID, transport.UpdatePipelineRequest{
		Lead:        &transport.LeadInput{Email: ptr("budi@example.com")},
		Opportunity: &transport.OpportunityInput{Title: "Fleet renewal"},
	})

	require.NoError(t, err)
	assert.Equal(t, created.LeadID, resp.LeadID)
	assert.Equal(t, "Budi", *resp.Lead.Name)
	assert.Equal(t, "budi@example.com", *resp.Lead.Email)
	require.NotNil(t, resp.Opportunity)
	assert.Equal(t, created.LeadID, resp.Opportunity.LeadID)
	assert.Equal(t, 1, f.store.countLeads())
}

func TestUpdateModeRunsOnlyThatHandler(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, transport.CreatePipelineRequest{
		Lead:        &transport.LeadInput{Name: ptr("Budi")},
		Opportunity: &transport.OpportunityInput{Title: "Fleet renewal"},
	})

	resp, err := f.update(t, created.ID, transport.UpdatePipelineRequest{
		Mode:        ptr("opportunity"),
		Lead:        &transport.LeadInput{Name: ptr("Ignored")},
		Opportunity: &transport.OpportunityInput{Title: "Fleet renewal 2026", Amount: ptr(1500.0)},
	})

	require.NoError(t, err)
	assert.Equal(t, "Budi", *resp.Lead.Name)
	assert.Equal(t, "Fleet renewal 2026", resp.Opportunity.Title)
	assert.Equal(t, 1500.0, *resp.Opportunity.Amount)
}

func TestUpdateModeCannotBreakChain(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, transport.CreatePipelineRequest{Lead: &transport.LeadInput{Name: ptr("Budi")}})

	_, err := f.update(t, created.ID, transport.UpdatePipelineRequest{
		Mode:        ptr("quote"),
		Opportunity: &transport.OpportunityInput{Title: "O"},
		Quote:       &transport.QuoteInput{Title: "Q"},
	})

	requireKind(t, err, apperr.KindValidation, "Quote requires an Opportunity to exist")
	assert.Zero(t, f.store.countQuotes())

	got, err := f.svc.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.QuoteID)
}

func TestUpdateRejectsContractWithoutQuote(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, transport.CreatePipelineRequest{
		Opportunity: &transport.OpportunityInput{Title: "O"},
	})

	_, err := f.update(t, created.ID, transport.UpdatePipelineRequest{
		Contract: &transport.ContractInput{Title: "C"},
	})

	requireKind(t, err, apperr.KindValidation, "Contract requires a Quote to exist")
	assert.Zero(t, f.store.countContracts())
}

func TestUpdateUnknownPipeline(t *testing.T) {
	f := newFixture(t)

	_, err := f.update(t, uuid.New(), transport.UpdatePipelineRequest{Category: ptr("smb")})

	requireKind(t, err, apperr.KindNotFound, "")
}

func TestUpdatePipelineScalars(t *testing.T) {
	f := newFixture(t)
	owner := f.store.addUser("owner")
	ana := f.store.addUser("ana")
	created := f.create(t, transport.CreatePipelineRequest{AssigneeID: &owner, MemberIDs: []uuid.UUID{ana}})

	resp, err := f.update(t, created.ID, transport.UpdatePipelineRequest{Category: ptr("smb")})
	require.NoError(t, err)
	assert.Equal(t, "smb", resp.Category)
	assert.Equal(t, &owner, resp.AssigneeID)
	assert.Equal(t, []uuid.UUID{ana}, resp.MemberIDs)
	require.NotNil(t, resp.UpdatedByName)
	assert.Equal(t, "dewi", *resp.UpdatedByName)

	resp, err = f.update(t, created.ID, transport.UpdatePipelineRequest{
		AssigneeID: transport.SetUUID(nil),
		MemberIDs:  []uuid.UUID{},
	})
	require.NoError(t, err)
	assert.Nil(t, resp.AssigneeID)
	assert.Empty(t, resp.MemberIDs)
	assert.Equal(t, "smb", resp.Category)
}

func TestUpdateProductsNilKeepsEmptyClears(t *testing.T) {
	f := newFixture(t)
	panel := f.store.addProduct("Solar panel")
	created := f.create(t, transport.CreatePipelineRequest{
		Lead: &transport.LeadInput{Name: ptr("Budi"), ProductIDs: []uuid.UUID{panel}},
	})

	resp, err := f.update(t, created.ID, transport.UpdatePipelineRequest{Lead: &transport.LeadInput{Role: ptr("CTO")}})
	require.NoError(t, err)
	assert.Equal(t, "Solar panel", resp.Lead.ProductNames)

	resp, err = f.update(t, created.ID, transport.UpdatePipelineRequest{Lead: &transport.LeadInput{ProductIDs: []uuid.UUID{}}})
	require.NoError(t, err)
	assert.Empty(t, resp.Lead.ProductIDs)
}

func TestUpdateAppendsSuppliedStage(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, transport.CreatePipelineRequest{})

	resp, err := f.update(t, created.ID, transport.UpdatePipelineRequest{
		Stage: &transport.StageInput{StageTypeID: f.stageTypes[domain.StageOpportunity], Comment: ptr("call booked")},
	})

	require.NoError(t, err)
	require.Len(t, resp.StageList, 2)
	assert.Equal(t, "call booked", resp.StageList[0].Comment)
	assert.Equal(t, "opportunity", *resp.StageName)
}

func TestProgressSynthesizesOpportunityFromLead(t *testing.T) {
	f := newFixture(t)
	client := f.store.addClient("PT Maju Jaya")
	panel := f.store.addProduct("Solar panel")
	created := f.create(t, transport.CreatePipelineRequest{
		Lead: &transport.LeadInput{
			Name:       ptr("Budi"),
			Remarks:    ptr("rooftop"),
			ClientID:   &client,
			ProductIDs: []uuid.UUID{panel},
		},
	})

	resp, err := f.update(t, created.ID, transitionReq(domain.ActionProgress, domain.StageOpportunity))

	require.NoError(t, err)
	require.NotNil(t, resp.Opportunity)
	opp := resp.Opportunity
	assert.Equal(t, "PT Maju Jaya", opp.Title)
	assert.Equal(t, "PT Maju Jaya", opp.ClientName)
	assert.Equal(t, "rooftop", *opp.Remarks)
	assert.Equal(t, []uuid.UUID{panel}, opp.ProductIDs)
	assert.Equal(t, f.now.Add(30*24*time.Hour), *opp.DueDate)
	assert.Equal(t, created.LeadID, opp.LeadID)

	require.Len(t, resp.StageList, 2)
	assert.Equal(t, "Progressed to Opportunity", resp.StageList[0].Comment)
	assert.Equal(t, "opportunity", resp.StageList[0].StageName)
}

func TestProgressOpportunityTitleFallbacks(t *testing.T) {
	tests := []struct {
		name string
		lead *transport.LeadInput
		want string
	}{
		{name: "lead name is not a title", lead: &transport.LeadInput{Name: ptr("Acme")}, want: "New Opportunity"},
		{name: "default", lead: &transport.LeadInput{Email: ptr("x@example.com")}, want: "New Opportunity"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			created := f.create(t, transport.CreatePipelineRequest{Lead: tc.lead})

			resp, err := f.update(t, created.ID, transitionReq(domain.ActionProgress, domain.StageOpportunity))

			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.Opportunity.Title)
		})
	}
}

func TestProgressCarriesAmountsForward(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, transport.CreatePipelineRequest{
		Opportunity: &transport.OpportunityInput{Title: "Fleet", Currency: ptr("IDR"), Amount: ptr(250.0)},
	})

	resp, err := f.update(t, created.ID, transitionReq(domain.ActionProgress, domain.StageQuote))
	require.NoError(t, err)
	assert.Equal(t, "Fleet", resp.Quote.Title)
	assert.Equal(t, "IDR", *resp.Quote.Currency)
	assert.Equal(t, 250.0, *resp.Quote.Amount)

	resp, err = f.update(t, created.ID, transitionReq(domain.ActionProgress, domain.StageContract))
	require.NoError(t, err)
	assert.Equal(t, "Fleet", resp.Contract.Title)
	assert.Equal(t, 250.0, *resp.Contract.Amount)
	assert.Nil(t, resp.Contract.StartDate)
}

func TestProgressToExistingStageOnlyRunsOtherPayloads(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, transport.CreatePipelineRequest{
		Lead:        &transport.LeadInput{Name: ptr("Budi")},
		Opportunity: &transport.OpportunityInput{Title: "Fleet"},
	})

	req := transitionReq(domain.ActionProgress, domain.StageOpportunity)
	req.Lead = &transport.LeadInput{Role: ptr("CFO")}
	req.Opportunity = &transport.OpportunityInput{Title: "Dropped"}
	resp, err := f.update(t, created.ID, req)

	require.NoError(t, err)
	assert.Equal(t, "CFO", *resp.Lead.Role)
	assert.Equal(t, "Fleet", resp.Opportunity.Title)
	assert.Equal(t, 1, f.store.countOpportunities())
	assert.Len(t, resp.StageList, 1)
}

func TestIllegalTransitions(t *testing.T) {
	tests := []struct {
		name    string
		setup   transport.CreatePipelineRequest
		action  domain.Action
		target  domain.Stage
		message string
	}{
		{
			name:    "progress to lead",
			setup:   transport.CreatePipelineRequest{Lead: &transport.LeadInput{Name: ptr("Budi")}},
			action:  domain.ActionProgress,
			target:  domain.StageLead,
			message: "Cannot progress to Lead - it's the first stage",
		},
		{
			name:    "progress skipping a stage",
			setup:   transport.CreatePipelineRequest{Lead: &transport.LeadInput{Name: ptr("Budi")}},
			action:  domain.ActionProgress,
			target:  domain.StageQuote,
			message: "Cannot progress to Quote without an Opportunity",
		},
		{
			name:    "progress an empty pipeline",
			setup:   transport.CreatePipelineRequest{},
			action:  domain.ActionProgress,
			target:  domain.StageOpportunity,
			message: "Cannot progress to Opportunity without a Lead",
		},
		{
			name: "regress to contract",
			setup: transport.CreatePipelineRequest{
				Lead:        &transport.LeadInput{Name: ptr("Budi")},
				Opportunity: &transport.OpportunityInput{Title: "O"},
			},
			action:  domain.ActionRegress,
			target:  domain.StageContract,
			message: "Cannot regress to Contract - it's the last stage",
		},
		{
			name:    "regress with a single entity",
			setup:   transport.CreatePipelineRequest{Opportunity: &transport.OpportunityInput{Title: "O"}},
			action:  domain.ActionRegress,
			target:  domain.StageLead,
			message: "Cannot regress - pipeline has only one stage entity",
		},
		{
			name: "regress without a later stage",
			setup: transport.CreatePipelineRequest{
				Lead:        &transport.LeadInput{Name: ptr("Budi")},
				Opportunity: &transport.OpportunityInput{Title: "O"},
			},
			action:  domain.ActionRegress,
			target:  domain.StageQuote,
			message: "Cannot regress to Quote - no Contract exists",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			created := f.create(t, tc.setup)

			_, err := f.update(t, created.ID, transitionReq(tc.action, tc.target))

			requireKind(t, err, apperr.KindIllegalTransition, tc.message)
			got, err := f.svc.GetByID(context.Background(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, created.LeadID, got.LeadID)
			assert.Equal(t, created.OpportunityID, got.OpportunityID)
			assert.Len(t, got.StageList, 1)
		})
	}
}

func TestRegressClearsLaterStagesAndKeepsEntities(t *testing.T) {
	f := newFixture(t)
	created := f.fullChain(t)

	resp, err := f.update(t, created.ID, transitionReq(domain.ActionRegress, domain.StageOpportunity))

	require.NoError(t, err)
	assert.Equal(t, created.LeadID, resp.LeadID)
	assert.Equal(t, created.OpportunityID, resp.OpportunityID)
	assert.Nil(t, resp.QuoteID)
	assert.Nil(t, resp.ContractID)
	assert.Nil(t, resp.Quote)
	assert.Nil(t, resp.Contract)
	assert.False(t, resp.HasQuote)
	assert.Equal(t, 1, f.store.countQuotes())
	assert.Equal(t, 1, f.store.countContracts())
	assert.Equal(t, "Regressed to Opportunity", resp.StageList[0].Comment)
}

func TestProgressAfterRegressCreatesFreshEntity(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, transport.CreatePipelineRequest{
		Lead:        &transport.LeadInput{Name: ptr("Budi")},
		Opportunity: &transport.OpportunityInput{Title: "Fleet"},
	})

	_, err := f.update(t, created.ID, transitionReq(domain.ActionRegress, domain.StageLead))
	require.NoError(t, err)

	resp, err := f.update(t, created.ID, transitionReq(domain.ActionProgress, domain.StageOpportunity))
	require.NoError(t, err)
	require.NotNil(t, resp.OpportunityID)
	assert.NotEqual(t, *created.OpportunityID, *resp.OpportunityID)
	assert.Equal(t, "New Opportunity", resp.Opportunity.Title)
	assert.Equal(t, 2, f.store.countOpportunities())
}

func TestRegressToMissingLeadEmptiesPipeline(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, transport.CreatePipelineRequest{
		Opportunity: &transport.OpportunityInput{Title: "Walk-in"},
		Quote:       &transport.QuoteInput{Title: "Walk-in Q"},
	})

	resp, err := f.update(t, created.ID, transitionReq(domain.ActionRegress, domain.StageLead))
	require.NoError(t, err)
	assert.Nil(t, resp.LeadID)
	assert.Nil(t, resp.OpportunityID)
	assert.Nil(t, resp.QuoteID)
	assert.Equal(t, "Regressed to Lead", resp.StageList[0].Comment)
	assert.Equal(t, 1, f.store.countOpportunities())

	list, err := f.svc.List(context.Background(), transport.ListPipelinesRequest{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "lead", list.Items[0].CurrentStage)
	assert.False(t, list.Items[0].HasLead)

	// Nothing left to progress from.
	_, err = f.update(t, created.ID, transitionReq(domain.ActionProgress, domain.StageOpportunity))
	requireKind(t, err, apperr.KindIllegalTransition, "Cannot progress to Opportunity without a Lead")
}

func TestTransitionUsesCallerStage(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, transport.CreatePipelineRequest{Lead: &transport.LeadInput{Name: ptr("Budi")}})

	req := transitionReq(domain.ActionProgress, domain.StageOpportunity)
	req.Stage = &transport.StageInput{StageTypeID: f.stageTypes[domain.StageOpportunity], Comment: ptr("qualified")}
	resp, err := f.update(t, created.ID, req)

	require.NoError(t, err)
	require.Len(t, resp.StageList, 2)
	assert.Equal(t, "qualified", resp.StageList[0].Comment)
}

func TestTransitionSkipsHistoryWithoutStageType(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, transport.CreatePipelineRequest{Lead: &transport.LeadInput{Name: ptr("Budi")}})
	f.store.stageTypes = f.store.stageTypes[:1]

	resp, err := f.update(t, created.ID, transitionReq(domain.ActionProgress, domain.StageOpportunity))

	require.NoError(t, err)
	assert.NotNil(t, resp.OpportunityID)
	assert.Len(t, resp.StageList, 1)
}

func TestTransitionIgnoresPipelineScalars(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, transport.CreatePipelineRequest{Lead: &transport.LeadInput{Name: ptr("Budi")}})

	req := transitionReq(domain.ActionProgress, domain.StageOpportunity)
	req.Category = ptr("smb")
	resp, err := f.update(t, created.ID, req)

	require.NoError(t, err)
	assert.Equal(t, "enterprise", resp.Category)
}

func TestStageChangedEventIsPublished(t *testing.T) {
	f := newFixture(t)
	var (
		mu  sync.Mutex
		got []events.PipelineStageChanged
	)
	f.bus.Subscribe(events.NamePipelineStageChanged, events.HandlerFunc(func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(events.PipelineStageChanged))
		return nil
	}))
	created := f.create(t, transport.CreatePipelineRequest{Lead: &transport.LeadInput{Name: ptr("Budi")}})

	_, err := f.update(t, created.ID, transitionReq(domain.ActionProgress, domain.StageOpportunity))
	require.NoError(t, err)
	f.bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "lead", got[0].FromStage)
	assert.Equal(t, "opportunity", got[0].ToStage)
	assert.Equal(t, f.actor, got[0].ActorID)
	assert.Equal(t, f.now, got[0].OccurredAt())
	assert.NotEqual(t, uuid.Nil, got[0].EventID())
	require.Len(t, got[0].DueDates, 1)
	assert.Equal(t, "opportunity", got[0].DueDates[0].Stage)
}

func TestListProjectsCurrentStage(t *testing.T) {
	f := newFixture(t)
	f.fullChain(t)
	f.create(t, transport.CreatePipelineRequest{
		Category:    ptr("smb"),
		Lead:        &transport.LeadInput{Name: ptr("Sari")},
		Opportunity: &transport.OpportunityInput{Title: "Kiosk"},
	})
	f.create(t, transport.CreatePipelineRequest{Category: ptr("smb")})

	resp, err := f.svc.List(context.Background(), transport.ListPipelinesRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Items, 3)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 1, resp.TotalPages)
	assert.Equal(t, 20, resp.PageSize)

	byStage := map[string]transport.PipelineListItem{}
	for _, item := range resp.Items {
		byStage[item.CurrentStage] = item
	}

	contract := byStage["contract"]
	assert.Nil(t, contract.Lead)
	assert.Nil(t, contract.Opportunity)
	assert.Nil(t, contract.Quote)
	assert.NotNil(t, contract.Contract)
	assert.True(t, contract.HasLead)
	assert.NotNil(t, contract.LeadNumber)

	opp := byStage["opportunity"]
	assert.Nil(t, opp.Lead)
	assert.NotNil(t, opp.Opportunity)

	_, ok := byStage["lead"]
	assert.True(t, ok, "a pipeline without entities lists as lead")
}

func TestListFiltersAndPages(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.create(t, transport.CreatePipelineRequest{Category: ptr("smb"), Lead: &transport.LeadInput{Name: ptr("Sari")}})
	}
	f.fullChain(t)

	resp, err := f.svc.List(context.Background(), transport.ListPipelinesRequest{Stage: "lead", PageSize: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.TotalPages)
	assert.Len(t, resp.Items, 1)

	resp, err = f.svc.List(context.Background(), transport.ListPipelinesRequest{Category: "enterprise"})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "contract", resp.Items[0].CurrentStage)
}

func TestListRejectsInvalidQuery(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.List(context.Background(), transport.ListPipelinesRequest{SortBy: "amount"})
	requireKind(t, err, apperr.KindValidation, "validation failed")

	_, err = f.svc.List(context.Background(), transport.ListPipelinesRequest{Page: math.MaxInt, PageSize: 100})
	requireKind(t, err, apperr.KindValidation, "validation failed")
}
