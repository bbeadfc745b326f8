package service

import (
	"context"
	"maps"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"backoffice_backend/internal/pipeline/domain"
	"backoffice_backend/internal/pipeline/repository"
	"backoffice_backend/platform/apperr"

	"github.com/google/uuid"
)

type memPipeline struct {
	ID          uuid.UUID
	RegNumber   *string
	Category    string
	Refs        domain.Refs
	AssigneeID  *uuid.UUID
	Members     []uuid.UUID
	CreatedByID uuid.UUID
	UpdatedByID *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type memStage struct {
	PipelineID  uuid.UUID
	ID          uuid.UUID
	StageTypeID uuid.UUID
	Comment     *string
	CreatedByID uuid.UUID
	CreatedAt   time.Time
}

type memState struct {
	pipelines     map[uuid.UUID]memPipeline
	stages        []memStage
	leads         map[uuid.UUID]repository.Lead
	opportunities map[uuid.UUID]repository.Opportunity
	quotes        map[uuid.UUID]repository.Quote
	contracts     map[uuid.UUID]repository.Contract
	links         map[uuid.UUID][]uuid.UUID
}

func (s memState) clone() memState {
	links := make(map[uuid.UUID][]uuid.UUID, len(s.links))
	for k, v := range s.links {
		links[k] = slices.Clone(v)
	}
	return memState{
		pipelines:     maps.Clone(s.pipelines),
		stages:        slices.Clone(s.stages),
		leads:         maps.Clone(s.leads),
		opportunities: maps.Clone(s.opportunities),
		quotes:        maps.Clone(s.quotes),
		contracts:     maps.Clone(s.contracts),
		links:         links,
	}
}

// memStore is a transactional in-memory repository.Store. A failed
// WithinTx callback restores the state captured when it began.
type memStore struct {
	mu         sync.Mutex
	state      memState
	stageTypes []repository.StageType
	users      map[uuid.UUID]string
	clients    map[uuid.UUID]string
	products   map[uuid.UUID]string
	clock      time.Time

	// failAppendStage makes AppendStage fail, to exercise rollback.
	failAppendStage error
}

func newMemStore() *memStore {
	return &memStore{
		state: memState{
			pipelines:     map[uuid.UUID]memPipeline{},
			leads:         map[uuid.UUID]repository.Lead{},
			opportunities: map[uuid.UUID]repository.Opportunity{},
			quotes:        map[uuid.UUID]repository.Quote{},
			contracts:     map[uuid.UUID]repository.Contract{},
			links:         map[uuid.UUID][]uuid.UUID{},
		},
		users:    map[uuid.UUID]string{},
		clients:  map[uuid.UUID]string{},
		products: map[uuid.UUID]string{},
		clock:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

// seedStageTypes registers lead, opportunity, quote and contract in order.
func (m *memStore) seedStageTypes() map[domain.Stage]uuid.UUID {
	ids := make(map[domain.Stage]uuid.UUID, len(domain.Stages))
	for i, stage := range domain.Stages {
		id := uuid.New()
		ids[stage] = id
		m.stageTypes = append(m.stageTypes, repository.StageType{
			ID: id, Model: domain.PipelineModel, Order: i + 1, Value: string(stage),
		})
	}
	return ids
}

func (m *memStore) addUser(name string) uuid.UUID {
	id := uuid.New()
	m.users[id] = name
	return id
}

func (m *memStore) addClient(name string) uuid.UUID {
	id := uuid.New()
	m.clients[id] = name
	return id
}

func (m *memStore) addProduct(name string) uuid.UUID {
	id := uuid.New()
	m.products[id] = name
	return id
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) countLeads() int         { return len(m.state.leads) }
func (m *memStore) countOpportunities() int { return len(m.state.opportunities) }
func (m *memStore) countQuotes() int        { return len(m.state.quotes) }
func (m *memStore) countContracts() int     { return len(m.state.contracts) }
func (m *memStore) countPipelines() int     { return len(m.state.pipelines) }

func (m *memStore) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&memTx{m: m}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (m *memStore) GetPipeline(ctx context.Context, id uuid.UUID) (repository.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(id)
}

func (m *memStore) ListPipelines(ctx context.Context, params repository.ListParams) ([]repository.Pipeline, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []memPipeline
	for _, p := range m.state.pipelines {
		if params.Category != "" && p.Category != params.Category {
			continue
		}
		if params.AssigneeID != nil && (p.AssigneeID == nil || *p.AssigneeID != *params.AssigneeID) {
			continue
		}
		if params.MemberID != nil && !slices.Contains(p.Members, *params.MemberID) {
			continue
		}
		if params.Stage != "" && string(currentStage(p.Refs)) != params.Stage {
			continue
		}
		if params.Search != "" {
			needle := strings.ToLower(params.Search)
			reg := ""
			if p.RegNumber != nil {
				reg = *p.RegNumber
			}
			if !strings.Contains(strings.ToLower(reg), needle) && !strings.Contains(strings.ToLower(p.Category), needle) {
				continue
			}
		}
		matched = append(matched, p)
	}

	asc := params.SortOrder == "asc"
	sort.SliceStable(matched, func(i, j int) bool {
		if asc {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(params.Offset, total)
	end := min(start+params.Limit, total)

	out := make([]repository.Pipeline, 0, end-start)
	for _, p := range matched[start:end] {
		loaded, err := m.load(p.ID)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, loaded)
	}
	return out, total, nil
}

func (m *memStore) userRef(id *uuid.UUID) *repository.UserRef {
	if id == nil {
		return nil
	}
	name, ok := m.users[*id]
	if !ok {
		return nil
	}
	return &repository.UserRef{ID: *id, Username: name}
}

func (m *memStore) clientRef(id *uuid.UUID) *repository.ClientRef {
	if id == nil {
		return nil
	}
	name, ok := m.clients[*id]
	if !ok {
		return nil
	}
	return &repository.ClientRef{ID: *id, Name: name}
}

func (m *memStore) productRefs(entityID uuid.UUID) []repository.ProductRef {
	var out []repository.ProductRef
	for _, id := range m.state.links[entityID] {
		out = append(out, repository.ProductRef{ID: id, Name: m.products[id]})
	}
	return out
}

func (m *memStore) load(id uuid.UUID) (repository.Pipeline, error) {
	row, ok := m.state.pipelines[id]
	if !ok {
		return repository.Pipeline{}, apperr.NotFound("pipeline not found")
	}

	createdBy := row.CreatedByID
	p := repository.Pipeline{
		ID:          row.ID,
		RegNumber:   row.RegNumber,
		Category:    row.Category,
		Refs:        row.Refs,
		AssigneeID:  row.AssigneeID,
		Assignee:    m.userRef(row.AssigneeID),
		CreatedByID: &createdBy,
		CreatedBy:   m.userRef(&createdBy),
		UpdatedByID: row.UpdatedByID,
		UpdatedBy:   m.userRef(row.UpdatedByID),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	for _, memberID := range row.Members {
		if ref := m.userRef(&memberID); ref != nil {
			p.Members = append(p.Members, *ref)
		}
	}
	for _, st := range m.state.stages {
		if st.PipelineID != id {
			continue
		}
		stage := repository.Stage{ID: st.ID, StageTypeID: st.StageTypeID, Comment: st.Comment, CreatedAt: st.CreatedAt}
		for i := range m.stageTypes {
			if m.stageTypes[i].ID == st.StageTypeID {
				t := m.stageTypes[i]
				stage.Type = &t
			}
		}
		creator := st.CreatedByID
		stage.CreatedBy = m.userRef(&creator)
		p.Stages = append(p.Stages, stage)
	}

	if ref := row.Refs.LeadID; ref != nil {
		l := m.state.leads[*ref]
		l.Client = m.clientRef(l.ClientID)
		l.Products = m.productRefs(l.ID)
		p.Lead = &l
	}
	if ref := row.Refs.OpportunityID; ref != nil {
		o := m.state.opportunities[*ref]
		o.Client = m.clientRef(o.ClientID)
		o.Products = m.productRefs(o.ID)
		p.Opportunity = &o
	}
	if ref := row.Refs.QuoteID; ref != nil {
		q := m.state.quotes[*ref]
		q.Client = m.clientRef(q.ClientID)
		q.Products = m.productRefs(q.ID)
		p.Quote = &q
	}
	if ref := row.Refs.ContractID; ref != nil {
		c := m.state.contracts[*ref]
		c.Client = m.clientRef(c.ClientID)
		c.Products = m.productRefs(c.ID)
		p.Contract = &c
	}
	return p, nil
}

type memTx struct {
	m *memStore
}

var _ repository.Tx = (*memTx)(nil)
var _ repository.Store = (*memStore)(nil)

func (t *memTx) FirstStageType(ctx context.Context, model string) (repository.StageType, error) {
	for _, st := range t.m.stageTypes {
		if st.Model == model && st.Order == 1 {
			return st, nil
		}
	}
	return repository.StageType{}, apperr.NotFound("no initial stage type found for pipeline")
}

func (t *memTx) FindStageType(ctx context.Context, model, value string) (*repository.StageType, error) {
	for _, st := range t.m.stageTypes {
		if st.Model == model && st.Value == value {
			found := st
			return &found, nil
		}
	}
	return nil, nil
}

// coalesce copies every non-nil pointer field of src into dst.
func coalesce(dst, src interface{}) {
	d := reflect.ValueOf(dst).Elem()
	s := reflect.ValueOf(src)
	for i := 0; i < s.NumField(); i++ {
		if f := s.Field(i); !f.IsNil() {
			d.Field(i).Set(f)
		}
	}
}

func (t *memTx) replaceProducts(entityID uuid.UUID, ids []uuid.UUID) {
	if ids == nil {
		return
	}
	t.m.state.links[entityID] = slices.Clone(ids)
}

func (t *memTx) CreateLead(ctx context.Context, params repository.CreateLeadParams) (uuid.UUID, error) {
	now := t.m.tick()
	l := repository.Lead{ID: uuid.New(), RegNumber: params.RegNumber, LeadFields: params.Fields, CreatedAt: now, UpdatedAt: now}
	t.m.state.leads[l.ID] = l
	t.replaceProducts(l.ID, params.ProductIDs)
	return l.ID, nil
}

func (t *memTx) UpdateLead(ctx context.Context, params repository.UpdateLeadParams) error {
	l, ok := t.m.state.leads[params.ID]
	if !ok {
		return apperr.NotFound("lead not found")
	}
	coalesce(&l.LeadFields, params.Fields)
	l.UpdatedAt = t.m.tick()
	t.m.state.leads[l.ID] = l
	t.replaceProducts(l.ID, params.ProductIDs)
	return nil
}

func (t *memTx) CreateOpportunity(ctx context.Context, params repository.CreateOpportunityParams) (uuid.UUID, error) {
	now := t.m.tick()
	o := repository.Opportunity{ID: uuid.New(), RegNumber: params.RegNumber, OpportunityFields: params.Fields, LeadID: params.LeadID, CreatedAt: now, UpdatedAt: now}
	t.m.state.opportunities[o.ID] = o
	t.replaceProducts(o.ID, params.ProductIDs)
	return o.ID, nil
}

func (t *memTx) UpdateOpportunity(ctx context.Context, params repository.UpdateOpportunityParams) error {
	o, ok := t.m.state.opportunities[params.ID]
	if !ok {
		return apperr.NotFound("opportunity not found")
	}
	coalesce(&o.OpportunityFields, params.Fields)
	o.UpdatedAt = t.m.tick()
	t.m.state.opportunities[o.ID] = o
	t.replaceProducts(o.ID, params.ProductIDs)
	return nil
}

func (t *memTx) CreateQuote(ctx context.Context, params repository.CreateQuoteParams) (uuid.UUID, error) {
	now := t.m.tick()
	q := repository.Quote{ID: uuid.New(), RegNumber: params.RegNumber, QuoteFields: params.Fields, OpportunityID: params.OpportunityID, CreatedAt: now, UpdatedAt: now}
	t.m.state.quotes[q.ID] = q
	t.replaceProducts(q.ID, params.ProductIDs)
	return q.ID, nil
}

func (t *memTx) UpdateQuote(ctx context.Context, params repository.UpdateQuoteParams) error {
	q, ok := t.m.state.quotes[params.ID]
	if !ok {
		return apperr.NotFound("quote not found")
	}
	coalesce(&q.QuoteFields, params.Fields)
	q.UpdatedAt = t.m.tick()
	t.m.state.quotes[q.ID] = q
	t.replaceProducts(q.ID, params.ProductIDs)
	return nil
}

func (t *memTx) CreateContract(ctx context.Context, params repository.CreateContractParams) (uuid.UUID, error) {
	now := t.m.tick()
	c := repository.Contract{ID: uuid.New(), RegNumber: params.RegNumber, ContractFields: params.Fields, QuoteID: params.QuoteID, CreatedAt: now, UpdatedAt: now}
	t.m.state.contracts[c.ID] = c
	t.replaceProducts(c.ID, params.ProductIDs)
	return c.ID, nil
}

func (t *memTx) UpdateContract(ctx context.Context, params repository.UpdateContractParams) error {
	c, ok := t.m.state.contracts[params.ID]
	if !ok {
		return apperr.NotFound("contract not found")
	}
	coalesce(&c.ContractFields, params.Fields)
	c.UpdatedAt = t.m.tick()
	t.m.state.contracts[c.ID] = c
	t.replaceProducts(c.ID, params.ProductIDs)
	return nil
}

func (t *memTx) CreatePipeline(ctx context.Context, params repository.CreatePipelineParams) (uuid.UUID, error) {
	now := t.m.tick()
	p := memPipeline{
		ID:          uuid.New(),
		RegNumber:   params.RegNumber,
		Category:    params.Category,
		Refs:        params.Refs,
		AssigneeID:  params.AssigneeID,
		Members:     slices.Clone(params.MemberIDs),
		CreatedByID: params.CreatedByID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.m.state.pipelines[p.ID] = p

	if err := t.AppendStage(ctx, repository.AppendStageParams{
		PipelineID:  p.ID,
		StageTypeID: params.StageTypeID,
		Comment:     params.Comment,
		CreatedByID: params.CreatedByID,
	}); err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

func (t *memTx) UpdatePipeline(ctx context.Context, params repository.UpdatePipelineParams) error {
	p, ok := t.m.state.pipelines[params.ID]
	if !ok {
		return apperr.NotFound("pipeline not found")
	}
	p.Refs = params.Refs
	if params.Category != nil {
		p.Category = *params.Category
	}
	if params.AssigneeSet {
		p.AssigneeID = params.AssigneeID
	}
	if params.MemberIDs != nil {
		p.Members = slices.Clone(params.MemberIDs)
	}
	updatedBy := params.UpdatedByID
	p.UpdatedByID = &updatedBy
	p.UpdatedAt = t.m.tick()
	t.m.state.pipelines[p.ID] = p
	return nil
}

func (t *memTx) AppendStage(ctx context.Context, params repository.AppendStageParams) error {
	if t.m.failAppendStage != nil {
		return t.m.failAppendStage
	}
	t.m.state.stages = append(t.m.state.stages, memStage{
		PipelineID:  params.PipelineID,
		ID:          uuid.New(),
		StageTypeID: params.StageTypeID,
		Comment:     params.Comment,
		CreatedByID: params.CreatedByID,
		CreatedAt:   t.m.tick(),
	})
	return nil
}

func (t *memTx) LockPipeline(ctx context.Context, id uuid.UUID) (repository.Pipeline, error) {
	return t.m.load(id)
}

func (t *memTx) GetPipeline(ctx context.Context, id uuid.UUID) (repository.Pipeline, error) {
	return t.m.load(id)
}
