package handler

import (
	"context"
	"net/http"

	"backoffice_backend/internal/pipeline/transport"
	"backoffice_backend/platform/httpkit"
	"backoffice_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PipelineService is the part of the pipeline service the handler calls.
type PipelineService interface {
	Create(ctx context.Context, actorID uuid.UUID, req transport.CreatePipelineRequest) (transport.PipelineResponse, error)
	Update(ctx context.Context, actorID, id uuid.UUID, req transport.UpdatePipelineRequest) (transport.PipelineResponse, error)
	List(ctx context.Context, req transport.ListPipelinesRequest) (transport.PipelineListResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (transport.PipelineResponse, error)
}

// Handler handles HTTP requests for pipelines.
type Handler struct {
	svc PipelineService
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid pipeline id"
)

// New creates a new pipeline handler.
func New(svc PipelineService, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the pipeline routes on rg. writeLimit, when not nil,
// guards the mutating routes only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, writeLimit gin.HandlerFunc) {
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)

	writes := rg.Group("")
	if writeLimit != nil {
		writes.Use(writeLimit)
	}
	writes.POST("", h.Create)
	writes.PATCH("/:id", h.Update)
}

// List retrieves a page of pipelines.
// GET /api/v1/pipelines
func (h *Handler) List(c *gin.Context) {
	var req transport.ListPipelinesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	result, err := h.svc.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetByID retrieves one pipeline.
// GET /api/v1/pipelines/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Create creates a pipeline with its initial stage entities.
// POST /api/v1/pipelines
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreatePipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.svc.Create(c.Request.Context(), actor.ID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// Update edits a pipeline or moves it along the stage chain.
// PATCH /api/v1/pipelines/:id
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.UpdatePipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}
	actor, ok := httpkit.MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.svc.Update(c.Request.Context(), actor.ID, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
