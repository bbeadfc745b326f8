// Package pipeline provides the sales pipeline bounded context module.
// This file defines the module that encapsulates pipeline setup and route registration.
package pipeline

import (
	"backoffice_backend/internal/events"
	apphttp "backoffice_backend/internal/http"
	"backoffice_backend/internal/pipeline/handler"
	"backoffice_backend/internal/pipeline/repository"
	"backoffice_backend/internal/pipeline/service"
	"backoffice_backend/internal/regnumber"
	"backoffice_backend/platform/logger"
	"backoffice_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the pipeline bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repo
}

// NewModule creates and initializes the pipeline module with all its dependencies.
func NewModule(pool *pgxpool.Pool, regs regnumber.Generator, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, regs, eventBus, val, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "pipelines"
}

// Service returns the pipeline service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the pipeline store, used by the reminder worker.
func (m *Module) Repository() repository.Store {
	return m.repo
}

// RegisterRoutes mounts pipeline routes on the authenticated group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	var writeLimit gin.HandlerFunc
	if ctx.WriteRateLimiter != nil {
		writeLimit = ctx.WriteRateLimiter.RateLimit()
	}
	m.handler.RegisterRoutes(ctx.Protected.Group("/pipelines"), writeLimit)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
