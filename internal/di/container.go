package di

import (
	"github.com/HyunsooZo/signly-sub001/internal/handler"
	"github.com/HyunsooZo/signly-sub001/internal/repository"
	"github.com/HyunsooZo/signly-sub001/internal/service"
	"github.com/HyunsooZo/signly-sub001/pkg/database"
	"github.com/HyunsooZo/signly-sub001/pkg/redis"
)

// Container holds all dependencies for the contract service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Repositories
	ContractRepo repository.ContractRepository
	OutboxRepo   repository.OutboxRepository

	// Collaborators
	EventPublisher service.EventPublisher
	SignatureStore service.SignatureStore
	Renderer       service.TemplateRenderer
	PDFGenerator   service.PDFGenerator

	// Services
	ContractService service.ContractService
	SigningService  service.SigningService

	// Handlers
	HealthHandler   *handler.HealthHandler
	ContractHandler *handler.ContractHandler
	SigningHandler  *handler.SigningHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB             *database.PostgresDB
	Redis          *redis.Client
	ContractRepo   repository.ContractRepository
	OutboxRepo     repository.OutboxRepository
	EventPublisher service.EventPublisher
	SignatureStore service.SignatureStore
	Renderer       service.TemplateRenderer
	PDFGenerator   service.PDFGenerator
	ServiceConfig  *service.ContractServiceConfig
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		ContractRepo:   cfg.ContractRepo,
		OutboxRepo:     cfg.OutboxRepo,
		EventPublisher: cfg.EventPublisher,
		SignatureStore: cfg.SignatureStore,
		Renderer:       cfg.Renderer,
		PDFGenerator:   cfg.PDFGenerator,
	}

	// Initialize services
	c.ContractService = service.NewContractService(
		c.ContractRepo,
		c.Renderer,
		c.PDFGenerator,
		c.EventPublisher,
		cfg.ServiceConfig,
	)
	c.SigningService = service.NewSigningService(
		c.ContractRepo,
		c.SignatureStore,
		c.EventPublisher,
	)

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.ContractHandler = handler.NewContractHandler(c.ContractService)
	c.SigningHandler = handler.NewSigningHandler(c.SigningService, c.ContractService)

	return c
}
