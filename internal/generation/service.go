// Package generation resolves prompts, invokes the model gateway and records
// the resulting artifacts.
package generation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/leavend/refgen/internal/domain"
	"github.com/leavend/refgen/internal/gateway"
)

// PromptStore persists uploaded reference images.
type PromptStore interface {
	Create(ctx context.Context, rec *domain.PromptRecord) error
	ByID(ctx context.Context, id string) (*domain.PromptRecord, error)
	ByPromptID(ctx context.Context, promptID string) ([]domain.PromptRecord, error)
	All(ctx context.Context) ([]domain.PromptRecord, error)
	First(ctx context.Context) (*domain.PromptRecord, error)
	Delete(ctx context.Context, id string) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// ArtifactStore persists generated artifacts.
type ArtifactStore interface {
	Create(ctx context.Context, art *domain.GeneratedArtifact) error
	All(ctx context.Context) ([]domain.GeneratedArtifact, error)
	Count(ctx context.Context) (int64, error)
}

// Generator is the model gateway as seen by the service.
type Generator interface {
	Generate(ctx context.Context, req gateway.GenerateRequest) (*gateway.GenerationResult, error)
	TestConnection(ctx context.Context) gateway.ConnectionStatus
	Configured() bool
}

// Service is the generation orchestrator. All fields are set once at
// construction and read concurrently afterwards.
type Service struct {
	Prompts   PromptStore
	Artifacts ArtifactStore
	Gateway   Generator
	Logger    zerolog.Logger
	Clock     func() time.Time
	IDs       func() string

	// HasStoreURL is reported by Diagnostics.
	HasStoreURL bool
}

// NewService wires a Service with wall-clock time and uuid v4 identifiers.
func NewService(prompts PromptStore, artifacts ArtifactStore, gw Generator, logger zerolog.Logger) *Service {
	return &Service{
		Prompts:   prompts,
		Artifacts: artifacts,
		Gateway:   gw,
		Logger:    logger.With().Str("component", "generation").Logger(),
		Clock:     time.Now,
		IDs:       uuid.NewString,
	}
}

func (s *Service) now() time.Time { return s.Clock().UTC() }
