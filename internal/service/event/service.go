// Package event announces record changes on the message broker.
package event

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/consultorio/pkg/messaging"
)

// Emitter is what the record services depend on.
type Emitter interface {
	Emit(ctx context.Context, eventType, entityID, actorID string, attrs map[string]string)
}

// Service publishes events for one module. Publishing is best effort: a broker failure is
// logged and never fails the request that produced the event.
type Service struct {
	publisher messaging.Publisher
	module    string
	logger    zerolog.Logger
}

func NewService(publisher messaging.Publisher, module string, logger zerolog.Logger) *Service {
	return &Service{
		publisher: publisher,
		module:    module,
		logger:    logger.With().Str("component", "events").Str("module", module).Logger(),
	}
}

func (s *Service) Emit(ctx context.Context, eventType, entityID, actorID string, attrs map[string]string) {
	if s == nil || s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, messaging.Event{
		Type:       eventType,
		Module:     s.module,
		EntityID:   entityID,
		ActorID:    actorID,
		Attributes: attrs,
	})
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("event_type", eventType).
			Str("entity_id", entityID).
			Msg("failed to publish event")
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(context.Context, string, string, string, map[string]string) {}
