package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"messaging-service/internal/models"
)

// Routing keys of the events emitted by the core. The notification fan-out
// service consumes them off the topic exchange.
const (
	EventConversationCreated = "conversation.created"
	EventMessageCreated      = "message.created"
	EventParticipantAdded    = "participant.added"
	EventParticipantRemoved  = "participant.removed"
)

// EventPublisher is satisfied by the rabbitmq publisher.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Event is the envelope published for every state change.
type Event struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Subject    models.Subject `json:"subject"`
	ActorID    int            `json:"actor_id"`
	Payload    any            `json:"payload,omitempty"`
}

// publishEvent is fire-and-forget: a publish failure is logged and never fails
// the request that produced the state change.
func publishEvent(ctx context.Context, logger *zap.Logger, publisher EventPublisher, eventType string, subject models.Subject, actorID int, payload any) {
	if publisher == nil {
		return
	}

	evt := Event{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Subject:    subject,
		ActorID:    actorID,
		Payload:    payload,
	}
	if err := publisher.Publish(ctx, eventType, evt); err != nil && logger != nil {
		logger.Warn("event publish failed",
			zap.String("type", eventType),
			zap.Int("subject_id", subject.ID),
			zap.Error(err))
	}
}
