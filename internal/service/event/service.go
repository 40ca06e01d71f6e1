package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/odontogram-api/internal/model"
	"github.com/jwalitptl/odontogram-api/internal/repository"
	"github.com/jwalitptl/odontogram-api/pkg/logger"
	"github.com/jwalitptl/odontogram-api/pkg/messaging"
)

// OutboxEmitter records events in the outbox table; the worker relays them.
type OutboxEmitter struct {
	outboxRepo repository.OutboxRepository
	logger     *logger.Logger
}

func NewOutboxEmitter(outboxRepo repository.OutboxRepository, log *logger.Logger) *OutboxEmitter {
	if log == nil {
		log = logger.Nop()
	}
	return &OutboxEmitter{outboxRepo: outboxRepo, logger: log}
}

func (s *OutboxEmitter) Emit(ctx context.Context, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   payloadJSON,
	}
	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	s.logger.Debug("Event queued", "event_id", event.ID.String(), "event_type", eventType)
	return nil
}

// BrokerEmitter publishes events straight to the broker. It is used when the
// records backend is remote and there is no local outbox table.
type BrokerEmitter struct {
	broker  messaging.Broker
	channel string
	logger  *logger.Logger
}

func NewBrokerEmitter(broker messaging.Broker, channel string, log *logger.Logger) *BrokerEmitter {
	if log == nil {
		log = logger.Nop()
	}
	return &BrokerEmitter{broker: broker, channel: channel, logger: log}
}

func (s *BrokerEmitter) Emit(ctx context.Context, eventType string, payload interface{}) error {
	msg, err := messaging.NewMessage(eventType, payload)
	if err != nil {
		return err
	}
	if err := s.broker.Publish(ctx, s.channel, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	s.logger.Debug("Event published", "event_id", msg.ID, "event_type", eventType)
	return nil
}
