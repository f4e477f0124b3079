package messaging

import (
	"context"
	"encoding/json"

	"github.com/jwalitptl/renova-api/pkg/logger"
)

// BrokerAdapter turns a raw Broker into a MessageBroker that decodes the
// Message envelope and dispatches it to a handler.
type BrokerAdapter struct {
	broker Broker
	logger *logger.Logger
}

func NewBrokerAdapter(broker Broker, log *logger.Logger) *BrokerAdapter {
	return &BrokerAdapter{broker: broker, logger: log}
}

func (a *BrokerAdapter) Publish(ctx context.Context, topic string, msg Message) error {
	return a.broker.Publish(ctx, topic, msg)
}

func (a *BrokerAdapter) Close() error {
	return a.broker.Close()
}

// Subscribe starts a goroutine that feeds messages to handler until ctx is
// done. Undecodable messages and handler errors are logged and skipped.
func (a *BrokerAdapter) Subscribe(ctx context.Context, handler func(context.Context, Message) error, topics ...string) error {
	msgChan, err := a.broker.Subscribe(ctx, topics...)
	if err != nil {
		return err
	}

	go func() {
		for raw := range msgChan {
			var msg Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				a.logger.Error(err, "Failed to decode message")
				continue
			}
			if err := handler(ctx, msg); err != nil {
				a.logger.Error(err, "Message handler failed", "type", msg.Type, "id", msg.ID)
			}
		}
	}()

	return nil
}
