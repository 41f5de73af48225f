package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/loomhq/loom/pkg/eventbus"
)

// NewEventBus creates an event bus on the run lifecycle topic.
func NewEventBus(provider string, logger *slog.Logger) eventbus.EventBus {
	pub, sub := newChannel(provider, logger, "events")

	return eventbus.NewWatermillEventBus(pub, sub)
}

// NewEventBusOnTopic creates an event bus bound to a specific topic, used by
// the dispatch layer for assignment and status channels.
func NewEventBusOnTopic(provider, topic string, logger *slog.Logger) eventbus.EventBus {
	pub, sub := newChannel(provider, logger, topic)

	return eventbus.NewWatermillEventBusOnTopic(topic, pub, sub)
}

func newChannel(provider string, logger *slog.Logger, serviceName string) (message.Publisher, message.Subscriber) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := eventbus.NewKafkaChannel(wmLogger, serviceName)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return pub, sub
	case "", "gochannel":
		pub, sub := eventbus.NewGoChannel(wmLogger)

		return pub, sub
	default:
		panic("unsupported event bus provider: " + provider)
	}
}
