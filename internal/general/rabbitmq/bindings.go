package rabbitmq

import (
	"fmt"

	"haultrack/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

func declareTopology(ch *amqp.Channel) error {
	// 1. Exchanges
	if err := ch.ExchangeDeclare(contracts.ExchangeLocationFanout, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", contracts.ExchangeLocationFanout, err)
	}

	// 2. Queues
	if _, err := ch.QueueDeclare(contracts.QueueLocationUpdatesDispatch, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", contracts.QueueLocationUpdatesDispatch, err)
	}

	// 3. Bindings (fanout ignores routing keys)
	if err := ch.QueueBind(contracts.QueueLocationUpdatesDispatch, "", contracts.ExchangeLocationFanout, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", contracts.QueueLocationUpdatesDispatch, contracts.ExchangeLocationFanout, err)
	}

	return nil
}
