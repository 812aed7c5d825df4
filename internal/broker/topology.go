package broker

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/and161185/authsync/internal/syncer"
)

// Declarer is the part of *amqp.Channel that declares topology.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

var _ Declarer = (*amqp.Channel)(nil)

// DeclareTopology declares the durable topic exchange, the work queue bound
// with keys, and the fanout dead-letter exchange with its queue. All
// declarations are idempotent, so both sides may run it on every connect.
func DeclareTopology(ch Declarer, topo syncer.Topology, keys []string) error {
	if err := ch.ExchangeDeclare(topo.DeadLetterExch, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(topo.DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter queue: %w", err)
	}
	if err := ch.QueueBind(topo.DeadLetterQueue, "", topo.DeadLetterExch, false, nil); err != nil {
		return fmt.Errorf("bind dead-letter queue: %w", err)
	}

	if err := ch.ExchangeDeclare(topo.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	args := amqp.Table{"x-dead-letter-exchange": topo.DeadLetterExch}
	if _, err := ch.QueueDeclare(topo.Queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	for _, k := range keys {
		if err := ch.QueueBind(topo.Queue, k, topo.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", k, err)
		}
	}
	return nil
}

// TopologySetup adapts DeclareTopology to a session SetupFunc.
func TopologySetup(c *syncer.Coordinator) SetupFunc {
	return func(ch *amqp.Channel) error {
		return DeclareTopology(ch, c.Topology(), c.Bindings())
	}
}
