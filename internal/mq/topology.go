package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeScripts Exchange = "remora.scripts"
	ExchangeDLQ     Exchange = "remora.dlq"
)

// Queues — имена очередей.
const (
	QueueScriptsRequested Queue = "scripts.requested"
	QueueScriptsEvents    Queue = "scripts.events"
	QueueDLQScripts       Queue = "dlq.scripts"
)

// Routing keys.
const (
	RoutingKeyRequested  RoutingKey = "requested"
	RoutingKeyStatus     RoutingKey = "status"
	RoutingKeyCompleted  RoutingKey = "completed"
	RoutingKeyDLQScripts RoutingKey = "scripts"
)

type exchangeDecl struct {
	name Exchange
	kind string
}

type queueDecl struct {
	name Queue
	args amqp.Table
}

type bindingDecl struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

// topology описывает все объекты брокера.
type topology struct {
	exchanges []exchangeDecl
	queues    []queueDecl
	bindings  []bindingDecl
}

func scriptsTopology() topology {
	// Отвергнутые запросы уходят в DLQ.
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQScripts),
	}

	return topology{
		exchanges: []exchangeDecl{
			{ExchangeScripts, amqp.ExchangeDirect},
			{ExchangeDLQ, amqp.ExchangeDirect},
		},
		queues: []queueDecl{
			{QueueScriptsRequested, dlqArgs},
			{QueueScriptsEvents, nil},
			{QueueDLQScripts, nil},
		},
		bindings: []bindingDecl{
			{QueueScriptsRequested, RoutingKeyRequested, ExchangeScripts},
			{QueueScriptsEvents, RoutingKeyStatus, ExchangeScripts},
			{QueueScriptsEvents, RoutingKeyCompleted, ExchangeScripts},
			{QueueDLQScripts, RoutingKeyDLQScripts, ExchangeDLQ},
		},
	}
}

// SetupTopology объявляет exchanges, queues и bindings.
func SetupTopology(ctx context.Context, conn *Connection) error {
	t := scriptsTopology()

	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range t.exchanges {
			err := ch.ExchangeDeclare(
				string(ex.name), // name
				ex.kind,         // type
				true,            // durable
				false,           // auto-deleted
				false,           // internal
				false,           // no-wait
				nil,             // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		for _, q := range t.queues {
			_, err := ch.QueueDeclare(
				string(q.name), // name
				true,           // durable
				false,          // delete when unused
				false,          // exclusive
				false,          // no-wait
				q.args,         // arguments
			)
			if err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}

		for _, b := range t.bindings {
			err := ch.QueueBind(
				string(b.queue),      // queue name
				string(b.routingKey), // routing key
				string(b.exchange),   // exchange
				false,                // no-wait
				nil,                  // arguments
			)
			if err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}
