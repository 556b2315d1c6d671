package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Remora/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeScriptRequested MessageType = "script.requested"
	MessageTypeScriptStatus    MessageType = "script.status"
	MessageTypeScriptCompleted MessageType = "script.completed"
)

// Message — конверт сообщения.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// ParsePayload разбирает payload сообщения в T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		return result, fmt.Errorf("unmarshal %s payload: %w", msg.Type, err)
	}
	return result, nil
}

// ScriptRequestedPayload — запрос на выполнение скрипта.
type ScriptRequestedPayload struct {
	// Worker — адрес воркера. Пустой — воркер агента по умолчанию.
	Worker  string                    `json:"worker,omitempty"`
	Command domain.StartScriptCommand `json:"command"`
}

// ScriptStatusPayload — новые логи выполнения.
type ScriptStatusPayload struct {
	Ticket domain.ScriptTicket    `json:"ticket"`
	Logs   []domain.ProcessOutput `json:"logs"`
}

// ScriptCompletedPayload — итог выполнения.
type ScriptCompletedPayload struct {
	Ticket   domain.ScriptTicket `json:"ticket"`
	Worker   string              `json:"worker,omitempty"`
	State    domain.ProcessState `json:"state"`
	ExitCode int                 `json:"exit_code"`
	Error    string              `json:"error,omitempty"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

func (p *Publisher) publishPayload(ctx context.Context, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeScripts, routingKey, msg)
}

// PublishScriptRequested ставит скрипт в очередь на выполнение.
// Потребитель: agent.
func (p *Publisher) PublishScriptRequested(ctx context.Context, payload ScriptRequestedPayload) error {
	return p.publishPayload(ctx, RoutingKeyRequested, MessageTypeScriptRequested, payload)
}

// PublishScriptStatus публикует новые логи выполнения.
func (p *Publisher) PublishScriptStatus(ctx context.Context, payload ScriptStatusPayload) error {
	return p.publishPayload(ctx, RoutingKeyStatus, MessageTypeScriptStatus, payload)
}

// PublishScriptCompleted публикует итог выполнения.
func (p *Publisher) PublishScriptCompleted(ctx context.Context, payload ScriptCompletedPayload) error {
	return p.publishPayload(ctx, RoutingKeyCompleted, MessageTypeScriptCompleted, payload)
}
