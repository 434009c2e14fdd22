package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/auth-service/internal/models"
)

// PublishMessage публикует сообщение в RabbitMQ.
func PublishMessage(ch *amqp.Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CodePublisher публикует события выпуска кодов подтверждения.
type CodePublisher struct {
	ch *amqp.Channel
}

// NewCodePublisher создает новый экземпляр CodePublisher.
func NewCodePublisher(ch *amqp.Channel) *CodePublisher {
	return &CodePublisher{ch: ch}
}

// PublishCodeIssued отправляет событие выпуска кода в очередь почтового воркера.
func (p *CodePublisher) PublishCodeIssued(msg models.CodeMessage) error {
	return PublishMessage(p.ch, VerificationExchange, VerificationCodesRoutingKey, msg)
}
