package rabbitmq

const (
	// VerificationExchange — exchange событий подтверждения email.
	VerificationExchange = "verification"
	// VerificationCodesQueue — очередь писем с кодами подтверждения.
	VerificationCodesQueue = "verification.codes"
	// VerificationCodesRoutingKey — ключ маршрутизации кодов подтверждения.
	VerificationCodesRoutingKey = "codes"
)

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

func GetVerificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: VerificationCodesQueue, RoutingKey: VerificationCodesRoutingKey},
	}
}
