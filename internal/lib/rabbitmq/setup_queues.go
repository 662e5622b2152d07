package rabbitmq

// Ключи маршрутизации доменных событий.
const (
	RoutingNotificationCreated = "notification.created"
	RoutingUserRegistered      = "user.registered"
	RoutingSubscriptionChanged = "subscription.changed"
)

// QueueConfig очередь и ключ, которым она привязана к exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetEventQueues возвращает очереди, которые объявляются при старте.
func GetEventQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "marketplace.notifications", RoutingKey: RoutingNotificationCreated},
		{QueueName: "marketplace.users", RoutingKey: RoutingUserRegistered},
		{QueueName: "marketplace.subscriptions", RoutingKey: RoutingSubscriptionChanged},
	}
}
