package ports

// AnyTopic subscribes to every published topic.
const AnyTopic = "*"

// Subscription is the info of a client subscribed to a topic.
type Subscription interface {
	Id() string
	Topic() string
	NotifyAt() string
}

// SecurePubSub defines the methods of the pubsub service delivering timeline
// events to external consumers. The engine publishes unconditionally and does
// not depend on a subscriber being present.
type SecurePubSub interface {
	// Subscribe adds a new subscription for the requested topic and returns
	// its id. The secret is used to sign the delivered payloads.
	Subscribe(topic, endpoint, secret string) (string, error)
	// Unsubscribe removes the subscription with the given id for a topic.
	Unsubscribe(topic, id string) error
	// ListSubscriptionsForTopic returns the subscriptions for a topic.
	ListSubscriptionsForTopic(topic string) []Subscription
	// Publish delivers a message to all the clients subscribed to the topic.
	Publish(topic string, message string) error
	// Close gracefully closes the service and its internal store.
	Close() error
}
