package events

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"cloud.google.com/go/pubsub"
)

// PubSubEventBus publishes typed events to Google Cloud Pub/Sub topics.
// It is the production binding for the Event Bus Client: the
// push-envelope wire format the webhook surface decodes (base64 data,
// messageId, publishTime, attributes) is Pub/Sub's own push-subscription
// format, so this is the broker that matches the contract without any
// translation layer.
//
// Publish is best-effort: a publish failure is logged and counted but
// never propagated past the caller. Redelivery from the broker is the
// only retry mechanism the design relies on.
type PubSubEventBus struct {
	client     *pubsub.Client
	topicNames map[Topic]string
	topics     map[Topic]*pubsub.Topic

	mu       sync.Mutex
	failures map[Topic]int
}

// NewPubSubEventBus creates a client against projectID and resolves each
// logical Topic to a concrete Pub/Sub topic via topicNames, falling back
// to the topic's own string value when no override is configured.
func NewPubSubEventBus(ctx context.Context, projectID string, topicNames map[string]string) (*PubSubEventBus, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	bus := &PubSubEventBus{
		client:     client,
		topicNames: make(map[Topic]string),
		topics:     make(map[Topic]*pubsub.Topic),
		failures:   make(map[Topic]int),
	}

	for _, t := range AllTopics() {
		name := string(t)
		if override, ok := topicNames[string(t)]; ok && override != "" {
			name = override
		}
		bus.topicNames[t] = name
		bus.topics[t] = client.Topic(name)
	}

	return bus, nil
}

// Publish serializes payload to JSON and forwards it to the broker.
// Failures are logged and counted; the caller always gets a nil error
// so publication never blocks the state transition that preceded it.
func (b *PubSubEventBus) Publish(topic Topic, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("pubsub: failed to marshal payload for topic %s: %v", topic, err)
		b.countFailure(topic)
		return nil
	}

	t, ok := b.topics[topic]
	if !ok {
		log.Printf("pubsub: no topic binding for logical topic %s", topic)
		b.countFailure(topic)
		return nil
	}

	result := t.Publish(context.Background(), &pubsub.Message{Data: data})
	go func() {
		if _, err := result.Get(context.Background()); err != nil {
			log.Printf("pubsub: publish to %s (topic %s) failed: %v", topic, b.topicNames[topic], err)
			b.countFailure(topic)
		}
	}()

	return nil
}

func (b *PubSubEventBus) countFailure(topic Topic) {
	b.mu.Lock()
	b.failures[topic]++
	b.mu.Unlock()
}

// FailureCount returns the number of observed publish failures for
// topic, for debug/observability use.
func (b *PubSubEventBus) FailureCount(topic Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures[topic]
}

// Flush stops all topics, waiting for outstanding publishes to finish.
// Called during teardown.
func (b *PubSubEventBus) Flush() {
	for _, t := range b.topics {
		t.Stop()
	}
}

// Close releases the underlying Pub/Sub client.
func (b *PubSubEventBus) Close() error {
	b.Flush()
	return b.client.Close()
}
