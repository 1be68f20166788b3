// Package pubsub publishes run notifications to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config names the project and the default topic.
type Config struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// sender delivers one message and waits for the server-assigned ID.
type sender interface {
	send(ctx context.Context, topic string, msg *pubsub.Message) (string, error)
	stop()
}

// Publisher marshals payloads to JSON and publishes them.
type Publisher struct {
	sender sender
	topic  string
}

// New creates a Publisher on client. Publish calls with an empty topic use
// cfg.Topic.
func New(client *pubsub.Client, cfg Config) (*Publisher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client is required")
	}
	return newPublisher(&clientSender{client: client, topics: map[string]*pubsub.Topic{}}, cfg.Topic), nil
}

func newPublisher(s sender, topic string) *Publisher {
	return &Publisher{sender: s, topic: topic}
}

// Publish marshals payload to JSON and publishes it to topic.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if topic == "" {
		topic = p.topic
	}
	if topic == "" {
		return "", fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	msg := &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"content_type": "application/json"},
	}
	id, err := p.sender.send(ctx, topic, msg)
	if err != nil {
		return "", fmt.Errorf("publish message to %s: %w", topic, err)
	}
	return id, nil
}

// Close flushes and stops every topic handle.
func (p *Publisher) Close() {
	p.sender.stop()
}

type clientSender struct {
	client *pubsub.Client
	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func (s *clientSender) send(ctx context.Context, topic string, msg *pubsub.Message) (string, error) {
	s.mu.Lock()
	t, ok := s.topics[topic]
	if !ok {
		t = s.client.Topic(topic)
		s.topics[topic] = t
	}
	s.mu.Unlock()
	return t.Publish(ctx, msg).Get(ctx)
}

func (s *clientSender) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.topics {
		t.Stop()
	}
}
