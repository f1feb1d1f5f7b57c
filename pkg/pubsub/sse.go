package pubsub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"

	"github.com/ritzau/circuit-index/pkg/logging"
)

// ErrClosed is returned after the publisher has been closed
var ErrClosed = errors.New("publisher is closed")

// subscriberBuffer is the channel capacity of each subscription
const subscriberBuffer = 100

// TopicConfig configures buffering behavior for a topic
type TopicConfig struct {
	BufferSize int  // Number of events to buffer (0 = no buffering)
	ReplayAll  bool // If true, replay all buffered events; if false, only replay last event
}

// SSEPublisher implements Publisher for Server-Sent Event streams
type SSEPublisher struct {
	mu            sync.RWMutex
	subscriptions map[string]map[*sseSubscription]struct{}
	version       map[string]int
	eventBuffer   map[string][]Event
	topicConfig   map[string]TopicConfig
	closed        bool
}

// NewSSEPublisher creates a new SSE-based publisher
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{
		subscriptions: make(map[string]map[*sseSubscription]struct{}),
		version:       make(map[string]int),
		eventBuffer:   make(map[string][]Event),
		topicConfig:   make(map[string]TopicConfig),
	}
}

// ConfigureTopic sets buffering configuration for a topic
func (p *SSEPublisher) ConfigureTopic(topic string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topicConfig[topic] = config
}

// Subscribe registers a subscriber and replays buffered events to it
func (p *SSEPublisher) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	sub := &sseSubscription{
		topic:     topic,
		events:    make(chan Event, subscriberBuffer),
		publisher: p,
	}
	if p.subscriptions[topic] == nil {
		p.subscriptions[topic] = make(map[*sseSubscription]struct{})
	}
	p.subscriptions[topic][sub] = struct{}{}

	// Replaying under the lock keeps replayed events ahead of new ones
	replay := p.eventBuffer[topic]
	if !p.topicConfig[topic].ReplayAll && len(replay) > 1 {
		replay = replay[len(replay)-1:]
	}
	if len(replay) > subscriberBuffer {
		replay = replay[len(replay)-subscriberBuffer:]
	}
	for _, event := range replay {
		sub.events <- event
	}
	if len(replay) > 0 {
		logging.Debug("replayed events to new subscriber", "topic", topic, "count", len(replay))
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// Publish sends an event to all subscribers of a topic. Subscribers whose
// buffer is full miss the event rather than block the publisher.
func (p *SSEPublisher) Publish(topic string, eventType string, data any) error {
	payload, err := gojson.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	p.version[topic]++
	event := Event{
		Topic:   topic,
		Type:    eventType,
		Data:    payload,
		Version: p.version[topic],
	}

	if size := p.topicConfig[topic].BufferSize; size > 0 {
		buffer := append(p.eventBuffer[topic], event)
		if len(buffer) > size {
			buffer = buffer[len(buffer)-size:]
		}
		p.eventBuffer[topic] = buffer
	}

	for sub := range p.subscriptions[topic] {
		select {
		case sub.events <- event:
		default:
			logging.Warn("subscriber channel full, dropping event", "topic", topic, "version", event.Version)
		}
	}
	return nil
}

// Close shuts down the publisher and closes every subscription channel
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for _, subs := range p.subscriptions {
		for sub := range subs {
			close(sub.events)
		}
	}
	p.subscriptions = make(map[string]map[*sseSubscription]struct{})
	return nil
}

// Subscribers returns the number of live subscriptions to topic
func (p *SSEPublisher) Subscribers(topic string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscriptions[topic])
}

func (p *SSEPublisher) unsubscribe(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subs := p.subscriptions[sub.topic]
	if _, ok := subs[sub]; !ok {
		// Already closed by Close
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(p.subscriptions, sub.topic)
	}
	close(sub.events)
}

type sseSubscription struct {
	topic     string
	events    chan Event
	publisher *SSEPublisher
	once      sync.Once
}

func (s *sseSubscription) Topic() string {
	return s.topic
}

func (s *sseSubscription) Events() <-chan Event {
	return s.events
}

func (s *sseSubscription) Close() error {
	s.once.Do(func() {
		s.publisher.unsubscribe(s)
	})
	return nil
}

// WriteSSE writes an event in the SSE wire format: "event: <type>\ndata: {json}\n\n"
func WriteSSE(w io.Writer, event Event) error {
	data, err := gojson.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	return err
}
