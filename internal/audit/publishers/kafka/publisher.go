// Package kafka publishes credential events to a Kafka topic. A circuit
// breaker routes events to a fallback sink while the brokers are failing.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"credentials/internal/audit"
	"credentials/pkg/platform/circuit"
)

const defaultProduceTimeout = 5 * time.Second

// producer is the subset of *kgo.Client used for publishing.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Publisher implements audit.Publisher on top of franz-go.
type Publisher struct {
	client   producer
	topic    string
	fallback audit.Publisher
	breaker  *circuit.Breaker
	metrics  *Metrics
	logger   *slog.Logger
	timeout  time.Duration
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

func WithProduceTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		p.timeout = d
	}
}

// New connects to brokers. Events go to topic, keyed by credential uuid.
func New(brokers []string, topic string, fallback audit.Publisher, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}
	return newPublisher(client, topic, fallback, opts...), nil
}

func newPublisher(client producer, topic string, fallback audit.Publisher, opts ...Option) *Publisher {
	p := &Publisher{
		client:   client,
		topic:    topic,
		fallback: fallback,
		logger:   slog.New(slog.DiscardHandler),
		timeout:  defaultProduceTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.breaker == nil {
		p.breaker = circuit.New("kafka-audit")
	}
	return p
}

// Emit produces the event synchronously. While the breaker is open the
// event is also sent to the fallback so nothing is lost from the log trail,
// and Kafka is only tried when the breaker's retry interval has passed.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if !p.breaker.Allow() {
		p.metrics.observeBypass()
		return p.fallback.Emit(ctx, event)
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: encode event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Key()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
		},
	}

	produceCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	start := time.Now()
	produceErr := p.client.ProduceSync(produceCtx, record).FirstErr()
	p.metrics.observeProduce(time.Since(start), produceErr)

	if produceErr != nil {
		useFallback, change := p.breaker.RecordFailure()
		if change.Opened {
			p.logger.WarnContext(ctx, "kafka circuit opened", "breaker", p.breaker.Name(), "error", produceErr)
			p.metrics.setBreakerOpen(true)
		}
		if useFallback {
			return p.fallback.Emit(ctx, event)
		}
		return fmt.Errorf("kafka: produce: %w", produceErr)
	}

	usePrimary, change := p.breaker.RecordSuccess()
	if change.Closed {
		p.logger.InfoContext(ctx, "kafka circuit closed", "breaker", p.breaker.Name())
		p.metrics.setBreakerOpen(false)
	}
	if !usePrimary {
		return p.fallback.Emit(ctx, event)
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Close()
}

// EnsureTopic creates the topic when it does not exist yet.
func EnsureTopic(ctx context.Context, brokers []string, topic string, partitions int32, replication int16) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return fmt.Errorf("kafka: create admin client: %w", err)
	}
	defer client.Close()

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, partitions, replication, nil, topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("kafka: create topic %s: %w", topic, err)
	}
	return nil
}
