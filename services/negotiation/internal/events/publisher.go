package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"dealroom/pkg/domain"
	"dealroom/services/negotiation/internal/metrics"

	"github.com/segmentio/kafka-go"
)

// Config selects the Kafka topic and brokers committed events go to.
type Config struct {
	Brokers []string
	Topic   string
}

func (c Config) Enabled() bool { return len(c.Brokers) > 0 }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message is the wire form of a published event.
type Message struct {
	SchemaVersion string `json:"schema_version"`
	domain.Event
}

const (
	schemaVersion = "negotiation-event-v1"
	queueSize     = 256
)

var (
	errNotStarted = errors.New("event publisher not started")
	errStopped    = errors.New("event publisher stopped")
)

// KafkaPublisher delivers events asynchronously, keyed by transaction id so
// they share a partition. Events are delivered in the order Publish is
// called; callers that publish while holding the transaction lock get commit
// order per process. The stored event log is the order across replicas.
type KafkaPublisher struct {
	cfg       Config
	log       *slog.Logger
	metrics   *metrics.Metrics
	writer    messageWriter
	queue     chan kafka.Message
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	// mu guards the lifecycle flags. Publish holds it shared while
	// enqueueing so Stop can fence out late publishes before the last drain.
	mu      sync.RWMutex
	started bool
	stopped bool
}

func NewKafkaPublisher(cfg Config, log *slog.Logger, m *metrics.Metrics) (*KafkaPublisher, error) {
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("event topic must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
	}
	return newKafkaPublisher(cfg, log, m, w), nil
}

func newKafkaPublisher(cfg Config, log *slog.Logger, m *metrics.Metrics, w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{
		cfg:     cfg,
		log:     log.With(slog.String("component", "event_publisher")),
		metrics: m,
		writer:  w,
		queue:   make(chan kafka.Message, queueSize),
	}
}

func (p *KafkaPublisher) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.mu.Lock()
		p.runCtx, p.cancel = context.WithCancel(ctx)
		p.started = true
		p.mu.Unlock()
		p.wg.Add(1)
		go p.run()
		p.log.Info("event_publisher_started", slog.String("topic", p.cfg.Topic))
	})
}

// Stop drains queued events and closes the writer. Publish calls that race
// with Stop either land before the final drain or return errStopped.
func (p *KafkaPublisher) Stop(ctx context.Context) error {
	var stopErr error
	p.stopOnce.Do(func() {
		p.mu.RLock()
		cancel := p.cancel
		p.mu.RUnlock()
		if cancel != nil {
			// Unblocks publishers waiting on a full queue.
			cancel()
		}
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			p.drain()
		case <-ctx.Done():
			stopErr = ctx.Err()
		}
		if err := p.writer.Close(); err != nil {
			p.log.Error("event_publisher_close_err", slog.Any("err", err))
		}
		p.log.Info("event_publisher_stopped")
	})
	return stopErr
}

// Publish queues events for delivery. It never blocks past ctx.
func (p *KafkaPublisher) Publish(ctx context.Context, events []domain.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return errStopped
	}
	if !p.started {
		return errNotStarted
	}
	for _, e := range events {
		value, err := json.Marshal(Message{SchemaVersion: schemaVersion, Event: e})
		if err != nil {
			p.metrics.Publish("fail")
			return err
		}
		msg := kafka.Message{Key: []byte(e.TransactionID), Value: value}
		select {
		case p.queue <- msg:
		case <-ctx.Done():
			p.metrics.Publish("fail")
			return ctx.Err()
		case <-p.runCtx.Done():
			p.metrics.Publish("fail")
			return errStopped
		}
	}
	return nil
}

func (p *KafkaPublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.runCtx.Done():
			return
		case msg := <-p.queue:
			p.deliver(p.runCtx, msg)
		}
	}
}

func (p *KafkaPublisher) drain() {
	for {
		select {
		case msg := <-p.queue:
			// runCtx is cancelled by now; the final writes get their own context.
			p.deliver(context.Background(), msg)
		default:
			return
		}
	}
}

func (p *KafkaPublisher) deliver(ctx context.Context, msg kafka.Message) {
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.Publish("fail")
		p.log.Error("event_publish_err", slog.Any("err", err), slog.String("transaction_id", string(msg.Key)))
		return
	}
	p.metrics.Publish("ok")
	p.log.Debug("event_published", slog.String("transaction_id", string(msg.Key)))
}

// Nop discards events. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, []domain.Event) error { return nil }
