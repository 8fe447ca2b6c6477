// Package events publishes attendance verdicts to Kafka so downstream
// systems (payroll, dashboards) can follow check-ins without polling the
// record store.
//
// Publishing is asynchronous and best-effort: Publish enqueues and returns,
// a background loop writes to the broker, and a full queue drops the event
// with a warning. When disabled the Publisher is a no-op.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/tbourn/go-attendance-bot/internal/sysutil"
)

// Verdict is the payload published for every completed validation.
type Verdict struct {
	RecordID       string    `json:"record_id,omitempty"`
	UserID         string    `json:"user_id"`
	Action         string    `json:"action"`
	Status         string    `json:"status"`
	Zone           string    `json:"zone,omitempty"`
	DistanceMeters int       `json:"distance_meters"`
	RiskLevel      string    `json:"risk_level"`
	Flags          []string  `json:"flags,omitempty"`
	Reasons        []string  `json:"reasons,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Config holds the Kafka settings.
type Config struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const queueSize = 256

var (
	ErrNoBrokers    = errors.New("kafka: at least one broker is required")
	ErrNoTopic      = errors.New("kafka: topic must not be empty")
	ErrQueueFull    = errors.New("kafka: publish queue full")
	errNotStarted   = errors.New("kafka: publisher not started")
	errWriterNeeded = errors.New("kafka: writer is required")
)

// Publisher delivers verdicts in the background.
type Publisher struct {
	log     zerolog.Logger
	writer  messageWriter
	enabled bool

	queue    chan kafka.Message
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  atomic.Bool
	stopOnce sync.Once
}

// NewPublisher returns a Kafka-backed publisher, or a no-op one when
// cfg.Enabled is false.
func NewPublisher(cfg Config, log zerolog.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return &Publisher{log: log}, nil
	}
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, ErrNoTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: false,
	}
	return newPublisherWithWriter(w, log)
}

func newPublisherWithWriter(w messageWriter, log zerolog.Logger) (*Publisher, error) {
	if w == nil {
		return nil, errWriterNeeded
	}
	return &Publisher{
		log:     log.With().Str("component", "verdict_publisher").Logger(),
		writer:  w,
		enabled: true,
		queue:   make(chan kafka.Message, queueSize),
	}, nil
}

// Enabled reports whether verdicts are actually sent.
func (p *Publisher) Enabled() bool { return p.enabled }

// Start launches the delivery loop. It is a no-op when disabled.
func (p *Publisher) Start(ctx context.Context) {
	if !p.enabled || !p.started.CompareAndSwap(false, true) {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go p.run(runCtx)
}

// Stop drains queued verdicts, waits for the loop (bounded by ctx), and
// closes the writer.
func (p *Publisher) Stop(ctx context.Context) error {
	if !p.enabled {
		return nil
	}
	var err error
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
		if cerr := p.writer.Close(); cerr != nil {
			p.log.Error().Err(cerr).Msg("kafka writer close failed")
		}
	})
	return err
}

// Publish enqueues v keyed by user id. It never blocks.
func (p *Publisher) Publish(_ context.Context, v Verdict) error {
	if !p.enabled {
		return nil
	}
	if !p.started.Load() {
		return errNotStarted
	}
	value, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := kafka.Message{Key: []byte(v.UserID), Value: value, Time: v.OccurredAt}
	select {
	case p.queue <- msg:
		return nil
	default:
		p.log.Warn().Str("user", sysutil.UserFingerprint(v.UserID)).Msg("verdict dropped: queue full")
		return ErrQueueFull
	}
}

func (p *Publisher) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case msg := <-p.queue:
			p.deliver(ctx, msg)
		}
	}
}

// drain flushes what is left after cancellation with a short deadline.
func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case msg := <-p.queue:
			p.deliver(ctx, msg)
		default:
			return
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, msg kafka.Message) {
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error().Err(err).Str("user", sysutil.UserFingerprint(string(msg.Key))).Msg("verdict publish failed")
		return
	}
	p.log.Debug().Str("user", sysutil.UserFingerprint(string(msg.Key))).Msg("verdict published")
}
