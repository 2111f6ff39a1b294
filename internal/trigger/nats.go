// Package trigger delivers "file dropped" events from NATS JetStream to
// the ingestor.
package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// SubjectFileDropped is published by the exporter once per batch file.
const SubjectFileDropped = "archive.files.dropped"

// Event announces one batch file ready for ingestion.
type Event struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
	// ArchivePath overrides where the file goes after loading.
	ArchivePath string `json:"archive_path,omitempty"`
}

func (e Event) validate() error {
	if e.Kind == "" || e.Path == "" {
		return errors.New("event needs kind and path")
	}
	return nil
}

// Handler processes one event. It reports nothing back: the outcome of a
// run is logged by the ingestor, not signalled to the broker.
type Handler func(ctx context.Context, ev Event)

// Msg is the part of jetstream.Msg the consumer touches.
type Msg interface {
	Data() []byte
	Subject() string
	Ack() error
	Term() error
}

func connect(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}
	return nc, js, nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream, stream string) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      stream,
		Subjects:  []string{"archive.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", stream, err)
	}
	return nil
}

// Subscriber consumes file-dropped events with a durable consumer.
type Subscriber struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream string
	logger *zap.Logger
}

func NewSubscriber(ctx context.Context, url, stream string, logger *zap.Logger) (*Subscriber, error) {
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}
	if err := ensureStream(ctx, js, stream); err != nil {
		nc.Close()
		return nil, err
	}
	return &Subscriber{nc: nc, js: js, stream: stream, logger: logger}, nil
}

// Run consumes events until ctx is cancelled. Events are handled one at a
// time, in delivery order.
func (s *Subscriber) Run(ctx context.Context, durable string, handler Handler) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, s.stream, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: SubjectFileDropped,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxAckPending: 1,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		Dispatch(ctx, msg, handler, s.logger)
	})
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	s.logger.Info("waiting for file events",
		zap.String("stream", s.stream),
		zap.String("subject", SubjectFileDropped),
		zap.String("durable", durable),
	)

	<-ctx.Done()
	cc.Drain()
	<-cc.Closed()
	return nil
}

func (s *Subscriber) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}

// Dispatch decodes msg, runs handler and acknowledges. Every decodable
// event is acked whatever the run's outcome, so the broker never
// redelivers; undecodable payloads are terminated.
func Dispatch(ctx context.Context, msg Msg, handler Handler, logger *zap.Logger) {
	var ev Event
	err := json.Unmarshal(msg.Data(), &ev)
	if err == nil {
		err = ev.validate()
	}
	if err != nil {
		logger.Error("dropping undecodable event", zap.String("subject", msg.Subject()), zap.Error(err))
		if err := msg.Term(); err != nil {
			logger.Warn("term failed", zap.Error(err))
		}
		return
	}

	handler(ctx, ev)

	if err := msg.Ack(); err != nil {
		logger.Warn("ack failed", zap.String("path", ev.Path), zap.Error(err))
	}
}

// Publisher announces dropped files. The exporter side of the pipeline and
// the CLI's notify command use it.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewPublisher(ctx context.Context, url, stream string) (*Publisher, error) {
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}
	if err := ensureStream(ctx, js, stream); err != nil {
		nc.Close()
		return nil, err
	}
	return &Publisher{nc: nc, js: js}, nil
}

func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if err := ev.validate(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := p.js.Publish(ctx, SubjectFileDropped, data); err != nil {
		return fmt.Errorf("publish to %s: %w", SubjectFileDropped, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
