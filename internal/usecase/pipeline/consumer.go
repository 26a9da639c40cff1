package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arcadia-shop/persona/internal/db"
)

// payloadField is the stream entry field carrying the event JSON.
const payloadField = "payload"

// streamStore is the consumer interface for stream operations (ISP).
type streamStore interface {
	StreamGroupCreate(ctx context.Context, stream, group string) error
	StreamRead(ctx context.Context, stream, group, consumer string, count int, block time.Duration) ([]db.StreamEntry, error)
	StreamAck(ctx context.Context, stream, group string, ids ...string) error
}

// ConsumerConfig tunes the stream consumer.
type ConsumerConfig struct {
	Stream    string
	Group     string
	Workers   int
	BatchSize int
	Block     time.Duration
}

// Consumer reads behavioral events off the stream with a consumer group and
// feeds them to the pipeline. Messages are acknowledged only after the
// pipeline reports a terminal state.
type Consumer struct {
	store   streamStore
	service *Service
	cfg     ConsumerConfig
	logger  *zap.Logger
}

// NewConsumer creates a stream consumer.
func NewConsumer(store streamStore, service *Service, cfg ConsumerConfig, logger *zap.Logger) *Consumer {
	return &Consumer{store: store, service: service, cfg: cfg, logger: logger}
}

// Run creates the consumer group and blocks processing events with the
// configured number of workers until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.store.StreamGroupCreate(ctx, c.cfg.Stream, c.cfg.Group); err != nil {
		return fmt.Errorf("create consumer group %s: %w", c.cfg.Group, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.worker(ctx, fmt.Sprintf("worker-%d", id))
		}(i)
	}
	wg.Wait()
	return nil
}

func (c *Consumer) worker(ctx context.Context, name string) {
	log := c.logger.With(zap.String("consumer", name), zap.String("stream", c.cfg.Stream))
	log.Info("Event worker started")

	for {
		if ctx.Err() != nil {
			log.Info("Event worker stopped")
			return
		}

		entries, err := c.store.StreamRead(ctx, c.cfg.Stream, c.cfg.Group, name, c.cfg.BatchSize, c.cfg.Block)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Event worker stopped")
				return
			}
			log.Error("Stream read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, entry := range entries {
			if err := c.service.Process(ctx, []byte(entry.Fields[payloadField])); err != nil {
				// Not terminal: leave unacked for redelivery.
				log.Error("Event left on stream", zap.String("entry_id", entry.ID), zap.Error(err))
				continue
			}
			if err := c.store.StreamAck(ctx, c.cfg.Stream, c.cfg.Group, entry.ID); err != nil {
				log.Error("Stream ack failed", zap.String("entry_id", entry.ID), zap.Error(err))
			}
		}
	}
}
