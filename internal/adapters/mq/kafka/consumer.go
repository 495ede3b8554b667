// Package kafka consumes score events from a Kafka topic and hands them to
// the ingestion queue.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"github.com/JimmyLuojun/PlaneWar-Sever/pkg/logger"
)

// Config selects the brokers, topic and consumer group.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer runs a sarama consumer group feeding an Ingestor.
type Consumer struct {
	cfg           Config
	ingestor      *Ingestor
	consumerGroup sarama.ConsumerGroup
	logger        logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer connects a consumer group for cfg.
func NewConsumer(cfg Config, ingestor *Ingestor) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return newConsumer(cfg, ingestor, group), nil
}

func newConsumer(cfg Config, ingestor *Ingestor, group sarama.ConsumerGroup) *Consumer {
	return &Consumer{
		cfg:           cfg,
		ingestor:      ingestor,
		consumerGroup: group,
		logger:        logger.Named("kafka-consumer"),
	}
}

// Start consumes in the background until Stop or ctx ends.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.logger.Info(ctx, "starting kafka consumer",
		logger.Any("brokers", c.cfg.Brokers),
		logger.String("topic", c.cfg.Topic),
		logger.String("group_id", c.cfg.GroupID),
	)

	handler := &groupHandler{ingestor: c.ingestor, logger: c.logger}

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.consumerGroup.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error(ctx, "error from consumer", logger.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error(ctx, "consumer group error", logger.Error(err))
			}
		}
	}()
}

// Stop cancels consumption, waits for the session to end and closes the group.
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// groupHandler implements sarama.ConsumerGroupHandler.
type groupHandler struct {
	ingestor *Ingestor
	logger   logger.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks a message only after it was queued or deliberately
// skipped. A message that could not be queued ends the claim unmarked.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.ingestor.Ingest(ctx, msg.Value); err != nil {
				h.logger.Warn(ctx, "score event not queued",
					logger.Int64("offset", msg.Offset),
					logger.Int("partition", int(msg.Partition)),
					logger.Error(err),
				)
				return nil
			}
			session.MarkMessage(msg, "")
		}
	}
}
