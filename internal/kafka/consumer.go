package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/segmentio/kafka-go"

	"expiry-alert-service/internal/config"
	"expiry-alert-service/internal/logging"
)

// Scanner is the part of the alert engine the consumer drives.
type Scanner interface {
	TriggerScan()
}

// inventoryEvent is the message shape the inventory service publishes when
// stock changes. Only enough of it is decoded to validate the message.
type inventoryEvent struct {
	Table  string `json:"table"`
	ItemID string `json:"item_id"`
	Action string `json:"action"` // created, updated, deleted, transferred
}

// Consumer listens for inventory change events and triggers alert scans, so
// realtime-frequency users see fresh alerts without waiting for the next
// scheduled cycle.
type Consumer struct {
	reader *kafka.Reader
	svc    Scanner
	logger *logging.Logger
	cancel context.CancelFunc
}

func NewConsumer(cfg config.Config, svc Scanner, logger *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Kafka.Broker},
		Topic:    cfg.Kafka.Topic,
		GroupID:  cfg.Kafka.GroupID,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	return &Consumer{reader: reader, svc: svc, logger: logger}
}

// Start consumes until Close is called.
func (c *Consumer) Start(wg *sync.WaitGroup) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started on topic %s", c.reader.Config().Topic)
		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					c.logger.Infof("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}

			var ev inventoryEvent
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				c.logger.Errorf("Unmarshal inventory event failed: %v", err)
				continue
			}
			if ev.Table == "" || ev.ItemID == "" {
				c.logger.Errorf("Invalid inventory event: missing table or item_id")
				continue
			}

			c.logger.Debugf("Inventory event %s on %s/%s, triggering scan", ev.Action, ev.Table, ev.ItemID)
			c.svc.TriggerScan()
		}
	}()
}

// Close stops the consumer and releases the reader.
func (c *Consumer) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Kafka reader close failed: %v", err)
	}
}
