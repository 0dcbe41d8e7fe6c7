package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/dinetab/dinetab-backend/pkg/models"
)

const (
	OrderCreatedTopic = "order.created"
	OrderUpdatedTopic = "order.updated"
	OrderDeletedTopic = "order.deleted"
)

// OrderEvent is the wire payload for every order event. Messages are keyed
// by tenant id so one tenant's events stay ordered within a partition.
type OrderEvent struct {
	Type      string        `json:"type"`
	TenantID  string        `json:"tenant_id"`
	TableID   string        `json:"table_id,omitempty"`
	OrderID   string        `json:"order_id,omitempty"`
	Order     *models.Order `json:"order,omitempty"`
	OrderIDs  []string      `json:"order_ids,omitempty"`
	EventTime time.Time     `json:"event_time"`
}

// KafkaNotifier publishes order events to Kafka. It implements Notifier:
// publish failures are logged and swallowed.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	logger   *logrus.Logger
}

func NewKafkaNotifier(brokers string, logger *logrus.Logger) (*KafkaNotifier, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), config)
	if err != nil {
		return nil, err
	}

	return &KafkaNotifier{producer: producer, logger: logger}, nil
}

func (n *KafkaNotifier) OrderCreated(ctx context.Context, order *models.Order) {
	n.publish(OrderCreatedTopic, OrderEvent{
		Type:     EventNewOrder,
		TenantID: order.TenantID,
		TableID:  order.TableID,
		OrderID:  order.ID,
		Order:    order,
	})
}

func (n *KafkaNotifier) OrderUpdated(ctx context.Context, order *models.Order) {
	n.publish(OrderUpdatedTopic, OrderEvent{
		Type:     EventOrderUpdated,
		TenantID: order.TenantID,
		TableID:  order.TableID,
		OrderID:  order.ID,
		Order:    order,
	})
}

func (n *KafkaNotifier) OrderDeleted(ctx context.Context, tenantID, orderID string) {
	n.publish(OrderDeletedTopic, OrderEvent{
		Type:     EventDeleteOrder,
		TenantID: tenantID,
		OrderID:  orderID,
	})
}

func (n *KafkaNotifier) TableArchived(ctx context.Context, tenantID, tableID string, orderIDs []string) {
	n.publish(OrderUpdatedTopic, OrderEvent{
		Type:     EventOrderUpdated,
		TenantID: tenantID,
		TableID:  tableID,
		OrderIDs: orderIDs,
	})
}

func (n *KafkaNotifier) publish(topic string, event OrderEvent) {
	event.EventTime = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		n.logger.WithError(err).Error("Failed to marshal order event")
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.TenantID),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := n.producer.SendMessage(msg)
	if err != nil {
		// Realtime push is best-effort; the order mutation has already
		// been persisted.
		n.logger.WithError(err).WithFields(logrus.Fields{
			"topic":     topic,
			"tenant_id": event.TenantID,
		}).Error("Failed to publish order event")
		return
	}

	n.logger.WithFields(logrus.Fields{
		"topic":     topic,
		"partition": partition,
		"offset":    offset,
		"tenant_id": event.TenantID,
		"type":      event.Type,
	}).Info("Event published to Kafka")
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}
