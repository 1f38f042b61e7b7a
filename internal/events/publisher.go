// Package events publishes domain events about purchases, licenses and
// device bindings.
package events

import (
	"context"

	"github.com/sirupsen/logrus"
)

const (
	PurchaseCompleted = "purchase.completed"
	LicenseIssued     = "license.issued"
	DeviceActivated   = "device.activated"
	DeviceDeactivated = "device.deactivated"
)

type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
	Close() error
}

// LoggingPublisher is used when no broker is configured.
type LoggingPublisher struct {
	logger logrus.FieldLogger
}

func NewLoggingPublisher(logger logrus.FieldLogger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	p.logger.WithFields(logrus.Fields{
		"event_type":    eventType,
		"partition_key": partitionKey,
		"payload_bytes": len(payload),
	}).Info("Event published")
	return nil
}

func (p *LoggingPublisher) Close() error {
	return nil
}
