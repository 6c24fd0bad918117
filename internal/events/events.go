// Package events fans committed ledger changes out to subscribers.
package events

import (
	"context"
	"errors"
)

const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
	OrderCancelled     = "order.cancelled"
	PaymentRecorded    = "payment.recorded"
	ReturnCreated      = "return.created"
	StockChanged       = "stock.changed"
	StockLow           = "stock.low"
)

// Event is the wire payload sent to websocket clients and Kafka.
type Event struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// Publisher delivers an event after the originating transaction committed.
// Delivery is best effort; the ledger never rolls back on a publish failure.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Multi publishes to every publisher and returns all failures joined.
// Logging is left to the caller.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
