// Package events publishes checkout outcomes to downstream consumers.
package events

import (
	"context"
	"time"
)

// Type names an outcome event.
type Type string

const (
	TypeConfirmed        Type = "checkout.confirmed"
	TypePaymentAttempted Type = "checkout.payment_attempted"
)

// Event describes one checkout outcome. It never carries card data or the full tax id.
type Event struct {
	Type       Type      `json:"type"`
	SessionID  string    `json:"session_id,omitempty"`
	Token      string    `json:"token"`
	Status     string    `json:"status"`
	Method     string    `json:"method"`
	Total      float64   `json:"total"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers events. Implementations must not block on the broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
