// Package nop provides a no-op event publisher for deployments without a
// configured stream.
package nop

import (
	"context"

	"github.com/meshmindco/meshmind/pkg/eventstream"
)

// Publisher discards every event.
type Publisher struct{}

var _ eventstream.Publisher = (*Publisher)(nil)

// New creates a no-op publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish discards the event.
func (p *Publisher) Publish(_ context.Context, _ eventstream.Event) error {
	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
