package mock

import (
	"context"

	"github.com/google/uuid"

	"github.com/GitRadiation/template-filler/internal/publisher"
)

// Ensure Publisher implements publisher.Publisher.
var _ publisher.Publisher = (*Publisher)(nil)

// Publisher is a mock task publisher for testing.
type Publisher struct {
	Published []uuid.UUID
	PublishFn func(ctx context.Context, jobID uuid.UUID) error
}

// NewPublisher creates a new mock publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

func (m *Publisher) Publish(ctx context.Context, jobID uuid.UUID) error {
	if m.PublishFn != nil {
		return m.PublishFn(ctx, jobID)
	}
	m.Published = append(m.Published, jobID)
	return nil
}

func (m *Publisher) Close() error {
	return nil
}
