package conversation

import (
	"context"
	"fmt"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

// Publisher enqueues inbound messages for asynchronous processing.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// EnqueueInbound publishes one webhook delivery for the worker pool.
func (p *Publisher) EnqueueInbound(ctx context.Context, req InboundRequest) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if req.From == "" {
		return fmt.Errorf("conversation: inbound message without sender")
	}

	payload, body, err := encodePayload(queuePayload{Kind: jobTypeInbound, Inbound: req})
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("conversation: failed to enqueue job: %w", err)
	}

	p.logger.Debug("conversation job enqueued",
		"job_id", payload.ID,
		"from", req.From,
	)
	return nil
}
