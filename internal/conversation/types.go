// Package conversation runs the message pipeline: webhook deliveries are
// queued, a worker pool consumes them one-per-phone, and the engine turns
// each inbound text into the next bot reply.
package conversation

import (
	"context"
	"time"
)

// InboundRequest is one patient message entering the pipeline.
type InboundRequest struct {
	From      string    `json:"from"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	PushName  string    `json:"push_name,omitempty"`
}

// Reply is the outbound side of one processed turn. Empty Message means the
// turn produced nothing to send.
type Reply struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// Service processes one inbound message into a reply.
type Service interface {
	Process(ctx context.Context, req InboundRequest) (Reply, error)
}

// Messenger delivers the reply over the transport.
type Messenger interface {
	Send(ctx context.Context, to, message string) error
}
