// Package source provides the message source abstraction the pipeline
// consumes from, with SQS and in-memory implementations.
package source

import (
	"context"
	"errors"
)

// Common errors for source operations.
var (
	ErrQueueNotFound = errors.New("queue not found")
)

// Message is a single message as received from the source. Body is the raw
// message payload; decoding is the raw store's job so that undecodable
// messages are still persisted for audit.
type Message struct {
	MessageID     string
	ReceiptHandle string
	Body          []byte
}

// MessageSource abstracts the upstream queue. Receive performs one bounded
// long-poll; messages stay in-flight under the source's visibility timeout
// until Delete acknowledges them, which is what gives the pipeline its
// at-least-once guarantee.
type MessageSource interface {
	// Receive returns the next batch of messages, possibly empty.
	Receive(ctx context.Context) ([]Message, error)

	// Delete acknowledges a message so it is never redelivered.
	Delete(ctx context.Context, receiptHandle string) error

	// ApproximateCount returns the approximate number of visible messages.
	ApproximateCount(ctx context.Context) (int, error)
}
