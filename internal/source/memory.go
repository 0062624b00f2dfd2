package source

import (
	"context"
	"fmt"
	"sync"
)

// MemorySource implements MessageSource in process. It mirrors the queue's
// at-least-once behavior: Receive returns messages without removing them, so
// an unacknowledged batch is redelivered on the next poll; only Delete
// removes a message. This is primarily used for testing and local development.
type MemorySource struct {
	mu       sync.Mutex
	messages []Message
	maxBatch int
	nextID   int
}

// NewMemorySource creates an in-memory source with the given batch size.
func NewMemorySource(maxBatch int) *MemorySource {
	if maxBatch < 1 {
		maxBatch = 10
	}
	return &MemorySource{maxBatch: maxBatch}
}

// Push enqueues a message body and returns its generated message ID.
func (m *MemorySource) Push(body []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := fmt.Sprintf("mem-%06d", m.nextID)
	m.messages = append(m.messages, Message{
		MessageID:     id,
		ReceiptHandle: "rh-" + id,
		Body:          body,
	})
	return id
}

// Receive returns up to maxBatch messages without removing them.
func (m *MemorySource) Receive(ctx context.Context) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.messages)
	if n > m.maxBatch {
		n = m.maxBatch
	}

	batch := make([]Message, n)
	copy(batch, m.messages[:n])
	return batch, nil
}

// Delete removes the message with the given receipt handle. Deleting an
// unknown handle is a no-op, matching SQS's idempotent delete.
func (m *MemorySource) Delete(ctx context.Context, receiptHandle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, msg := range m.messages {
		if msg.ReceiptHandle == receiptHandle {
			m.messages = append(m.messages[:i], m.messages[i+1:]...)
			return nil
		}
	}
	return nil
}

// ApproximateCount returns the number of queued messages.
func (m *MemorySource) ApproximateCount(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages), nil
}
