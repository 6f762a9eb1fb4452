// Package control implements the message channel between the punch agent
// (the single background owner of the offline queue) and the foreground
// portal instances connected to it.
package control

import (
	"encoding/json"
	"fmt"

	"github.com/pontualhq/pontual/internal/agent/queue"
	"github.com/pontualhq/pontual/internal/agent/syncer"
)

// Foreground-to-agent message types.
const (
	// TypeGetQueueStatus requests a queue snapshot.
	TypeGetQueueStatus = "GET_QUEUE_STATUS"
	// TypeProcessQueue requests a drain cycle (coalesced if one is running).
	TypeProcessQueue = "PROCESS_QUEUE"
	// TypeClearQueue requests the queue be emptied unconditionally.
	TypeClearQueue = "CLEAR_QUEUE"
	// TypeEnqueueRequest asks the agent to queue a deferred punch request.
	// The agent is the only writer of the store, so enqueue travels over
	// the channel like every other intent.
	TypeEnqueueRequest = "ENQUEUE_REQUEST"
)

// Agent-to-foreground message types, broadcast to every connected portal.
const (
	// TypeQueueStatus carries the item list and count. Sent in response to
	// GET_QUEUE_STATUS and opportunistically on every queue mutation.
	TypeQueueStatus = "QUEUE_STATUS"
	// TypeQueueProcessed carries a drain cycle result.
	TypeQueueProcessed = "QUEUE_PROCESSED"
	// TypeQueueCleared acknowledges a completed clear.
	TypeQueueCleared = "QUEUE_CLEARED"
)

// Message is the wire envelope. Delivery is fire-and-forget, at-most-once,
// with no correlation ids: every type has exactly one plausible handler.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage builds an envelope with a marshaled payload.
func NewMessage(msgType string, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: msgType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return Message{Type: msgType, Payload: raw}, nil
}

// QueueStatusPayload is the snapshot pushed to foregrounds.
type QueueStatusPayload struct {
	Online bool         `json:"online"`
	Count  int          `json:"count"`
	Items  []queue.Item `json:"items"`
}

// QueueProcessedPayload reports one finished drain cycle.
type QueueProcessedPayload struct {
	syncer.Result
}

// EnqueuePayload describes the deferred request to queue. The bearer
// credential is captured in Headers at enqueue time.
type EnqueuePayload struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	Body      []byte            `json:"body"`
	Timestamp int64             `json:"timestamp"`
}
