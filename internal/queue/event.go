// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

// ProductChangedQueue is the durable queue product events are routed to.
const ProductChangedQueue = "product.changed"

// Product event actions.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionImported = "imported"
)

// ProductChangedEvent is published after every successful product write.
// Single-row writes carry the product's identity; an import carries the
// number of rows stored instead.
type ProductChangedEvent struct {
	Action     string `json:"action"`
	ProductID  int64  `json:"product_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Mfr        string `json:"mfr,omitempty"`
	Type       string `json:"type,omitempty"`
	Count      int    `json:"count,omitempty"`
	Actor      string `json:"actor"`
	OccurredAt string `json:"occurred_at"`
}
