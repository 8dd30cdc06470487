package domain

import "time"

// Interaction is the metadata kept for one processed request. It carries
// neither the visitor's message nor the reply.
type Interaction struct {
	// RequestID is generated per request and keys the record.
	RequestID string
	// CorrelationID is the caller's token and may repeat across requests.
	CorrelationID string
	Category      Category
	State         string
	Reason        string
	MessageLength int
	Duration      time.Duration
	CreatedAt     time.Time
}
