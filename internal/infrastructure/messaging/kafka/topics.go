// Package kafka publishes run-summary events after consolidation and
// bridging complete, letting downstream consumers (dashboards, audits)
// react without polling the graph store.  Publishing is optional and
// disabled by default.
package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Topic Constants
const (
	TopicConsolidationCompleted = "consolidation.completed"
	TopicBridgingCompleted      = "bridging.completed"
)

// schemaVersion tags every envelope so consumers can evolve safely.
const schemaVersion = "1.0"

// eventSource identifies this pipeline in multi-producer deployments.
const eventSource = "bridger"

// EventEnvelope standardizes event messages.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// ConsolidationCompletedPayload summarises one consolidation run.
type ConsolidationCompletedPayload struct {
	RunID           string    `json:"run_id"`
	Records         int       `json:"records"`
	Malformed       int       `json:"malformed"`
	Entities        int       `json:"entities"`
	MergeGroups     int       `json:"merge_groups"`
	AmbiguousGroups int       `json:"ambiguous_groups"`
	Relations       int       `json:"relations"`
	CompletedAt     time.Time `json:"completed_at"`
}

// BridgingCompletedPayload summarises one bridging run.
type BridgingCompletedPayload struct {
	RunID       string    `json:"run_id"`
	Elements    int       `json:"elements"`
	Bridged     int       `json:"bridged"`
	Unresolved  int       `json:"unresolved"`
	Boosted     int       `json:"context_boosted"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewEnvelope wraps a payload in a fully-populated envelope.
func NewEnvelope(eventType string, payload interface{}) (*EventEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        eventSource,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		Payload:       raw,
	}, nil
}
