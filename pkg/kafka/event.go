package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the envelope version stamped on every event this service
// emits. Consumers use it to detect incompatible producers.
const SchemaVersion = 1

// Event is the wire envelope shared by the catalog service and its
// collaborators (the checkout and order services publish order events in the
// same shape). EventID keys idempotent consumption; AggregateID keys the
// Kafka partition so all events for one product or order stay ordered.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEvent wraps a payload in a fresh envelope: generated ID, current UTC
// timestamp, current schema version.
func NewEvent(eventType, aggregateID, aggregateType, source string, data any) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}

	return &Event{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       SchemaVersion,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Data:          payload,
		Metadata:      make(map[string]string),
	}, nil
}

// WithCorrelationID sets the correlation ID on the event.
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// WithMetadata adds a key-value pair to the event metadata.
func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// Validate checks the fields the consuming pipeline depends on: without an
// EventID the idempotency store cannot dedupe, and without a type or
// aggregate the handler cannot dispatch.
func (e *Event) Validate() error {
	switch {
	case e.EventID == "":
		return fmt.Errorf("event missing event_id")
	case e.EventType == "":
		return fmt.Errorf("event %s missing event_type", e.EventID)
	case e.AggregateID == "":
		return fmt.Errorf("event %s (%s) missing aggregate_id", e.EventID, e.EventType)
	}
	return nil
}

// Marshal serializes the event to JSON bytes.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent deserializes and validates an envelope. An envelope that
// fails validation is returned as an error so the consumer treats it like
// any other malformed message: logged, committed, skipped.
func UnmarshalEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return &event, nil
}

// UnmarshalData deserializes the event data payload into the given target.
func (e *Event) UnmarshalData(target any) error {
	return json.Unmarshal(e.Data, target)
}
