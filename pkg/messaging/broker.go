package messaging

import (
	"context"
	"time"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Publisher defines the interface for publishing domain events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventsChannel is where record changes are announced.
const EventsChannel = "consultorio:events"

// Event announces a change to a record. Payload never carries clinical free text.
type Event struct {
	Type       string            `json:"type"`
	Module     string            `json:"module"`
	EntityID   string            `json:"entity_id"`
	ActorID    string            `json:"actor_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

const (
	PatientCreated      = "patient.created"
	PatientUpdated      = "patient.updated"
	PatientArchived     = "patient.archived"
	PatientDeleted      = "patient.deleted"
	EntryCreated        = "clinical_entry.created"
	RadiographCreated   = "radiograph.created"
	RadiographReady     = "radiograph.ready"
	RadiographFailed    = "radiograph.failed"
	RadiographReset     = "radiograph.reset"
	RadiographDeleted   = "radiograph.deleted"
	CaseCreated         = "case.created"
	CaseUpdated         = "case.updated"
	CaseArchived        = "case.archived"
	CaseEventCreated    = "case_event.created"
	AllowedEmailAdded   = "allowed_email.added"
	AllowedEmailToggled = "allowed_email.toggled"
	AllowedEmailDeleted = "allowed_email.deleted"
	DriveConnected      = "drive.connected"
	DriveDisconnected   = "drive.disconnected"
)

// EventPublisher sends events to a single broker channel.
type EventPublisher struct {
	broker  Broker
	channel string
	now     func() time.Time
}

func NewEventPublisher(broker Broker, channel string) *EventPublisher {
	if channel == "" {
		channel = EventsChannel
	}
	return &EventPublisher{broker: broker, channel: channel, now: time.Now}
}

func (p *EventPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}
	return p.broker.Publish(ctx, p.channel, event)
}
