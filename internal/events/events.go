package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventReservationCreated   = "reservation_created"
	EventReservationPaid      = "reservation_paid"
	EventReservationCancelled = "reservation_cancelled"
	EventReservationCompleted = "reservation_completed"
	EventReservationExpired   = "reservation_expired"
	EventSlotRemoved          = "slot_removed"
)

// ReservationEventPayload describes the minimal reservation snapshot
// for event consumers.
type ReservationEventPayload struct {
	ReservationID int64     `json:"reservation_id"`
	SpaceID       string    `json:"space_id"`
	SlotOrdinal   int       `json:"slot_ordinal"`
	VehicleID     string    `json:"vehicle_id"`
	Status        string    `json:"status"`
	Fee           float64   `json:"fee"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	ActorID       int64     `json:"actor_id,omitempty"`
}

// SlotEventPayload describes a slot registry change.
type SlotEventPayload struct {
	SpaceID string `json:"space_id"`
	Ordinal int    `json:"ordinal"`
	Forced  bool   `json:"forced,omitempty"`
	Shifted int    `json:"shifted,omitempty"`
}

// Event is a lightweight in-process domain event.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
