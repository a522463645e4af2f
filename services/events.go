package services

import (
	"encoding/json"
	"log"

	"rewards-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Subscriber receives every published event. Subscribers run synchronously
// but are isolated: a panic or error in one never affects engine state.
type Subscriber func(name models.EventName, userID string, payload map[string]any)

// EventService fans domain events out to subscribers and persists them for
// the SSE stream. Delivery is fire-and-forget: the state transition that
// produced an event has already committed by the time Publish runs.
type EventService struct {
	DB          *gorm.DB
	subscribers []Subscriber
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{DB: db}
}

// Subscribe registers a delivery hook (notifications, analytics).
func (s *EventService) Subscribe(fn Subscriber) {
	s.subscribers = append(s.subscribers, fn)
}

// Publish records the event and notifies subscribers. Failures are logged
// and swallowed.
func (s *EventService) Publish(name models.EventName, userID string, event any) {
	payload := toPayload(event)

	if err := s.DB.Create(&models.RewardEvent{
		ID:      uuid.NewString(),
		UserID:  userID,
		Name:    name,
		Payload: payload,
	}).Error; err != nil {
		log.Printf("[EVENTS] failed to persist %s for user %s: %v", name, userID, err)
	}

	for _, fn := range s.subscribers {
		s.deliver(fn, name, userID, payload)
	}
}

func (s *EventService) deliver(fn Subscriber, name models.EventName, userID string, payload map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[EVENTS] subscriber panic on %s: %v", name, r)
		}
	}()
	fn(name, userID, payload)
}

// toPayload flattens an event struct into the persisted map form.
func toPayload(event any) map[string]any {
	raw, err := json.Marshal(event)
	if err != nil {
		return map[string]any{}
	}
	payload := map[string]any{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return map[string]any{}
	}
	return payload
}
