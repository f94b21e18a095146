package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// StoredEvent is the persisted form of an engine event.
type StoredEvent struct {
	gorm.Model `json:"-"`
	EventID    string    `gorm:"uniqueIndex" json:"event_id"`
	Type       string    `gorm:"index" json:"type"`
	OrderID    string    `gorm:"index" json:"order_id"`
	Owner      string    `json:"owner"`
	Message    string    `json:"message"`
	EmittedAt  time.Time `json:"emitted_at"`
}

// Database handles event persistence.
type Database struct {
	db *gorm.DB
}

// NewDatabase creates an event store.
func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// SaveEvent persists one event.
func (d *Database) SaveEvent(event *Event) error {
	return d.db.Create(&StoredEvent{
		EventID:   event.EventID,
		Type:      event.Type,
		OrderID:   event.OrderID,
		Owner:     event.Owner,
		Message:   event.Message,
		EmittedAt: event.CreatedAt,
	}).Error
}

// RecentEvents returns the latest n events, newest first.
func (d *Database) RecentEvents(n int) ([]Event, error) {
	var stored []StoredEvent
	if err := d.db.Order("id DESC").Limit(n).Find(&stored).Error; err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(stored))
	for _, s := range stored {
		events = append(events, Event{
			EventID:   s.EventID,
			Type:      s.Type,
			OrderID:   s.OrderID,
			Owner:     s.Owner,
			Message:   s.Message,
			CreatedAt: s.EmittedAt,
		})
	}
	return events, nil
}

// StoreSink persists events so the control surface can serve a recent-event
// feed. Write failures are logged and dropped.
type StoreSink struct {
	db *Database
}

// NewStoreSink creates a persisting sink over the event store.
func NewStoreSink(db *Database) *StoreSink {
	return &StoreSink{db: db}
}

// Emit implements Sink.
func (s *StoreSink) Emit(event Event) {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if err := s.db.SaveEvent(&event); err != nil {
		log.Error().Err(err).
			Str("component", "notify").
			Str("event_type", event.Type).
			Msg("failed to persist event")
	}
}
