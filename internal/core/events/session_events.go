package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeSessionStarted = "session.started"
	EventTypeSessionCleared = "session.cleared"
)

type SessionStartedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func NewSessionStartedEvent(userID, role string) *SessionStartedEvent {
	return &SessionStartedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeSessionStarted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id": userID,
				"role":    role,
			},
		},
		UserID: userID,
		Role:   role,
	}
}

// SessionClearedEvent fires on logout and on any authorization failure.
type SessionClearedEvent struct {
	BaseEvent
}

func NewSessionClearedEvent() *SessionClearedEvent {
	return &SessionClearedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeSessionCleared,
			Timestamp: time.Now(),
			Data:      map[string]interface{}{},
		},
	}
}
