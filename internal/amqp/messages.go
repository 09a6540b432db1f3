package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"scuola/internal/core"
)

// AbsenteeMessage carries one guardian notice to the notify worker.
type AbsenteeMessage struct {
	ID        string              `json:"id"`
	Notice    core.AbsenteeNotice `json:"notice"`
	Timestamp time.Time           `json:"timestamp"`
}

// NewAbsenteeMessage stamps a notice with a fresh id and the current time.
func NewAbsenteeMessage(n core.AbsenteeNotice) *AbsenteeMessage {
	return &AbsenteeMessage{
		ID:        uuid.NewString(),
		Notice:    n,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *AbsenteeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AbsenteeMessageFromJSON creates a message from JSON bytes
func AbsenteeMessageFromJSON(data []byte) (*AbsenteeMessage, error) {
	var msg AbsenteeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
