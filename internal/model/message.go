package model

import (
	"fmt"
	"time"
)

// RawMessage is one row from the message store. Immutable after capture;
// RowID is the source of truth for idempotency keys.
type RawMessage struct {
	SentAt         time.Time
	Sender         string
	Text           string
	AttributedBody []byte
	RowID          int64
}

// ExternalID derives the deterministic idempotency key for this message.
func (m *RawMessage) ExternalID() string {
	return fmt.Sprintf("sms:%d", m.RowID)
}
