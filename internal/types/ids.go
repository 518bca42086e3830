// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type SessionID string
type UserID string
type ChannelID string
type MessageID string

func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}
