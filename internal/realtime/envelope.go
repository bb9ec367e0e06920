package realtime

import (
	"encoding/json"
	"errors"
	"time"
)

// Inbound control message types.
const (
	TypeAuthenticate = "authenticate"
	TypeJoinRoom     = "join_room"
	TypeLeaveRoom    = "leave_room"
	TypePing         = "ping"
	TypePong         = "pong"
)

// Outbound event types.
const (
	TypeTicketUpdate  = "ticket_update"
	TypeNotification  = "notification"
	TypeVoiceResponse = "voice_response"
	TypeSystemMessage = "system_message"
	TypeUserJoined    = "user_joined"
	TypeUserLeft      = "user_left"
)

var errMissingType = errors.New("realtime: envelope missing type")

// Envelope is the wire message format in both directions. Payload is opaque
// to the core; Room and UserID are inbound hints used by control messages.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Room      string          `json:"room,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
}

// NewEnvelope builds an outbound envelope, marshaling payload into the
// opaque payload field. A nil payload leaves the field empty.
func NewEnvelope(msgType string, payload any) (Envelope, error) {
	env := Envelope{Type: msgType, Timestamp: time.Now().UTC()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, err
		}
		env.Payload = raw
	}
	return env, nil
}

// Encode serializes the envelope once; callers fan the returned bytes out to
// every recipient instead of re-encoding per target.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses an inbound frame. A frame that is not valid JSON or
// carries no type is a protocol error.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	if env.Type == "" {
		return Envelope{}, errMissingType
	}
	return env, nil
}

// AuthPayload is the payload of an inbound authenticate message.
type AuthPayload struct {
	UserID     string `json:"userId"`
	Role       string `json:"role"`
	RoomNumber string `json:"roomNumber,omitempty"`
}

// systemMessage is the payload shape used for acks and error replies.
type systemMessage struct {
	Message string `json:"message"`
	Error   bool   `json:"error,omitempty"`
}

// presencePayload is the payload of user_joined / user_left events.
type presencePayload struct {
	UserID string `json:"userId"`
	Role   string `json:"role,omitempty"`
	Room   string `json:"room"`
}
