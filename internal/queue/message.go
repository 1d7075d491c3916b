package queue

import (
	"encoding/json"
	"strings"
)

// IDMessage is the payload exchanged between pipeline stages: a single process id.
type IDMessage struct {
	ID string `json:"Id"`
}

// Valid reports whether the message carries a non-blank id.
func (m IDMessage) Valid() bool {
	return strings.TrimSpace(m.ID) != ""
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg IDMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into an IDMessage. Field names match
// case-insensitively, so both {"Id": ...} and {"id": ...} decode.
func DecodeMessage(payload []byte) (IDMessage, error) {
	var msg IDMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return IDMessage{}, err
	}
	return msg, nil
}
