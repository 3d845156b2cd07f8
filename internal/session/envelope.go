// Package session implements the per-connection session engine: it owns the
// in-memory AppState for one client, applies inbound state events, schedules
// check-ins, streams assistant replies, and persists every meaningful
// mutation.
package session

import "encoding/json"

// Envelope wire message types.
const (
	TypeState        = "state"
	TypeNotification = "notification"
	TypeUtterance    = "utterance"
)

// Envelope is the tagged wire message exchanged with the client.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Notification is an out-of-band popup shown by the client.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Utterance is a text-to-speech event, sent only when speech is enabled.
type Utterance struct {
	Text string `json:"text"`
}
