package domain

import (
	"fmt"
	"time"
)

// PromptPair is a legacy trigger/response prompt override. Retained on the
// wire for old clients; the server no longer evaluates them.
type PromptPair struct {
	Trigger  string `json:"trigger"`
	Response string `json:"response"`
}

// Settings holds per-user configuration synced from the client.
type Settings struct {
	Prompts         []PromptPair `json:"prompts"`
	CheckInInterval int          `json:"checkInInterval"` // seconds
	Timezone        string       `json:"timezone"`
	Debug           bool         `json:"debug"`
	TTS             bool         `json:"tts"`
}

// Window is one visible (application, title) pair.
type Window struct {
	Owner string `json:"owner"`
	Title string `json:"title"`
}

// Activity is a point-in-time snapshot of the user's visible windows. The
// observation timestamp comes from the surrounding snapshot record.
type Activity struct {
	VisibleWindows []Window `json:"visibleWindows"`
}

// AppState is the full per-user session payload: the unit of wire transfer
// and of persistence.
type AppState struct {
	MachineID string    `json:"machineId"`
	Username  string    `json:"username"`
	Version   string    `json:"version,omitempty"`
	Messages  []Message `json:"messages"`
	Settings  Settings  `json:"settings"`
	Activity  Activity  `json:"activity"`
}

// Validate checks an inbound AppState against the wire schema. A failure is
// fatal for the connection: nothing from the payload may be applied.
func (s *AppState) Validate() error {
	if s.MachineID == "" {
		return fmt.Errorf("machineId is required")
	}
	if s.Settings.CheckInInterval <= 0 {
		return fmt.Errorf("settings.checkInInterval must be positive, got %d", s.Settings.CheckInInterval)
	}
	if s.Settings.Timezone != "" {
		if _, err := time.LoadLocation(s.Settings.Timezone); err != nil {
			return fmt.Errorf("settings.timezone: %w", err)
		}
	}
	for i := range s.Messages {
		if err := s.Messages[i].Validate(); err != nil {
			return fmt.Errorf("messages[%d]: %w", i, err)
		}
	}
	return nil
}

// Location resolves the user's configured timezone, falling back to UTC.
func (s *AppState) Location() *time.Location {
	if s.Settings.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Settings.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Interval returns the configured check-in interval as a duration.
func (s *AppState) Interval() time.Duration {
	return time.Duration(s.Settings.CheckInInterval) * time.Second
}

// TrailingMessage returns the last message, or nil for an empty history.
func (s *AppState) TrailingMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// Append adds messages to the end of the history.
func (s *AppState) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// PopTrailing removes and returns the last message.
func (s *AppState) PopTrailing() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	m := s.Messages[len(s.Messages)-1]
	s.Messages = s.Messages[:len(s.Messages)-1]
	return &m
}
