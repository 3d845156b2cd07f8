// Package domain contains core domain types for the attent session server.
package domain

import (
	"fmt"
	"time"
)

// Message roles. Index 0 of a seeded conversation is always RoleSystem.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
	RoleDebug     = "debug"
)

// FunctionCall is a model-requested function invocation. Arguments is an
// opaque payload; the server never interprets it.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// Message is one entry in the conversation history. Content and FunctionCall
// are both optional; streaming replies grow a single Message in place.
type Message struct {
	Role         string        `json:"role"`
	Content      string        `json:"content,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
	Time         *time.Time    `json:"time,omitempty"`
}

// ValidRole reports whether role is one of the known message roles.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant, RoleFunction, RoleDebug:
		return true
	}
	return false
}

// Validate checks the message against the wire schema.
func (m *Message) Validate() error {
	if !ValidRole(m.Role) {
		return fmt.Errorf("unknown message role %q", m.Role)
	}
	return nil
}

// Merge folds an incremental delta into the message: text concatenates,
// everything else replaces when present.
func (m *Message) Merge(delta Message) {
	if delta.Role != "" {
		m.Role = delta.Role
	}
	m.Content += delta.Content
	if delta.FunctionCall != nil {
		if m.FunctionCall == nil {
			m.FunctionCall = &FunctionCall{}
		}
		if delta.FunctionCall.Name != "" {
			m.FunctionCall.Name = delta.FunctionCall.Name
		}
		m.FunctionCall.Arguments += delta.FunctionCall.Arguments
	}
	if delta.Time != nil {
		m.Time = delta.Time
	}
}

// NewMessage builds a timestamped message.
func NewMessage(role, content string, now time.Time) Message {
	return Message{Role: role, Content: content, Time: &now}
}
